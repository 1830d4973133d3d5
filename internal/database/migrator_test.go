package database

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scientometrics-service/migrations"
)

func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("fails with nil database", func(t *testing.T) {
		migrator, err := NewMigrator(nil, "/some/path", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database is required")
	})

	t.Run("fails with nil pool", func(t *testing.T) {
		migrator, err := NewMigrator(&DB{}, "/some/path", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database pool not initialized")
	})
}

func TestEmbeddedMigrations(t *testing.T) {
	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrations.FS, "*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups), "every up migration needs a down migration")

	src, err := embeddedSource(migrations.FS)
	require.NoError(t, err)
	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)
	require.NoError(t, src.Close())
}

func TestMigrator_Live(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()
	logger := zerolog.Nop()

	t.Run("fails with invalid migrations path", func(t *testing.T) {
		migrator, err := NewMigrator(db, "/nonexistent/path", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "migrations path validation failed")
	})

	t.Run("embedded migrations apply and report a version", func(t *testing.T) {
		migrator, err := NewMigrator(db, "", logger)
		require.NoError(t, err)
		defer func() { assert.NoError(t, migrator.Close()) }()

		require.NoError(t, migrator.Up())
		require.NoError(t, migrator.Up(), "second Up is a no-op")

		v, dirty, err := migrator.Version()
		require.NoError(t, err)
		assert.False(t, dirty)
		assert.GreaterOrEqual(t, v, uint(2))
	})

	t.Run("on-disk migrations", func(t *testing.T) {
		migrator, err := NewMigrator(db, getMigrationsPath(t), logger)
		require.NoError(t, err)
		defer func() { assert.NoError(t, migrator.Close()) }()

		assert.NoError(t, migrator.Steps(1))
	})
}

func getMigrationsPath(t *testing.T) string {
	t.Helper()

	cwd, err := os.Getwd()
	require.NoError(t, err)

	// internal/database -> project root
	migrationsPath := filepath.Join(cwd, "..", "..", "migrations")
	if _, err := os.Stat(migrationsPath); os.IsNotExist(err) {
		t.Skipf("Skipping test: migrations directory not found at %s", migrationsPath)
	}
	return migrationsPath
}
