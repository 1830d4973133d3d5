package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scientometrics-service/internal/domain"
)

var userRowColumns = []string{"id", "name", "plugin_extras", "created_at", "updated_at"}

func TestPgUserRepository_Get(t *testing.T) {
	t.Run("finds user and decodes extras", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		now := time.Now().UTC()
		mock.ExpectQuery(`SELECT id, name, plugin_extras, created_at, updated_at FROM users WHERE id = \$1 OR name = \$1`).
			WithArgs("jdoe").
			WillReturnRows(pgxmock.NewRows(userRowColumns).
				AddRow("u1", "jdoe", []byte(`{"scim":{"openalex_author_id":"A1"},"other":{"x":1}}`), now, now))

		user, err := NewPgUserRepository(mock).Get(context.Background(), "jdoe")
		require.NoError(t, err)
		assert.Equal(t, "u1", user.ID)
		assert.Equal(t, "jdoe", user.Name)
		require.Contains(t, user.PluginExtras, "scim")
		assert.Contains(t, user.PluginExtras, "other")
		section, ok := user.PluginExtras["scim"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "A1", section["openalex_author_id"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("null extras become an empty map", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		now := time.Now().UTC()
		mock.ExpectQuery(`FROM users`).
			WithArgs("u2").
			WillReturnRows(pgxmock.NewRows(userRowColumns).AddRow("u2", "anon", nil, now, now))

		user, err := NewPgUserRepository(mock).Get(context.Background(), "u2")
		require.NoError(t, err)
		assert.NotNil(t, user.PluginExtras)
		assert.Empty(t, user.PluginExtras)
	})

	t.Run("unknown user", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM users`).WithArgs("ghost").WillReturnError(pgx.ErrNoRows)

		_, err = NewPgUserRepository(mock).Get(context.Background(), "ghost")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("empty reference is rejected", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		_, err = NewPgUserRepository(mock).Get(context.Background(), "")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgUserRepository_SavePluginExtras(t *testing.T) {
	t.Run("stores extras", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE users SET plugin_extras = \$2, updated_at = \$3 WHERE id = \$1`).
			WithArgs("u1", []byte(`{"scim":{"openalex_author_id":"A1"}}`), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = NewPgUserRepository(mock).SavePluginExtras(context.Background(), "u1", map[string]any{
			"scim": map[string]any{"openalex_author_id": "A1"},
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE users`).
			WithArgs("ghost", []byte(`{}`), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = NewPgUserRepository(mock).SavePluginExtras(context.Background(), "ghost", nil)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestPgUserRepository_Create(t *testing.T) {
	t.Run("inserts user", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		now := time.Now().UTC()
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("u1", "jdoe", []byte(`{}`), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		user := &domain.User{ID: "u1", Name: "jdoe"}
		require.NoError(t, NewPgUserRepository(mock).Create(context.Background(), user))
		assert.Equal(t, now, user.CreatedAt)
		assert.NotNil(t, user.PluginExtras)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate user", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO users`).WillReturnError(&pgconn.PgError{Code: "23505"})

		err = NewPgUserRepository(mock).Create(context.Background(), &domain.User{ID: "u1", Name: "jdoe"})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("missing fields", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		err = NewPgUserRepository(mock).Create(context.Background(), &domain.User{ID: "u1"})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgUserRepository_ListIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id FROM users ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("a").AddRow("b"))

	ids, err := NewPgUserRepository(mock).ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
