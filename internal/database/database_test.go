package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scientometrics-service/internal/config"
)

// mockDBTX is a mock implementation of DBTX for interface verification.
type mockDBTX struct{}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockDBTX) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}

func (m *mockDBTX) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func TestDBTX_Interface(t *testing.T) {
	var _ DBTX = (*mockDBTX)(nil)
	var _ DBTX = (pgx.Tx)(nil)
}

func TestHealthStatus_JSON(t *testing.T) {
	t.Run("error field included when populated", func(t *testing.T) {
		data, err := json.Marshal(HealthStatus{Status: "unhealthy", Error: "connection refused", MaxConns: 20})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"error":"connection refused"`)
		assert.Contains(t, string(data), `"max_conns":20`)
	})

	t.Run("empty error field is omitted", func(t *testing.T) {
		data, err := json.Marshal(HealthStatus{Status: "healthy"})
		require.NoError(t, err)
		assert.NotContains(t, string(data), `"error"`)
		assert.Contains(t, string(data), `"status":"healthy"`)
	})
}

func TestRunInTx(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("successful function commits", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE users").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = RunInTx(ctx, mock, pgx.TxOptions{}, logger, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, "UPDATE users SET name = name")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failing function rolls back and returns its error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = RunInTx(ctx, mock, pgx.TxOptions{}, logger, func(tx pgx.Tx) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure is wrapped", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin().WillReturnError(errors.New("no conn"))

		called := false
		err = RunInTx(ctx, mock, pgx.TxOptions{}, logger, func(tx pgx.Tx) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
		assert.False(t, called)
	})

	t.Run("commit failure is wrapped", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err = RunInTx(ctx, mock, pgx.TxOptions{}, logger, func(tx pgx.Tx) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
	})

	t.Run("panic rolls back and re-panics", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "kaboom", func() {
			_ = RunInTx(ctx, mock, pgx.TxOptions{}, logger, func(tx pgx.Tx) error {
				panic("kaboom")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNew_ConnectionError(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping connection test in short mode")
	}

	cfg := &config.DatabaseConfig{
		Host:           "127.0.0.1",
		Port:           1,
		User:           "scim",
		Name:           "scientometrics",
		SSLMode:        config.SSLModeDisable,
		MaxConns:       1,
		ConnectTimeout: time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := New(ctx, cfg, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestDB_Close(t *testing.T) {
	t.Run("close nil pool does not panic", func(t *testing.T) {
		db := &DB{logger: zerolog.Nop()}
		assert.NotPanics(t, db.Close)
	})
}

func TestDB_Live(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("Ping verifies connection", func(t *testing.T) {
		assert.NoError(t, db.Ping(ctx))
	})

	t.Run("Health reports healthy", func(t *testing.T) {
		health := db.Health(ctx)
		assert.Equal(t, "healthy", health.Status)
		assert.Empty(t, health.Error)
	})

	t.Run("RunInTx commits on the DB", func(t *testing.T) {
		err := RunInTx(ctx, db, pgx.TxOptions{}, zerolog.Nop(), func(tx pgx.Tx) error {
			var one int
			return tx.QueryRow(ctx, "SELECT 1").Scan(&one)
		})
		assert.NoError(t, err)
	})
}

// setupTestDB connects to a local database or skips the test.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Host:              "localhost",
		Port:              5432,
		Name:              "scientometrics",
		User:              "scim",
		Password:          "password",
		SSLMode:           config.SSLModeDisable,
		MaxConns:          5,
		MinConns:          1,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: 30 * time.Second,
		ConnectTimeout:    2 * time.Second,
	}

	db, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
	}
	return db
}
