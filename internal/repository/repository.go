// Package repository provides data access interfaces and PostgreSQL
// implementations for the scientometrics service.
//
// # Repository Interfaces
//
//   - MetricRepository: per-(user, source) metric records
//   - UserRepository: the host's user profiles and their plugin extras
//
// # Error Handling
//
// Lookups of missing rows return domain.ErrNotFound (via *domain.NotFoundError).
// Database errors are wrapped with fmt.Errorf and %w.
//
// # Transactions
//
// Implementations take a DBTX so that the same code runs on the pool or inside
// a pgx.Tx. Transactor runs a function against a transaction-bound
// MetricRepository:
//
//	err := tx.WithinTx(ctx, func(metrics repository.MetricRepository) error {
//	    _, err := metrics.Upsert(ctx, params)
//	    return err
//	})
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/helixir/scientometrics-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// Transactor runs fn with a MetricRepository bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(metrics MetricRepository) error) error
}

// Compile-time interface verification.
var _ Transactor = (*PgTransactor)(nil)

// PgTransactor is the PostgreSQL Transactor.
type PgTransactor struct {
	db     database.TxBeginner
	logger zerolog.Logger
}

// NewPgTransactor creates a Transactor beginning transactions on db.
func NewPgTransactor(db database.TxBeginner, logger zerolog.Logger) *PgTransactor {
	return &PgTransactor{db: db, logger: logger}
}

// WithinTx implements Transactor.
func (t *PgTransactor) WithinTx(ctx context.Context, fn func(metrics MetricRepository) error) error {
	return database.RunInTx(ctx, t.db, pgx.TxOptions{}, t.logger, func(tx pgx.Tx) error {
		return fn(NewPgMetricRepository(tx))
	})
}
