package repository

import (
	"context"

	"github.com/helixir/scientometrics-service/internal/domain"
)

// UpsertParams is the full state written for one (user, source) pair.
type UpsertParams struct {
	UserID   string
	Source   domain.Source
	Metrics  domain.Metrics
	External domain.ExternalRef
	Status   domain.MetricStatus
}

// MetricRepository persists metric records keyed by (user_id, source).
type MetricRepository interface {
	// Upsert inserts the record or overwrites the existing one for the same
	// (user_id, source). id and created_at of an existing record are kept.
	Upsert(ctx context.Context, params UpsertParams) (*domain.MetricRecord, error)

	// Get returns the record for (userID, source).
	// Returns domain.ErrNotFound if there is none.
	Get(ctx context.Context, userID string, source domain.Source) (*domain.MetricRecord, error)

	// ByUserID returns all records of a user ordered by source.
	// A user without records yields an empty slice.
	ByUserID(ctx context.Context, userID string) ([]*domain.MetricRecord, error)

	// DeleteByUserID removes every record of a user and returns how many were removed.
	DeleteByUserID(ctx context.Context, userID string) (int64, error)

	// UpdateStatus changes only the status of an existing record.
	// Returns domain.ErrNotFound if there is none.
	UpdateStatus(ctx context.Context, userID string, source domain.Source, status domain.MetricStatus) (*domain.MetricRecord, error)
}
