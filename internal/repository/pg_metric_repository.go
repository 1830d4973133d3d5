package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/scientometrics-service/internal/domain"
)

// Compile-time interface verification.
var _ MetricRepository = (*PgMetricRepository)(nil)

const metricColumns = `id, user_id, source, metrics, external_id, external_url, status, created_at, updated_at`

// PgMetricRepository is a PostgreSQL implementation of MetricRepository.
type PgMetricRepository struct {
	db DBTX
}

// NewPgMetricRepository creates a new PostgreSQL metric repository.
func NewPgMetricRepository(db DBTX) *PgMetricRepository {
	return &PgMetricRepository{db: db}
}

// Upsert writes the record with a single INSERT...ON CONFLICT...RETURNING.
func (r *PgMetricRepository) Upsert(ctx context.Context, p UpsertParams) (*domain.MetricRecord, error) {
	if p.UserID == "" {
		return nil, domain.NewValidationError("user_id", "user id is required")
	}
	if p.Source == "" {
		return nil, domain.NewValidationError("source", "source is required")
	}
	status := p.Status
	if status == "" {
		status = domain.MetricStatusPending
	}
	if !status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	metrics := p.Metrics
	if metrics == nil {
		metrics = domain.Metrics{}
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metrics: %w", err)
	}

	query := `
		INSERT INTO scientometrics_metrics (` + metricColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (user_id, source) DO UPDATE SET
			metrics = EXCLUDED.metrics,
			external_id = EXCLUDED.external_id,
			external_url = EXCLUDED.external_url,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + metricColumns

	row := r.db.QueryRow(ctx, query,
		uuid.New(), p.UserID, string(p.Source), metricsJSON,
		p.External.ID, p.External.URL, string(status), time.Now().UTC(),
	)
	rec, err := scanMetricRecord(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert metrics for %s/%s: %w", p.UserID, p.Source, err)
	}
	return rec, nil
}

// Get retrieves the record for (userID, source).
func (r *PgMetricRepository) Get(ctx context.Context, userID string, source domain.Source) (*domain.MetricRecord, error) {
	query := `
		SELECT ` + metricColumns + `
		FROM scientometrics_metrics
		WHERE user_id = $1 AND source = $2`

	rec, err := scanMetricRecord(r.db.QueryRow(ctx, query, userID, string(source)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("metrics", userID+"/"+string(source))
		}
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	return rec, nil
}

// ByUserID retrieves all records of a user.
func (r *PgMetricRepository) ByUserID(ctx context.Context, userID string) ([]*domain.MetricRecord, error) {
	query := `
		SELECT ` + metricColumns + `
		FROM scientometrics_metrics
		WHERE user_id = $1
		ORDER BY source`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.MetricRecord, 0)
	for rows.Next() {
		rec, err := scanMetricRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metrics: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metrics: %w", err)
	}
	return records, nil
}

// DeleteByUserID removes every record of a user.
func (r *PgMetricRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM scientometrics_metrics WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete metrics: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateStatus changes the status of an existing record.
func (r *PgMetricRepository) UpdateStatus(ctx context.Context, userID string, source domain.Source, status domain.MetricStatus) (*domain.MetricRecord, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	query := `
		UPDATE scientometrics_metrics
		SET status = $3, updated_at = $4
		WHERE user_id = $1 AND source = $2
		RETURNING ` + metricColumns

	rec, err := scanMetricRecord(r.db.QueryRow(ctx, query, userID, string(source), string(status), time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("metrics", userID+"/"+string(source))
		}
		return nil, fmt.Errorf("failed to update metrics status: %w", err)
	}
	return rec, nil
}

// scanMetricRecord scans one row selected with metricColumns.
func scanMetricRecord(row pgx.Row) (*domain.MetricRecord, error) {
	var (
		rec         domain.MetricRecord
		source      string
		status      string
		metricsJSON []byte
	)
	if err := row.Scan(
		&rec.ID, &rec.UserID, &source, &metricsJSON,
		&rec.External.ID, &rec.External.URL, &status,
		&rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Source = domain.Source(source)
	rec.Status = domain.MetricStatus(status)

	metrics, err := decodeMetrics(metricsJSON)
	if err != nil {
		return nil, err
	}
	rec.Metrics = metrics
	return &rec, nil
}

// decodeMetrics keeps numbers as json.Number so integer metrics survive a
// round trip unchanged.
func decodeMetrics(data []byte) (domain.Metrics, error) {
	metrics := domain.Metrics{}
	if len(data) == 0 {
		return metrics, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	return metrics, nil
}
