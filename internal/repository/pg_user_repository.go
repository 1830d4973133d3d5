package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/scientometrics-service/internal/domain"
)

// Compile-time interface verification.
var _ UserRepository = (*PgUserRepository)(nil)

// PgUserRepository is a PostgreSQL implementation of UserRepository.
type PgUserRepository struct {
	db DBTX
}

// NewPgUserRepository creates a new PostgreSQL user repository.
func NewPgUserRepository(db DBTX) *PgUserRepository {
	return &PgUserRepository{db: db}
}

// Get prefers an id match over a name match.
func (r *PgUserRepository) Get(ctx context.Context, idOrName string) (*domain.User, error) {
	if idOrName == "" {
		return nil, domain.NewValidationError("user_id", "user id or name is required")
	}

	query := `
		SELECT id, name, plugin_extras, created_at, updated_at
		FROM users
		WHERE id = $1 OR name = $1
		ORDER BY (id = $1) DESC
		LIMIT 1`

	var (
		user       domain.User
		extrasJSON []byte
	)
	err := r.db.QueryRow(ctx, query, idOrName).
		Scan(&user.ID, &user.Name, &extrasJSON, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", idOrName)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.PluginExtras = map[string]any{}
	if len(extrasJSON) > 0 {
		if err := json.Unmarshal(extrasJSON, &user.PluginExtras); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plugin extras: %w", err)
		}
	}
	return &user, nil
}

// SavePluginExtras replaces the plugin extras of a user.
func (r *PgUserRepository) SavePluginExtras(ctx context.Context, userID string, extras map[string]any) error {
	if extras == nil {
		extras = map[string]any{}
	}
	extrasJSON, err := json.Marshal(extras)
	if err != nil {
		return fmt.Errorf("failed to marshal plugin extras: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE users SET plugin_extras = $2, updated_at = $3 WHERE id = $1`,
		userID, extrasJSON, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save plugin extras: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("user", userID)
	}
	return nil
}

// Create inserts a user and fills in its timestamps.
func (r *PgUserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" || user.Name == "" {
		return domain.NewValidationError("user", "id and name are required")
	}
	extras := user.PluginExtras
	if extras == nil {
		extras = map[string]any{}
	}
	extrasJSON, err := json.Marshal(extras)
	if err != nil {
		return fmt.Errorf("failed to marshal plugin extras: %w", err)
	}

	query := `
		INSERT INTO users (id, name, plugin_extras, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING created_at, updated_at`

	err = r.db.QueryRow(ctx, query, user.ID, user.Name, extrasJSON, time.Now().UTC()).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("user %s already exists: %w", user.ID, domain.ErrInvalidInput)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.PluginExtras = extras
	return nil
}

// ListIDs returns every user id.
func (r *PgUserRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return ids, nil
}
