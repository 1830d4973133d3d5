package repository

import (
	"context"

	"github.com/helixir/scientometrics-service/internal/domain"
)

// UserRepository reads and writes the host's user profiles.
type UserRepository interface {
	// Get looks a user up by id or, failing that, by name.
	// Returns domain.ErrNotFound if neither matches.
	Get(ctx context.Context, idOrName string) (*domain.User, error)

	// SavePluginExtras replaces the plugin extras of an existing user.
	// Returns domain.ErrNotFound if the user does not exist.
	SavePluginExtras(ctx context.Context, userID string, extras map[string]any) error

	// Create inserts a user. Used when this service fronts its own user table.
	Create(ctx context.Context, user *domain.User) error

	// ListIDs returns every user id ordered by id.
	ListIDs(ctx context.Context) ([]string, error)
}
