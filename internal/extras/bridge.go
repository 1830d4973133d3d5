// Package extras reads and writes the author identifiers a user declares in
// the plugin extras of their profile.
//
// Identifiers live in plugin_extras[<extras key>] as
// {"<source>_author_id": "<id>"}. Profiles written by older releases keep
// them under the legacy key, which is still read but never written.
package extras

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/scientometrics-service/internal/authz"
	"github.com/helixir/scientometrics-service/internal/domain"
	"github.com/helixir/scientometrics-service/internal/observability"
	"github.com/helixir/scientometrics-service/internal/repository"
)

// Options configures a Bridge.
type Options struct {
	// ExtrasKey is the plugin extras key identifiers are read from and written to.
	ExtrasKey string
	// LegacyExtrasKey is read when ExtrasKey is absent.
	LegacyExtrasKey string
	// EnabledSources are the sources users may declare identifiers for.
	EnabledSources []domain.Source
}

// Profile is the scientometrics view of a user profile.
type Profile struct {
	UserID   string
	UserName string
	// Identifiers holds every decoded identifier, including empty ones.
	Identifiers domain.AuthorIdentifiers
	// Key is the extras key the identifiers were read from, or "" when the
	// profile has none.
	Key string
}

// Declared returns the identifiers with a non-empty value.
func (p *Profile) Declared() domain.AuthorIdentifiers {
	return p.Identifiers.Declared()
}

// Bridge maps between user profiles and typed author identifiers.
type Bridge struct {
	users      repository.UserRepository
	authorizer authz.Authorizer
	opts       Options
	enabled    map[domain.Source]bool
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// New creates a Bridge. metrics may be nil.
func New(users repository.UserRepository, authorizer authz.Authorizer, opts Options, logger zerolog.Logger, metrics *observability.Metrics) *Bridge {
	enabled := make(map[domain.Source]bool, len(opts.EnabledSources))
	for _, s := range opts.EnabledSources {
		enabled[s] = true
	}
	return &Bridge{
		users:      users,
		authorizer: authorizer,
		opts:       opts,
		enabled:    enabled,
		logger:     logger.With().Str("component", "extras").Logger(),
		metrics:    metrics,
	}
}

// EnabledSources returns the configured sources.
func (b *Bridge) EnabledSources() []domain.Source {
	return append([]domain.Source(nil), b.opts.EnabledSources...)
}

// Read returns the identifiers declared by the user with id or name userRef.
// The current key wins over the legacy key; the two are never merged.
func (b *Bridge) Read(ctx context.Context, userRef string) (*Profile, error) {
	user, err := b.users.Get(ctx, userRef)
	if err != nil {
		return nil, err
	}
	section, key := b.section(user.PluginExtras)
	return &Profile{
		UserID:      user.ID,
		UserName:    user.Name,
		Identifiers: domain.AuthorIdentifiersFromExtras(section),
		Key:         key,
	}, nil
}

// Write applies updates, a map of "<source>_author_id" keys to author ids,
// to the user's profile. An empty value removes the key; untouched keys are
// kept. Every key must name an enabled source, otherwise nothing is written.
// The result is stored under the current key even when it was read from the
// legacy one.
func (b *Bridge) Write(ctx context.Context, userRef string, updates map[string]string) (domain.AuthorIdentifiers, error) {
	user, err := b.users.Get(ctx, userRef)
	if err != nil {
		return nil, err
	}
	if err := b.authorizer.Authorize(ctx, authz.ActionUpdateAuthorIDs, user.ID); err != nil {
		return nil, err
	}
	if err := b.validate(updates); err != nil {
		return nil, err
	}

	current, _ := b.section(user.PluginExtras)
	section := make(map[string]any, len(current)+len(updates))
	for k, v := range current {
		section[k] = v
	}
	for k, v := range updates {
		if v == "" {
			delete(section, k)
			continue
		}
		section[k] = v
	}

	extras := make(map[string]any, len(user.PluginExtras)+1)
	for k, v := range user.PluginExtras {
		extras[k] = v
	}
	extras[b.opts.ExtrasKey] = section

	if err := b.users.SavePluginExtras(ctx, user.ID, extras); err != nil {
		return nil, fmt.Errorf("saving author ids of %s: %w", user.ID, err)
	}
	if b.metrics != nil {
		b.metrics.RecordAuthorIDUpdate()
	}
	b.logger.Info().Str("user_id", user.ID).Int("keys", len(updates)).Msg("author ids updated")

	return domain.AuthorIdentifiersFromExtras(section), nil
}

// AttachFromProfile picks the enabled author-id keys out of a generic
// profile payload and writes them. Other keys and non-string values are
// ignored. A payload without author ids changes nothing and returns nil.
func (b *Bridge) AttachFromProfile(ctx context.Context, userRef string, data map[string]any) (domain.AuthorIdentifiers, error) {
	updates := make(map[string]string)
	for k, v := range data {
		src, ok := domain.SourceFromAuthorIDKey(k)
		if !ok || !b.enabled[src] {
			continue
		}
		switch val := v.(type) {
		case string:
			updates[k] = strings.TrimSpace(val)
		case nil:
			updates[k] = ""
		}
	}
	if len(updates) == 0 {
		return nil, nil
	}
	return b.Write(ctx, userRef, updates)
}

// section returns the identifiers section of extras and the key it came from.
func (b *Bridge) section(extras map[string]any) (map[string]any, string) {
	for _, key := range []string{b.opts.ExtrasKey, b.opts.LegacyExtrasKey} {
		if key == "" {
			continue
		}
		raw, ok := extras[key]
		if !ok {
			continue
		}
		if section, ok := raw.(map[string]any); ok {
			return section, key
		}
		b.logger.Warn().Str("key", key).Msg("ignoring non-object plugin extras section")
	}
	return map[string]any{}, ""
}

func (b *Bridge) validate(updates map[string]string) error {
	var bad []string
	for k := range updates {
		src, ok := domain.SourceFromAuthorIDKey(k)
		if !ok || !b.enabled[src] {
			bad = append(bad, k)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return domain.NewValidationError("author_ids", "unsupported keys: "+strings.Join(bad, ", "))
}
