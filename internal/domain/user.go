package domain

import "time"

// User is the slice of the host's user profile this service reads and writes.
type User struct {
	ID   string
	Name string
	// PluginExtras holds free-form per-plugin data keyed by plugin name.
	PluginExtras map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthorIdentifiers maps a source to the user's author id on that source.
// A missing or empty value means the source is not tracked.
type AuthorIdentifiers map[Source]string

// AuthorIdentifiersFromExtras decodes a plugin extras section. Keys not of
// the form "<source>_author_id" and non-string values are ignored.
func AuthorIdentifiersFromExtras(section map[string]any) AuthorIdentifiers {
	ids := make(AuthorIdentifiers, len(section))
	for k, v := range section {
		src, ok := SourceFromAuthorIDKey(k)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			ids[src] = s
		}
	}
	return ids
}

// Declared returns the entries with a non-empty author id.
func (a AuthorIdentifiers) Declared() AuthorIdentifiers {
	out := make(AuthorIdentifiers, len(a))
	for src, id := range a {
		if id != "" {
			out[src] = id
		}
	}
	return out
}

// ToExtras encodes the identifiers as a plugin extras section.
func (a AuthorIdentifiers) ToExtras() map[string]any {
	out := make(map[string]any, len(a))
	for src, id := range a {
		out[src.AuthorIDKey()] = id
	}
	return out
}
