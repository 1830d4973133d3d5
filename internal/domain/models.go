// Package domain provides domain models for the scientometrics service.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies a metric provider, e.g. "openalex".
type Source string

const (
	SourceGoogleScholar   Source = "google_scholar"
	SourceSemanticScholar Source = "semantic_scholar"
	SourceOpenAlex        Source = "openalex"
)

const (
	authorIDSuffix  = "_author_id"
	extractorSuffix = "_author"
)

// DefaultSources returns the built-in providers in their canonical order.
func DefaultSources() []Source {
	return []Source{SourceGoogleScholar, SourceSemanticScholar, SourceOpenAlex}
}

// AuthorIDKey returns the profile extras key holding the author id for s.
func (s Source) AuthorIDKey() string {
	return string(s) + authorIDSuffix
}

// ExtractorKey returns the registry key of the extractor serving s.
func (s Source) ExtractorKey() string {
	return string(s) + extractorSuffix
}

// SourceFromAuthorIDKey is the inverse of AuthorIDKey.
func SourceFromAuthorIDKey(key string) (Source, bool) {
	name, ok := strings.CutSuffix(key, authorIDSuffix)
	if !ok || name == "" {
		return "", false
	}
	return Source(name), true
}

// ParseSources converts raw names to sources, dropping blanks and duplicates
// while keeping first-seen order.
func ParseSources(names []string) []Source {
	out := make([]Source, 0, len(names))
	seen := make(map[Source]bool, len(names))
	for _, n := range names {
		s := Source(strings.TrimSpace(n))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Canonical metric names shared by every extractor.
const (
	MetricHIndex          = "h_index"
	MetricHIndex5y        = "h_index_5y"
	MetricI10Index        = "i10_index"
	MetricI10Index5y      = "i10_index_5y"
	MetricCitationCount   = "citation_count"
	MetricCitationCount5y = "citation_count_5y"
	MetricPaperCount      = "paper_count"

	// MetricAuthorID is added to every persisted payload.
	MetricAuthorID = "author_id"
	// MetricExternalID and MetricURL may be supplied by an extractor to
	// override the stored external reference.
	MetricExternalID = "external_id"
	MetricURL        = "url"
	// MetricError carries the message of a failed source in refresh results.
	MetricError = "error"
)

// Metrics is the normalized output of an extractor. An empty map means the
// provider has no data for the author.
type Metrics map[string]any

// Clone returns a shallow copy of m.
func (m Metrics) Clone() Metrics {
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the value of key when it is a non-empty string.
func (m Metrics) String(key string) (string, bool) {
	s, ok := m[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// ErrorMetrics builds the per-source entry reported for a failed source.
func ErrorMetrics(err error) Metrics {
	return Metrics{MetricError: err.Error()}
}

// MetricStatus is the lifecycle marker of a stored metric record.
// These values must match the scientometrics_metrics.status check constraint.
type MetricStatus string

const (
	MetricStatusPending MetricStatus = "pending"
	MetricStatusOK      MetricStatus = "ok"
	MetricStatusError   MetricStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s MetricStatus) Valid() bool {
	switch s {
	case MetricStatusPending, MetricStatusOK, MetricStatusError:
		return true
	default:
		return false
	}
}

// ExternalRef points at the author's page on the provider.
type ExternalRef struct {
	ID  string  `json:"id"`
	URL *string `json:"url"`
}

// MetricRecord is the persisted metrics of one user from one source.
// (UserID, Source) is unique.
type MetricRecord struct {
	ID        uuid.UUID    `json:"id"`
	UserID    string       `json:"user_id"`
	Source    Source       `json:"source"`
	Metrics   Metrics      `json:"metrics"`
	External  ExternalRef  `json:"external"`
	Status    MetricStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
