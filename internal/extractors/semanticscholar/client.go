// Package semanticscholar extracts author metrics from the Semantic Scholar
// Graph API.
package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/scientometrics-service/internal/domain"
	"github.com/helixir/scientometrics-service/internal/extractors"
	"github.com/helixir/scientometrics-service/internal/observability"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit. Unauthenticated clients
	// share a pool, so stay low.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	apiKeyHeader = "x-api-key"

	authorFields = "name,url,hIndex,citationCount,paperCount"
)

// Config contains configuration options for the Semantic Scholar extractor.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is optional. Authenticated requests get higher rate limits.
	APIKey string

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// RateLimit defaults to DefaultRateLimit.
	RateLimit float64

	// BurstSize defaults to DefaultBurstSize.
	BurstSize int

	// Metrics is optional; provider requests are recorded when set.
	Metrics *observability.Metrics
}

// Extractor implements extractors.MetricExtractor for Semantic Scholar.
type Extractor struct {
	httpClient *extractors.HTTPClient
	config     Config
}

// Compile-time check that Extractor implements extractors.MetricExtractor.
var _ extractors.MetricExtractor = (*Extractor)(nil)

// New creates a Semantic Scholar extractor.
// If httpClient is nil, one is created from cfg.
func New(cfg Config, httpClient *extractors.HTTPClient) *Extractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}

	if httpClient == nil {
		httpClient = extractors.NewHTTPClient(extractors.HTTPClientConfig{
			Source:       domain.SourceSemanticScholar,
			Metrics:      cfg.Metrics,
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
		})
	}

	return &Extractor{
		httpClient: httpClient,
		config:     cfg,
	}
}

// ExtractMetrics fetches /author/{id}.
func (e *Extractor) ExtractMetrics(ctx context.Context, authorID string) (domain.Metrics, error) {
	metrics, err := e.extract(ctx, authorID)
	return extractors.Finish(domain.SourceSemanticScholar, metrics, err)
}

func (e *Extractor) extract(ctx context.Context, authorID string) (domain.Metrics, error) {
	id := strings.TrimSpace(authorID)
	if id == "" {
		return nil, domain.NewValidationError("author_id", "author id is required")
	}

	authorURL := fmt.Sprintf("%s/author/%s?fields=%s", e.config.BaseURL, url.PathEscape(id), url.QueryEscape(authorFields))

	body, err := e.httpClient.Get(ctx, "author", authorURL, nil)
	if err != nil {
		return nil, describeError(err)
	}

	var author Author
	if err := json.Unmarshal(body, &author); err != nil {
		return nil, fmt.Errorf("decoding author: %w", err)
	}
	return toMetrics(&author), nil
}

// describeError replaces a raw JSON error body with the message it carries.
func describeError(err error) error {
	var api *domain.ExternalAPIError
	if !errors.As(err, &api) {
		return err
	}
	var resp ErrorResponse
	if json.Unmarshal([]byte(api.Message), &resp) == nil {
		if msg := firstNonEmpty(resp.Error, resp.Message); msg != "" {
			return domain.NewExternalAPIError(api.Source, api.StatusCode, msg, api.Cause)
		}
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func toMetrics(a *Author) domain.Metrics {
	m := domain.Metrics{}
	if a.HIndex != nil {
		m[domain.MetricHIndex] = *a.HIndex
	}
	if a.CitationCount != nil {
		m[domain.MetricCitationCount] = *a.CitationCount
	}
	if a.PaperCount != nil {
		m[domain.MetricPaperCount] = *a.PaperCount
	}
	if a.AuthorID != "" {
		m[domain.MetricExternalID] = a.AuthorID
	}
	if a.URL != "" {
		m[domain.MetricURL] = a.URL
	}
	return m
}
