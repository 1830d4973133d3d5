// Package openalex extracts author metrics from the OpenAlex API.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/scientometrics-service/internal/domain"
	"github.com/helixir/scientometrics-service/internal/extractors"
	"github.com/helixir/scientometrics-service/internal/observability"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit in requests per second.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// openAlexIDPrefix is the URL prefix of OpenAlex entity ids.
	openAlexIDPrefix = "https://openalex.org/"
)

// Config holds configuration for the OpenAlex extractor.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Email is the contact address for the polite pool.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// RateLimit defaults to DefaultRateLimit.
	RateLimit float64

	// BurstSize defaults to DefaultBurstSize.
	BurstSize int

	// Metrics is optional; provider requests are recorded when set.
	Metrics *observability.Metrics
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// Extractor implements extractors.MetricExtractor for OpenAlex.
type Extractor struct {
	config     Config
	httpClient *extractors.HTTPClient
}

var _ extractors.MetricExtractor = (*Extractor)(nil)

// New creates an OpenAlex extractor. If httpClient is nil one is built from cfg.
func New(cfg Config, httpClient *extractors.HTTPClient) *Extractor {
	cfg.applyDefaults()
	if httpClient == nil {
		ua := extractors.DefaultUserAgent
		if cfg.Email != "" {
			ua += " (mailto:" + cfg.Email + ")"
		}
		httpClient = extractors.NewHTTPClient(extractors.HTTPClientConfig{
			Source:    domain.SourceOpenAlex,
			Metrics:   cfg.Metrics,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
			UserAgent: ua,
		})
	}
	return &Extractor{config: cfg, httpClient: httpClient}
}

// ExtractMetrics fetches /authors/{id}. authorID may be a bare OpenAlex id
// ("A5023888391"), a full OpenAlex URL or any external id OpenAlex accepts
// (e.g. "orcid:0000-0002-1825-0097").
func (e *Extractor) ExtractMetrics(ctx context.Context, authorID string) (domain.Metrics, error) {
	metrics, err := e.extract(ctx, authorID)
	return extractors.Finish(domain.SourceOpenAlex, metrics, err)
}

func (e *Extractor) extract(ctx context.Context, authorID string) (domain.Metrics, error) {
	id := strings.TrimPrefix(strings.TrimSpace(authorID), openAlexIDPrefix)
	if id == "" {
		return nil, domain.NewValidationError("author_id", "author id is required")
	}

	endpoint, err := url.Parse(e.config.BaseURL + "/authors/" + url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("building author URL: %w", err)
	}
	if e.config.Email != "" {
		q := endpoint.Query()
		q.Set("mailto", e.config.Email)
		endpoint.RawQuery = q.Encode()
	}

	body, err := e.httpClient.Get(ctx, "authors", endpoint.String(), nil)
	if err != nil {
		return nil, err
	}

	var author Author
	if err := json.Unmarshal(body, &author); err != nil {
		return nil, fmt.Errorf("decoding author: %w", err)
	}
	return toMetrics(&author), nil
}

// toMetrics maps the OpenAlex author onto the canonical vocabulary.
// Indices OpenAlex leaves null are omitted.
func toMetrics(a *Author) domain.Metrics {
	m := domain.Metrics{}
	if a.SummaryStats != nil {
		if a.SummaryStats.HIndex != nil {
			m[domain.MetricHIndex] = *a.SummaryStats.HIndex
		}
		if a.SummaryStats.I10Index != nil {
			m[domain.MetricI10Index] = *a.SummaryStats.I10Index
		}
	}
	if a.CitedByCount != nil {
		m[domain.MetricCitationCount] = *a.CitedByCount
	}
	if a.WorksCount != nil {
		m[domain.MetricPaperCount] = *a.WorksCount
	}
	if a.ID != "" {
		m[domain.MetricExternalID] = strings.TrimPrefix(a.ID, openAlexIDPrefix)
		m[domain.MetricURL] = a.ID
	}
	return m
}
