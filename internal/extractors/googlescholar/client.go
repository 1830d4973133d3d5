// Package googlescholar extracts author metrics from Google Scholar profile
// pages. Scholar has no API, so the extractor reads the public profile page
// and parses its citation indices table.
package googlescholar

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/scientometrics-service/internal/domain"
	"github.com/helixir/scientometrics-service/internal/extractors"
	"github.com/helixir/scientometrics-service/internal/observability"
)

const (
	// DefaultBaseURL is the Google Scholar origin.
	DefaultBaseURL = "https://scholar.google.com"

	// DefaultRateLimit keeps well under Scholar's bot detection.
	DefaultRateLimit = 0.5

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// browserUserAgent is sent because Scholar serves a consent page to
	// unknown agents.
	browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Config holds configuration for the Google Scholar extractor.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	BurstSize int

	// Metrics is optional; provider requests are recorded when set.
	Metrics *observability.Metrics
}

// Extractor implements extractors.MetricExtractor for Google Scholar.
type Extractor struct {
	config     Config
	httpClient *extractors.HTTPClient
}

var _ extractors.MetricExtractor = (*Extractor)(nil)

// New creates a Google Scholar extractor. If httpClient is nil one is built
// from cfg.
func New(cfg Config, httpClient *extractors.HTTPClient) *Extractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
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
			Source:    domain.SourceGoogleScholar,
			Metrics:   cfg.Metrics,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
			UserAgent: browserUserAgent,
		})
	}
	return &Extractor{config: cfg, httpClient: httpClient}
}

// ProfileURL returns the public profile page of a Scholar user id.
func (e *Extractor) ProfileURL(authorID string) string {
	q := url.Values{}
	q.Set("user", authorID)
	q.Set("hl", "en")
	return e.config.BaseURL + "/citations?" + q.Encode()
}

// ExtractMetrics fetches and parses the profile page of authorID.
func (e *Extractor) ExtractMetrics(ctx context.Context, authorID string) (domain.Metrics, error) {
	metrics, err := e.extract(ctx, authorID)
	return extractors.Finish(domain.SourceGoogleScholar, metrics, err)
}

func (e *Extractor) extract(ctx context.Context, authorID string) (domain.Metrics, error) {
	id := strings.TrimSpace(authorID)
	if id == "" {
		return nil, domain.NewValidationError("author_id", "author id is required")
	}

	profileURL := e.ProfileURL(id)
	page, err := e.httpClient.Get(ctx, "citations", profileURL, http.Header{
		"Accept":          {"text/html"},
		"Accept-Language": {"en"},
	})
	if err != nil {
		return nil, err
	}

	idx, err := ParseProfile(page)
	if err != nil {
		return nil, err
	}

	return domain.Metrics{
		domain.MetricHIndex:          idx.HIndex,
		domain.MetricHIndex5y:        idx.HIndex5y,
		domain.MetricI10Index:        idx.I10Index,
		domain.MetricI10Index5y:      idx.I10Index5y,
		domain.MetricCitationCount:   idx.Citations,
		domain.MetricCitationCount5y: idx.Citations5y,
		domain.MetricExternalID:      id,
		domain.MetricURL:             profileURL,
	}, nil
}
