package extractors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/scientometrics-service/internal/domain"
	"github.com/helixir/scientometrics-service/internal/observability"
)

const (
	// DefaultUserAgent is sent when HTTPClientConfig.UserAgent is empty.
	DefaultUserAgent = "Helixir-ScientometricsService/1.0"

	// maxBodySize caps how much of a provider response is read.
	maxBodySize = 10 << 20

	// maxErrorBodySize caps how much of an error response ends up in messages.
	maxErrorBodySize = 1 << 10
)

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Source labels metrics and errors.
	Source domain.Source

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key.
	APIKey string

	// APIKeyHeader is the header carrying APIKey (e.g. "x-api-key").
	APIKeyHeader string

	// Metrics is optional.
	Metrics *observability.Metrics
}

// HTTPClient wraps http.Client with rate limiting. Requests are not retried:
// a refresh is retried as a whole by whoever triggered it.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do waits for the rate limiter, sets the User-Agent and optional API key
// headers, and executes the request once.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	if err := c.rateLimiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// Get fetches rawURL and returns the response body of a 2xx answer.
//
// A 404 yields a *domain.NotFoundError, a 429 a *domain.RateLimitError and
// any other non-2xx status a *domain.ExternalAPIError. endpoint labels the
// request in metrics.
func (c *HTTPClient) Get(ctx context.Context, endpoint, rawURL string, header http.Header) ([]byte, error) {
	source := string(c.config.Source)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.Do(req)
	if c.config.Metrics != nil {
		c.config.Metrics.RecordProviderRequest(source, endpoint, time.Since(start).Seconds())
	}
	if err != nil {
		c.recordFailure(endpoint, "transport")
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, domain.NewNotFoundError("author", endpoint)
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
		c.recordFailure(endpoint, "rate_limited")
		if c.config.Metrics != nil {
			c.config.Metrics.RecordProviderRateLimited(source)
		}
		return nil, domain.NewRateLimitError(source, retryAfter(resp))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		c.recordFailure(endpoint, "status_"+strconv.Itoa(resp.StatusCode))
		return nil, domain.NewExternalAPIError(source, resp.StatusCode, string(body), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.recordFailure(endpoint, "read")
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

func (c *HTTPClient) recordFailure(endpoint, errorType string) {
	if c.config.Metrics != nil {
		c.config.Metrics.RecordProviderRequestFailed(string(c.config.Source), endpoint, errorType)
	}
}

// retryAfter reads the Retry-After header as seconds or an HTTP date.
// Zero means the provider gave no hint.
func retryAfter(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}
	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return 0
}
