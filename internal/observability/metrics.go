package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Extraction outcomes used as the "outcome" label.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Metrics contains all Prometheus metrics for the scientometrics service.
// All collectors are registered via promauto with the default registry.
type Metrics struct {
	// RefreshesStarted counts UpdateMetrics calls that passed validation.
	RefreshesStarted prometheus.Counter

	// RefreshesCompleted counts refreshes that persisted their results.
	RefreshesCompleted prometheus.Counter

	// RefreshesFailed counts refreshes aborted by a lookup or persistence error.
	RefreshesFailed prometheus.Counter

	// RefreshDuration observes end-to-end refresh duration in seconds.
	RefreshDuration prometheus.Histogram

	// Extractions counts extractor calls, labeled by source and outcome.
	Extractions *prometheus.CounterVec

	// ExtractionDuration observes extractor call duration, labeled by source.
	ExtractionDuration *prometheus.HistogramVec

	// ProviderRequestsTotal counts HTTP requests to providers, labeled by source and endpoint.
	ProviderRequestsTotal *prometheus.CounterVec

	// ProviderRequestsFailed counts failed provider requests, labeled by source, endpoint, and error type.
	ProviderRequestsFailed *prometheus.CounterVec

	// ProviderRequestDuration observes provider HTTP request duration in seconds.
	ProviderRequestDuration *prometheus.HistogramVec

	// ProviderRateLimited counts 429 responses, labeled by source.
	ProviderRateLimited *prometheus.CounterVec

	// RecordsUpserted counts metric records written, labeled by source.
	RecordsUpserted *prometheus.CounterVec

	// RecordsDeleted counts metric records removed.
	RecordsDeleted prometheus.Counter

	// AuthorIDUpdates counts author-id writes to user profiles.
	AuthorIDUpdates prometheus.Counter

	// CacheHits and CacheMisses count metric cache lookups.
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Refreshes
		RefreshesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_started_total",
			Help:      "Total number of metric refreshes started",
		}),
		RefreshesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_completed_total",
			Help:      "Total number of metric refreshes completed",
		}),
		RefreshesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_failed_total",
			Help:      "Total number of metric refreshes that failed",
		}),
		RefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of metric refreshes in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		// Extractions
		Extractions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Total number of extractor calls by source and outcome",
		}, []string{"source", "outcome"}),
		ExtractionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Duration of extractor calls in seconds by source",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),

		// Providers
		ProviderRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of requests to metric providers",
		}, []string{"source", "endpoint"}),
		ProviderRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_failed_total",
			Help:      "Total number of failed requests to metric providers",
		}, []string{"source", "endpoint", "error_type"}),
		ProviderRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of requests to metric providers in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source", "endpoint"}),
		ProviderRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_rate_limited_total",
			Help:      "Total number of rate limit responses from metric providers",
		}, []string{"source"}),

		// Store
		RecordsUpserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_upserted_total",
			Help:      "Total number of metric records upserted by source",
		}, []string{"source"}),
		RecordsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_deleted_total",
			Help:      "Total number of metric records deleted",
		}),
		AuthorIDUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "author_id_updates_total",
			Help:      "Total number of author id updates applied to user profiles",
		}),

		// Cache
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of metric cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of metric cache misses",
		}),
	}
}

// RecordRefreshStarted records that a refresh has started.
func (m *Metrics) RecordRefreshStarted() {
	m.RefreshesStarted.Inc()
}

// RecordRefreshCompleted records that a refresh has completed.
func (m *Metrics) RecordRefreshCompleted(durationSeconds float64) {
	m.RefreshesCompleted.Inc()
	m.RefreshDuration.Observe(durationSeconds)
}

// RecordRefreshFailed records that a refresh has failed.
func (m *Metrics) RecordRefreshFailed(durationSeconds float64) {
	m.RefreshesFailed.Inc()
	m.RefreshDuration.Observe(durationSeconds)
}

// RecordExtraction records one extractor call.
func (m *Metrics) RecordExtraction(source, outcome string, durationSeconds float64) {
	m.Extractions.WithLabelValues(source, outcome).Inc()
	m.ExtractionDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordProviderRequest records a request to a provider.
func (m *Metrics) RecordProviderRequest(source, endpoint string, durationSeconds float64) {
	m.ProviderRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.ProviderRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordProviderRequestFailed records a failed request to a provider.
func (m *Metrics) RecordProviderRequestFailed(source, endpoint, errorType string) {
	m.ProviderRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordProviderRateLimited records a rate limit response from a provider.
func (m *Metrics) RecordProviderRateLimited(source string) {
	m.ProviderRateLimited.WithLabelValues(source).Inc()
}

// RecordUpsert records a metric record write.
func (m *Metrics) RecordUpsert(source string) {
	m.RecordsUpserted.WithLabelValues(source).Inc()
}

// RecordDeleted records removed metric records.
func (m *Metrics) RecordDeleted(count int64) {
	m.RecordsDeleted.Add(float64(count))
}

// RecordAuthorIDUpdate records an author-id write.
func (m *Metrics) RecordAuthorIDUpdate() {
	m.AuthorIDUpdates.Inc()
}

// RecordCacheLookup records a metric cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.CacheHits.Inc()
		return
	}
	m.CacheMisses.Inc()
}
