package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_scim_new")

	assert.NotNil(t, m.RefreshesStarted)
	assert.NotNil(t, m.RefreshesCompleted)
	assert.NotNil(t, m.RefreshesFailed)
	assert.NotNil(t, m.RefreshDuration)
	assert.NotNil(t, m.Extractions)
	assert.NotNil(t, m.ExtractionDuration)
	assert.NotNil(t, m.ProviderRequestsTotal)
	assert.NotNil(t, m.ProviderRequestsFailed)
	assert.NotNil(t, m.ProviderRateLimited)
	assert.NotNil(t, m.RecordsUpserted)
	assert.NotNil(t, m.RecordsDeleted)
	assert.NotNil(t, m.AuthorIDUpdates)
	assert.NotNil(t, m.CacheHits)
	assert.NotNil(t, m.CacheMisses)
}

func TestRecordRefreshLifecycle(t *testing.T) {
	m := NewMetrics("test_scim_refresh")

	m.RecordRefreshStarted()
	m.RecordRefreshCompleted(1.5)
	m.RecordRefreshStarted()
	m.RecordRefreshFailed(0.2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RefreshesStarted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RefreshesCompleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RefreshesFailed))

	histCount, err := getHistogramSampleCount(m.RefreshDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), histCount)
}

func TestRecordExtraction(t *testing.T) {
	m := NewMetrics("test_scim_extraction")

	m.RecordExtraction("openalex", OutcomeOK, 0.3)
	m.RecordExtraction("openalex", OutcomeEmpty, 0.1)
	m.RecordExtraction("google_scholar", OutcomeError, 2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Extractions.WithLabelValues("openalex", OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Extractions.WithLabelValues("openalex", OutcomeEmpty)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Extractions.WithLabelValues("google_scholar", OutcomeError)))
}

func TestRecordProviderRequest(t *testing.T) {
	m := NewMetrics("test_scim_provider_request")

	m.RecordProviderRequest("semantic_scholar", "author", 0.5)
	m.RecordProviderRequestFailed("semantic_scholar", "author", "timeout")
	m.RecordProviderRateLimited("semantic_scholar")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProviderRequestsTotal.WithLabelValues("semantic_scholar", "author")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProviderRequestsFailed.WithLabelValues("semantic_scholar", "author", "timeout")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProviderRateLimited.WithLabelValues("semantic_scholar")))
}

func TestRecordStoreWrites(t *testing.T) {
	m := NewMetrics("test_scim_store")

	m.RecordUpsert("openalex")
	m.RecordUpsert("openalex")
	m.RecordDeleted(3)
	m.RecordAuthorIDUpdate()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RecordsUpserted.WithLabelValues("openalex")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.RecordsDeleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuthorIDUpdates))
}

func TestRecordCacheLookup(t *testing.T) {
	m := NewMetrics("test_scim_cache")

	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheMisses))
}

// Helper to get histogram sample count
func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var dto = &dto.Metric{}
	if err := m.Write(dto); err != nil {
		return 0, err
	}

	return dto.Histogram.GetSampleCount(), nil
}
