package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scientometrics-service/internal/config"
	"github.com/helixir/scientometrics-service/internal/domain"
	"github.com/helixir/scientometrics-service/internal/extractors/googlescholar"
	"github.com/helixir/scientometrics-service/internal/extractors/openalex"
	"github.com/helixir/scientometrics-service/internal/extractors/semanticscholar"
	"github.com/helixir/scientometrics-service/internal/observability"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(config.ExtractorsConfig{}, nil)

	assert.Equal(t, []string{"google_scholar_author", "openalex_author", "semantic_scholar_author"}, r.Keys())

	gs, err := r.Resolve("google_scholar_author")
	require.NoError(t, err)
	assert.IsType(t, &googlescholar.Extractor{}, gs)

	s2, err := r.Resolve("semantic_scholar_author")
	require.NoError(t, err)
	assert.IsType(t, &semanticscholar.Extractor{}, s2)

	oa, err := r.Resolve("openalex_author")
	require.NoError(t, err)
	assert.IsType(t, &openalex.Extractor{}, oa)
}

func TestDefaults_UseConfigAndMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"https://openalex.org/A1","works_count":1}`))
	}))
	defer server.Close()

	metrics := observability.NewMetrics("test_builtin_defaults")
	cfg := config.ExtractorsConfig{
		OpenAlex: config.ExtractorConfig{BaseURL: server.URL, Timeout: 5 * time.Second, RateLimit: 100, Burst: 10},
	}

	ex := Defaults(cfg, metrics)[domain.SourceOpenAlex.ExtractorKey()]()
	m, err := ex.ExtractMetrics(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, 1, m[domain.MetricPaperCount])
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ProviderRequestsTotal.WithLabelValues("openalex", "authors")))
}
