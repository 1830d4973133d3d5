package extractors

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scientometrics-service/internal/domain"
)

// constantExtractor returns fixed metrics tagged with its name.
func constantExtractor(name string) Factory {
	return func() MetricExtractor {
		return ExtractorFunc(func(_ context.Context, authorID string) (domain.Metrics, error) {
			return domain.Metrics{"by": name, "author": authorID}, nil
		})
	}
}

func defaultMapping() map[string]Factory {
	return map[string]Factory{
		"google_scholar_author":   constantExtractor("gs"),
		"semantic_scholar_author": constantExtractor("s2"),
		"openalex_author":         constantExtractor("oa"),
	}
}

func TestRegistry_Resolve(t *testing.T) {
	t.Run("resolves defaults", func(t *testing.T) {
		r := NewRegistry(defaultMapping())

		ex, err := r.Resolve("openalex_author")
		require.NoError(t, err)

		m, err := ex.ExtractMetrics(context.Background(), "A1")
		require.NoError(t, err)
		assert.Equal(t, "oa", m["by"])
		assert.Equal(t, "A1", m["author"])
	})

	t.Run("unknown key", func(t *testing.T) {
		r := NewRegistry(defaultMapping())

		_, err := r.Resolve("orcid_author")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrUnsupportedSource))

		var use *domain.UnsupportedSourceError
		require.ErrorAs(t, err, &use)
		assert.Equal(t, "orcid_author", use.Key)
	})

	t.Run("builds each extractor once", func(t *testing.T) {
		var built atomic.Int32
		r := NewRegistry(map[string]Factory{
			"openalex_author": func() MetricExtractor {
				built.Add(1)
				return ExtractorFunc(func(context.Context, string) (domain.Metrics, error) { return nil, nil })
			},
		})

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := r.Resolve("openalex_author")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), built.Load())
	})

	t.Run("nil factory result is unsupported", func(t *testing.T) {
		r := NewRegistry(map[string]Factory{"x_author": func() MetricExtractor { return nil }})
		_, err := r.Resolve("x_author")
		assert.True(t, errors.Is(err, domain.ErrUnsupportedSource))
	})
}

func TestRegistry_AddProvider(t *testing.T) {
	t.Run("override replaces defaults entirely", func(t *testing.T) {
		r := NewRegistry(defaultMapping())
		r.AddProvider(ProviderFunc(func() map[string]Factory {
			return map[string]Factory{"orcid_author": constantExtractor("orcid")}
		}))

		ex, err := r.Resolve("orcid_author")
		require.NoError(t, err)
		m, err := ex.ExtractMetrics(context.Background(), "0000")
		require.NoError(t, err)
		assert.Equal(t, "orcid", m["by"])

		_, err = r.Resolve("openalex_author")
		assert.True(t, errors.Is(err, domain.ErrUnsupportedSource), "defaults must not survive an override")
		assert.Equal(t, []string{"orcid_author"}, r.Keys())
	})

	t.Run("empty provider mapping keeps defaults", func(t *testing.T) {
		r := NewRegistry(defaultMapping())
		r.AddProvider(ProviderFunc(func() map[string]Factory { return nil }))

		_, err := r.Resolve("openalex_author")
		require.NoError(t, err)
		assert.Len(t, r.Keys(), 3)
	})

	t.Run("first non-empty provider wins", func(t *testing.T) {
		var secondCalled bool
		r := NewRegistry(defaultMapping())
		r.AddProvider(ProviderFunc(func() map[string]Factory { return map[string]Factory{} }))
		r.AddProvider(ProviderFunc(func() map[string]Factory {
			return map[string]Factory{"openalex_author": constantExtractor("first")}
		}))
		r.AddProvider(ProviderFunc(func() map[string]Factory {
			secondCalled = true
			return map[string]Factory{"openalex_author": constantExtractor("second")}
		}))

		ex, err := r.Resolve("openalex_author")
		require.NoError(t, err)
		m, _ := ex.ExtractMetrics(context.Background(), "A1")
		assert.Equal(t, "first", m["by"])
		assert.False(t, secondCalled)
	})

	t.Run("adding a provider drops cached extractors", func(t *testing.T) {
		r := NewRegistry(defaultMapping())
		_, err := r.Resolve("openalex_author")
		require.NoError(t, err)

		r.AddProvider(ProviderFunc(func() map[string]Factory {
			return map[string]Factory{"openalex_author": constantExtractor("host")}
		}))

		ex, err := r.Resolve("openalex_author")
		require.NoError(t, err)
		m, _ := ex.ExtractMetrics(context.Background(), "A1")
		assert.Equal(t, "host", m["by"])
	})
}

func TestRegistry_Keys(t *testing.T) {
	r := NewRegistry(defaultMapping())
	assert.Equal(t, []string{"google_scholar_author", "openalex_author", "semantic_scholar_author"}, r.Keys())
}

func TestFinish(t *testing.T) {
	t.Run("not found becomes empty", func(t *testing.T) {
		m, err := Finish(domain.SourceOpenAlex, nil, domain.NewNotFoundError("author", "A1"))
		require.NoError(t, err)
		assert.NotNil(t, m)
		assert.Empty(t, m)
	})

	t.Run("other errors become provider errors", func(t *testing.T) {
		_, err := Finish(domain.SourceOpenAlex, nil, domain.NewExternalAPIError("openalex", 500, "boom", nil))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrProvider))

		var pe *domain.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, domain.SourceOpenAlex, pe.Source)

		var api *domain.ExternalAPIError
		require.ErrorAs(t, err, &api)
		assert.Equal(t, 500, api.StatusCode)
	})

	t.Run("provider errors are not wrapped twice", func(t *testing.T) {
		orig := domain.NewProviderError(domain.SourceGoogleScholar, errors.New("layout changed"))
		_, err := Finish(domain.SourceGoogleScholar, nil, orig)
		assert.Same(t, orig, err)
	})

	t.Run("nil metrics become empty map", func(t *testing.T) {
		m, err := Finish(domain.SourceOpenAlex, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.Metrics{}, m)
	})
}
