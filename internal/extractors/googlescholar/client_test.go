package googlescholar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scientometrics-service/internal/domain"
)

const profilePage = `<!doctype html>
<html><head><title>Jane Doe - Google Scholar</title></head>
<body>
<div id="gsc_prf_in">Jane Doe</div>
<div class="gsc_rsb_s gsc_prf_pnl" id="gsc_rsb_cit">
<table id="gsc_rsb_st">
  <thead><tr><th class="gsc_rsb_sth"></th><th class="gsc_rsb_sth">All</th><th class="gsc_rsb_sth">Since 2021</th></tr></thead>
  <tbody>
    <tr><td class="gsc_rsb_sc1"><a class="gsc_rsb_f">Citations</a></td><td class="gsc_rsb_std">12,345</td><td class="gsc_rsb_std">4,321</td></tr>
    <tr><td class="gsc_rsb_sc1"><a class="gsc_rsb_f">h-index</a></td><td class="gsc_rsb_std">42</td><td class="gsc_rsb_std">30</td></tr>
    <tr><td class="gsc_rsb_sc1"><a class="gsc_rsb_f">i10-index</a></td><td class="gsc_rsb_std">88</td><td class="gsc_rsb_std">61</td></tr>
  </tbody>
</table>
</div>
</body></html>`

func newTestExtractor(serverURL string) *Extractor {
	return New(Config{
		BaseURL:   serverURL,
		Timeout:   5 * time.Second,
		RateLimit: 100,
		BurstSize: 100,
	}, nil)
}

func TestParseProfile(t *testing.T) {
	t.Run("reads all six indices", func(t *testing.T) {
		idx, err := ParseProfile([]byte(profilePage))
		require.NoError(t, err)
		assert.Equal(t, &Indices{
			Citations:   12345,
			Citations5y: 4321,
			HIndex:      42,
			HIndex5y:    30,
			I10Index:    88,
			I10Index5y:  61,
		}, idx)
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := ParseProfile([]byte(`<html><body><form id="captcha-form"></form></body></html>`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gsc_rsb_st")
	})

	t.Run("truncated table", func(t *testing.T) {
		_, err := ParseProfile([]byte(`<table id="gsc_rsb_st"><tr><td class="gsc_rsb_std">1</td></tr></table>`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 cells")
	})

	t.Run("non numeric cell", func(t *testing.T) {
		page := `<table id="gsc_rsb_st"><tr>` +
			`<td class="gsc_rsb_std">1</td><td class="gsc_rsb_std">2</td>` +
			`<td class="gsc_rsb_std">x</td><td class="gsc_rsb_std">4</td>` +
			`<td class="gsc_rsb_std">5</td><td class="gsc_rsb_std">6</td></tr></table>`
		_, err := ParseProfile([]byte(page))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cell 2")
	})
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"0", 0},
		{"", 0},
		{"1,234", 1234},
		{"1 234", 1234},
	}
	for _, tt := range tests {
		got, err := parseCount(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestExtractor_ExtractMetrics(t *testing.T) {
	t.Run("maps profile to canonical metrics", func(t *testing.T) {
		var gotUser, gotUA string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/citations", r.URL.Path)
			gotUser = r.URL.Query().Get("user")
			gotUA = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(profilePage))
		}))
		defer server.Close()

		e := newTestExtractor(server.URL)
		m, err := e.ExtractMetrics(context.Background(), "qc6CJjYAAAAJ")
		require.NoError(t, err)

		assert.Equal(t, "qc6CJjYAAAAJ", gotUser)
		assert.Equal(t, browserUserAgent, gotUA)
		assert.Equal(t, domain.Metrics{
			"h_index":           42,
			"h_index_5y":        30,
			"i10_index":         88,
			"i10_index_5y":      61,
			"citation_count":    12345,
			"citation_count_5y": 4321,
			"external_id":       "qc6CJjYAAAAJ",
			"url":               server.URL + "/citations?hl=en&user=qc6CJjYAAAAJ",
		}, m)
	})

	t.Run("unknown profile yields empty metrics", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		m, err := newTestExtractor(server.URL).ExtractMetrics(context.Background(), "nobody")
		require.NoError(t, err)
		assert.Empty(t, m)
	})

	t.Run("captcha page is a provider error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><body>Please show you're not a robot</body></html>`))
		}))
		defer server.Close()

		_, err := newTestExtractor(server.URL).ExtractMetrics(context.Background(), "abc")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrProvider))
	})
}

func TestExtractor_ProfileURL(t *testing.T) {
	e := New(Config{BaseURL: "https://scholar.example.com/"}, nil)
	assert.Equal(t, "https://scholar.example.com/citations?hl=en&user=a+b", e.ProfileURL("a b"))
}
