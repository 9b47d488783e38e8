// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package websearch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

func init() {
	RetryBaseDelay = time.Millisecond
}

const litePage = `<html><body><table>
<tr><td><a rel="nofollow" class='result-link' href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa">First &amp; Best</a></td></tr>
<tr><td class='result-snippet'>Snippet <b>one</b> here.</td></tr>
<tr><td><a rel="nofollow" class='result-link' href="https://example.org/b">Second</a></td></tr>
<tr><td class='result-snippet'>Snippet two.</td></tr>
</table></body></html>`

func newTestEngine() *DuckDuckGo {
	cfg := types.SearchConfig{}
	cfg.Timeout = 5 * time.Second
	cfg.UserAgent = "test/0.1"
	e := NewDuckDuckGo(cfg)
	return e
}

func withEndpoint(t *testing.T, url string) {
	t.Helper()
	old := ddgEndpoint
	ddgEndpoint = url
	t.Cleanup(func() { ddgEndpoint = old })
}

func TestDuckDuckGoParsesResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test query", r.PostForm.Get("q"))
		io.WriteString(w, litePage)
	}))
	defer ts.Close()
	withEndpoint(t, ts.URL)

	e := newTestEngine()
	results, err := e.Search(context.Background(), "test query", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "https://example.com/a", results[0].URL)
	assert.Equal(t, "First & Best", results[0].Title)
	assert.Equal(t, "Snippet one here.", results[0].Description)
	assert.Equal(t, "duckduckgo", results[0].Engine)
	assert.Equal(t, "https://example.org/b", results[1].URL)
}

func TestDuckDuckGoLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, litePage)
	}))
	defer ts.Close()
	withEndpoint(t, ts.URL)

	e := newTestEngine()
	results, err := e.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestDuckDuckGoEmptyQuery(t *testing.T) {
	e := newTestEngine()
	_, err := e.Search(context.Background(), "  ", 5)
	require.Error(t, err)
}

func TestDuckDuckGoRateLimitFlag(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()
	withEndpoint(t, ts.URL)

	e := newTestEngine()
	require.False(t, e.RateLimited())

	_, err := e.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.True(t, e.RateLimited())
}

func TestDoWithRetryRecoversFrom429(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	resp, err := doWithRetry(context.Background(), ts.Client(), req, 4)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestResolveRedirect(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"redirect", "//duckduckgo.com/l/?uddg=https%3A%2F%2Fa.com%2Fx", "https://a.com/x"},
		{"direct", "https://a.com/x", "https://a.com/x"},
		{"malformed keeps original", "//duckduckgo.com/l/?uddg=", "//duckduckgo.com/l/?uddg="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveRedirect(tt.in); got != tt.want {
				t.Errorf("resolveRedirect(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
