// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package websearch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// ddgEndpoint is the DuckDuckGo lite HTML interface, the most stable surface
// for parsing. Package-level var for test substitution.
var ddgEndpoint = "https://lite.duckduckgo.com/lite/"

// DuckDuckGo implements Engine against DuckDuckGo's lite HTML interface.
type DuckDuckGo struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     types.SearchConfig

	// lastLimited holds the unix time of the last 429 that survived
	// retries; the engine reports itself rate-limited for a cooldown
	// window after that.
	lastLimited atomic.Int64
}

// rateLimitCooldown is how long the engine reports RateLimited after an
// unresolved 429.
const rateLimitCooldown = 5 * time.Minute

// NewDuckDuckGo creates the engine with a 1 query/second limiter shared by
// all goroutines using this instance.
func NewDuckDuckGo(cfg types.SearchConfig) *DuckDuckGo {
	return &DuckDuckGo{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		cfg:     cfg,
	}
}

// Name identifies the engine in merged results.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// RateLimited reports whether the engine recently exhausted its 429 retries.
func (d *DuckDuckGo) RateLimited() bool {
	last := d.lastLimited.Load()
	return last > 0 && time.Since(time.Unix(last, 0)) < rateLimitCooldown
}

// Search posts the query to the lite endpoint and parses result links.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]types.RawResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ddgEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := doWithRetry(ctx, d.client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("querying duckduckgo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		d.lastLimited.Store(time.Now().Unix())
		return nil, fmt.Errorf("duckduckgo rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	results := parseLiteResults(string(body))
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

var (
	// resultLinkRe matches result anchors in the lite page, in either
	// attribute order.
	resultLinkRe  = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	resultLinkRe2 = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)

	// resultSnippetRe matches the snippet cell following each link.
	resultSnippetRe = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>(.*?)</td>`)

	tagRe = regexp.MustCompile(`<[^>]+>`)
)

// parseLiteResults extracts results from the lite HTML page, resolving
// DuckDuckGo's redirect links to the target URL.
func parseLiteResults(page string) []types.RawResult {
	matches := resultLinkRe.FindAllStringSubmatch(page, -1)
	if len(matches) == 0 {
		matches = resultLinkRe2.FindAllStringSubmatch(page, -1)
	}
	snippets := resultSnippetRe.FindAllStringSubmatch(page, -1)

	var results []types.RawResult
	for i, m := range matches {
		target := resolveRedirect(strings.TrimSpace(m[1]))
		title := html.UnescapeString(strings.TrimSpace(m[2]))
		if target == "" || title == "" {
			continue
		}

		desc := ""
		if i < len(snippets) {
			desc = html.UnescapeString(strings.TrimSpace(tagRe.ReplaceAllString(snippets[i][1], "")))
		}

		results = append(results, types.RawResult{
			Engine:      "duckduckgo",
			URL:         target,
			Title:       title,
			Description: desc,
		})
	}
	return results
}

// resolveRedirect unwraps "//duckduckgo.com/l/?uddg=<encoded>" links.
func resolveRedirect(link string) string {
	if !strings.Contains(link, "duckduckgo.com/l/") {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return link
}
