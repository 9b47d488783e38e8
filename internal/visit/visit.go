// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package visit defines the page visitor collaborator contract and a bundled
// HTTP implementation. Browser automation, bot-detection handling and
// screenshots live in external implementations of the same interface.
package visit

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Page is the fetched content of one URL in two renditions. Markdown keeps
// heading and link structure; PlainText is tag-stripped prose. Quote
// verification tries both because markup can break word adjacency.
type Page struct {
	Title     string
	Markdown  string
	PlainText string
}

// Visitor retrieves the content of a URL.
type Visitor interface {
	Visit(ctx context.Context, url string) (Page, error)
}

// maxFetchBytes caps page content so a single page cannot overwhelm the LLM
// context.
const maxFetchBytes = 64 * 1024

// HTTPVisitor fetches pages with plain HTTP and converts the HTML to text.
type HTTPVisitor struct {
	client    *http.Client
	userAgent string
}

// NewHTTP creates a visitor with a modest timeout.
func NewHTTP(timeout time.Duration, userAgent string) *HTTPVisitor {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPVisitor{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Visit downloads the URL and returns both renditions of its content.
func (v *HTTPVisitor) Visit(ctx context.Context, url string) (Page, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return Page{}, errors.New("visit url is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return Page{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetching %s: %w", trimmed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("fetching %s: http %d", trimmed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return Page{}, fmt.Errorf("reading %s: %w", trimmed, err)
	}

	raw := string(body)
	return Page{
		Title:     extractTitle(raw),
		Markdown:  toMarkdown(raw),
		PlainText: toPlainText(raw),
	}, nil
}

var (
	reTitle      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	reScript     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reStyle      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reNav        = regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`)
	reHeader     = regexp.MustCompile(`(?is)<header[^>]*>.*?</header>`)
	reFooter     = regexp.MustCompile(`(?is)<footer[^>]*>.*?</footer>`)
	reHeading    = regexp.MustCompile(`(?is)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
	reAnchor     = regexp.MustCompile(`(?is)<a[^>]*href=['"]([^'"]*)['"][^>]*>(.*?)</a>`)
	reBlockEnd   = regexp.MustCompile(`(?i)</(p|div|li|tr|table|blockquote)>`)
	reBreak      = regexp.MustCompile(`(?i)<br[^>]*>`)
	reTags       = regexp.MustCompile(`<[^>]+>`)
	reWhitespace = regexp.MustCompile(`[ \t]+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

func extractTitle(raw string) string {
	m := reTitle.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return html.UnescapeString(strings.TrimSpace(reTags.ReplaceAllString(m[1], "")))
}

// stripChrome removes non-content elements shared by both renditions.
func stripChrome(raw string) string {
	s := reScript.ReplaceAllString(raw, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reNav.ReplaceAllString(s, "")
	s = reHeader.ReplaceAllString(s, "")
	s = reFooter.ReplaceAllString(s, "")
	return s
}

// toMarkdown converts headings and links into markdown syntax before
// stripping the remaining tags, preserving document structure.
func toMarkdown(raw string) string {
	s := stripChrome(raw)
	s = reHeading.ReplaceAllStringFunc(s, func(m string) string {
		parts := reHeading.FindStringSubmatch(m)
		level := int(parts[1][0] - '0')
		text := strings.TrimSpace(reTags.ReplaceAllString(parts[2], ""))
		return "\n" + strings.Repeat("#", level) + " " + text + "\n"
	})
	s = reAnchor.ReplaceAllString(s, "[$2]($1)")
	s = reBreak.ReplaceAllString(s, "\n")
	s = reBlockEnd.ReplaceAllString(s, "\n")
	return collapse(s)
}

// toPlainText strips every tag, keeping word adjacency across inline markup.
func toPlainText(raw string) string {
	s := stripChrome(raw)
	s = reBreak.ReplaceAllString(s, "\n")
	s = reBlockEnd.ReplaceAllString(s, "\n")
	s = reTags.ReplaceAllString(s, " ")
	return collapse(s)
}

func collapse(s string) string {
	s = reTags.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = reWhitespace.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	joined := strings.Join(out, "\n")
	joined = reBlankLines.ReplaceAllString(joined, "\n\n")
	return strings.TrimSpace(joined)
}
