// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deepsearch-engine/internal/session"
	"github.com/pdiddy/deepsearch-engine/internal/visit"
	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

const quicPageText = `# QUIC

QUIC was designed at Google and later standardized by the IETF.
RFC 9000 defines the transport protocol itself.
The protocol multiplexes streams over UDP to avoid head-of-line blocking.`

func quicPage() visit.Page {
	return visit.Page{
		Title:     "QUIC",
		Markdown:  quicPageText,
		PlainText: quicPageText,
	}
}

func citationConfig() types.CitationConfig {
	return types.CitationConfig{
		MaxURLs:          10,
		Concurrency:      1,
		MinContentLength: 10,
	}
}

func citationState(t *testing.T) *types.ResearchState {
	t.Helper()
	state := session.New("history of the QUIC protocol", 3)
	session.StartRound(state)
	return state
}

func TestCitationCollectorVerifiedQuotes(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptStep{
		{text: `{
			"quality": "high",
			"quality_note": "primary standards document",
			"quotes": ["RFC 9000 defines the transport protocol itself."]
		}`},
	}}
	visitor := &fakeVisitor{pages: map[string]visit.Page{
		"https://example.com/quic": quicPage(),
	}}
	cc := NewCitationCollector(newTestGateway(provider), visitor, citationConfig(), nil)

	state := citationState(t)
	var progressed []string
	outcome := cc.Collect(context.Background(), state, []types.MergedResult{
		{URLKey: "example.com/quic", URL: "https://example.com/quic", Title: "fallback"},
	}, func(url string, verified int) {
		progressed = append(progressed, url)
		assert.Equal(t, 1, verified)
	})

	require.Len(t, outcome.Citations, 1)
	c := outcome.Citations[0]
	assert.Equal(t, 1, c.ID)
	assert.Equal(t, "QUIC", c.Title)
	assert.Equal(t, types.QualityHigh, c.Quality)
	assert.Equal(t, "primary standards document", c.QualityNote)
	assert.Equal(t, []string{"RFC 9000 defines the transport protocol itself."}, c.Quotes)
	assert.Equal(t, []string{"https://example.com/quic"}, outcome.Visited)
	assert.Empty(t, outcome.Failed)
	assert.Equal(t, []string{"https://example.com/quic"}, progressed)
}

func TestCitationCollectorCorrectionRoundRecoversQuote(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptStep{
		// Extraction: one quote verifies, one is paraphrased and fails.
		{text: `{
			"quality": "medium",
			"quality_note": "secondary source",
			"quotes": [
				"QUIC was designed at Google and later standardized by the IETF.",
				"QUIC runs streams over UDP to dodge head-of-line blocking."
			]
		}`},
		// First correction round returns the verbatim sentence.
		{text: `{"quotes": ["The protocol multiplexes streams over UDP to avoid head-of-line blocking."]}`},
	}}
	visitor := &fakeVisitor{pages: map[string]visit.Page{
		"https://example.com/quic": quicPage(),
	}}
	cc := NewCitationCollector(newTestGateway(provider), visitor, citationConfig(), nil)

	outcome := cc.Collect(context.Background(), citationState(t), []types.MergedResult{
		{URLKey: "example.com/quic", URL: "https://example.com/quic"},
	}, nil)

	require.Len(t, outcome.Citations, 1)
	assert.Equal(t, []string{
		"QUIC was designed at Google and later standardized by the IETF.",
		"The protocol multiplexes streams over UDP to avoid head-of-line blocking.",
	}, outcome.Citations[0].Quotes)
	assert.Equal(t, 2, provider.callCount())
}

func TestCitationCollectorDropsUnverifiableQuotes(t *testing.T) {
	fabricated := `{"quotes": ["This sentence does not appear on the page."]}`
	provider := &scriptedProvider{steps: []scriptStep{
		{text: `{
			"quality": "high",
			"quality_note": "n",
			"quotes": ["This sentence does not appear on the page."]
		}`},
		// Both correction rounds keep fabricating; the quote is dropped.
		{text: fabricated},
		{text: fabricated},
	}}
	visitor := &fakeVisitor{pages: map[string]visit.Page{
		"https://example.com/quic": quicPage(),
	}}
	cc := NewCitationCollector(newTestGateway(provider), visitor, citationConfig(), nil)

	outcome := cc.Collect(context.Background(), citationState(t), []types.MergedResult{
		{URLKey: "example.com/quic", URL: "https://example.com/quic"},
	}, nil)

	require.Len(t, outcome.Citations, 1)
	assert.Empty(t, outcome.Citations[0].Quotes)
	// Extraction plus exactly two correction rounds.
	assert.Equal(t, 3, provider.callCount())
	// The citation keeps its quality grade even with no surviving quotes,
	// so it is recorded but not usable.
	assert.Equal(t, types.QualityHigh, outcome.Citations[0].Quality)
	assert.False(t, outcome.Citations[0].Usable())
}

func TestCitationCollectorShortContentRejectedWithoutLLM(t *testing.T) {
	provider := &scriptedProvider{}
	visitor := &fakeVisitor{pages: map[string]visit.Page{
		"https://example.com/stub": {Title: "Stub", Markdown: "hi", PlainText: "hi"},
	}}
	cfg := citationConfig()
	cfg.MinContentLength = 200
	cc := NewCitationCollector(newTestGateway(provider), visitor, cfg, nil)

	outcome := cc.Collect(context.Background(), citationState(t), []types.MergedResult{
		{URLKey: "example.com/stub", URL: "https://example.com/stub"},
	}, nil)

	require.Len(t, outcome.Citations, 1)
	assert.Equal(t, types.QualityRejected, outcome.Citations[0].Quality)
	assert.Equal(t, "content empty or below minimum length", outcome.Citations[0].QualityNote)
	assert.Equal(t, 0, provider.callCount())
}

func TestCitationCollectorUnparseableExtraction(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptStep{
		{text: "here are some thoughts about the page, no JSON though"},
	}}
	visitor := &fakeVisitor{pages: map[string]visit.Page{
		"https://example.com/quic": quicPage(),
	}}
	cc := NewCitationCollector(newTestGateway(provider), visitor, citationConfig(), nil)

	outcome := cc.Collect(context.Background(), citationState(t), []types.MergedResult{
		{URLKey: "example.com/quic", URL: "https://example.com/quic"},
	}, nil)

	require.Len(t, outcome.Citations, 1)
	assert.Equal(t, types.QualityRejected, outcome.Citations[0].Quality)
	assert.Equal(t, "unparseable extraction response", outcome.Citations[0].QualityNote)
}

func TestCitationCollectorFetchFailure(t *testing.T) {
	provider := &scriptedProvider{}
	visitor := &fakeVisitor{pages: map[string]visit.Page{}}
	cc := NewCitationCollector(newTestGateway(provider), visitor, citationConfig(), nil)

	outcome := cc.Collect(context.Background(), citationState(t), []types.MergedResult{
		{URLKey: "example.com/gone", URL: "https://example.com/gone"},
	}, nil)

	assert.Empty(t, outcome.Citations)
	assert.Equal(t, []string{"https://example.com/gone"}, outcome.Failed)
	assert.Equal(t, 0, provider.callCount())
}

func TestCitationCollectorSkipsKnownURLs(t *testing.T) {
	provider := &scriptedProvider{}
	visitor := &fakeVisitor{pages: map[string]visit.Page{
		"https://example.com/quic": quicPage(),
	}}
	cc := NewCitationCollector(newTestGateway(provider), visitor, citationConfig(), nil)

	state := citationState(t)
	session.AppendCitations(state, []types.Citation{
		{ID: 1, URL: "https://example.com/quic", Quality: types.QualityHigh, Quotes: []string{"q"}},
	})

	outcome := cc.Collect(context.Background(), state, []types.MergedResult{
		{URLKey: "example.com/quic", URL: "https://example.com/quic"},
	}, nil)

	assert.Empty(t, outcome.Citations)
	assert.Empty(t, outcome.Failed)
	assert.Equal(t, 0, visitor.visitCount())
}

func TestCitationCollectorHonorsMaxURLs(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptStep{
		{text: `{"quality": "low", "quality_note": "n", "quotes": []}`},
	}}
	visitor := &fakeVisitor{pages: map[string]visit.Page{
		"https://example.com/1": quicPage(),
		"https://example.com/2": quicPage(),
	}}
	cfg := citationConfig()
	cfg.MaxURLs = 1
	cc := NewCitationCollector(newTestGateway(provider), visitor, cfg, nil)

	outcome := cc.Collect(context.Background(), citationState(t), []types.MergedResult{
		{URLKey: "example.com/1", URL: "https://example.com/1"},
		{URLKey: "example.com/2", URL: "https://example.com/2"},
	}, nil)

	require.Len(t, outcome.Citations, 1)
	assert.Equal(t, 1, visitor.visitCount())
}

func TestCitationCollectorCancelledBeforeStart(t *testing.T) {
	provider := &scriptedProvider{}
	visitor := &fakeVisitor{pages: map[string]visit.Page{
		"https://example.com/quic": quicPage(),
	}}
	cc := NewCitationCollector(newTestGateway(provider), visitor, citationConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := cc.Collect(ctx, citationState(t), []types.MergedResult{
		{URLKey: "example.com/quic", URL: "https://example.com/quic"},
	}, nil)

	assert.Empty(t, outcome.Citations)
	assert.Empty(t, outcome.Failed)
	assert.Equal(t, 0, visitor.visitCount())
}

func TestCitationIDsContinueSessionSequence(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptStep{
		{text: `{"quality": "high", "quality_note": "n", "quotes": []}`},
	}}
	visitor := &fakeVisitor{pages: map[string]visit.Page{
		"https://example.com/next": quicPage(),
	}}
	cc := NewCitationCollector(newTestGateway(provider), visitor, citationConfig(), nil)

	state := citationState(t)
	session.AppendCitations(state, []types.Citation{
		{ID: 4, URL: "https://example.com/old", Quality: types.QualityHigh, Quotes: []string{"q"}},
	})

	outcome := cc.Collect(context.Background(), state, []types.MergedResult{
		{URLKey: "example.com/next", URL: "https://example.com/next"},
	}, nil)

	require.Len(t, outcome.Citations, 1)
	assert.Equal(t, 5, outcome.Citations[0].ID)
}

func TestParseQuality(t *testing.T) {
	tests := []struct {
		in   string
		want types.CitationQuality
	}{
		{"high", types.QualityHigh},
		{" HIGH ", types.QualityHigh},
		{"medium", types.QualityMedium},
		{"low", types.QualityLow},
		{"rejected", types.QualityRejected},
		{"excellent", types.QualityRejected},
		{"", types.QualityRejected},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseQuality(tt.in), "input %q", tt.in)
	}
}
