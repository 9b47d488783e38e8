// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deepsearch-engine/internal/llm"
	"github.com/pdiddy/deepsearch-engine/internal/visit"
	"github.com/pdiddy/deepsearch-engine/internal/websearch"
	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// scriptStep is one canned provider response.
type scriptStep struct {
	text string
	err  error
}

// scriptedProvider plays back responses in call order.
type scriptedProvider struct {
	mu    sync.Mutex
	steps []scriptStep
	calls int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Call(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls >= len(p.steps) {
		p.calls++
		return "", fmt.Errorf("script exhausted at call %d", p.calls)
	}
	step := p.steps[p.calls]
	p.calls++
	return step.text, step.err
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeEngine returns the same fixed result list for every query.
type fakeEngine struct {
	results []types.RawResult
}

func (e *fakeEngine) Name() string      { return "fake" }
func (e *fakeEngine) RateLimited() bool { return false }

func (e *fakeEngine) Search(ctx context.Context, query string, limit int) ([]types.RawResult, error) {
	if limit > 0 && len(e.results) > limit {
		return e.results[:limit], nil
	}
	return e.results, nil
}

// fakeVisitor serves the same page for every URL.
type fakeVisitor struct {
	page visit.Page
}

func (v *fakeVisitor) Visit(ctx context.Context, url string) (visit.Page, error) {
	return v.page, nil
}

const testPageText = "QUIC was designed at Google and later standardized by the IETF as RFC 9000."

func testConfig(maxRounds int) types.Config {
	return types.Config{
		MaxRounds: maxRounds,
		LLM: types.LLMConfig{
			RetryDelays: []time.Duration{time.Millisecond},
		},
		Citations: types.CitationConfig{
			Concurrency:      1,
			MinContentLength: 10,
		},
	}
}

const plannerReply = `{"queries": [{"text": "QUIC protocol history", "rationale": "direct"}]}`

const extractionReply = `{
	"quality": "high",
	"quality_note": "primary source",
	"quotes": ["QUIC was designed at Google and later standardized by the IETF as RFC 9000."]
}`

func TestEngineNoProvider(t *testing.T) {
	_, err := New(nil, &fakeVisitor{}, nil, types.Config{}, nil, nil)
	require.ErrorIs(t, err, llm.ErrNoProvider)
}

func TestEngineSingleRoundBudgetExceeded(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptStep{
		{text: plannerReply},
		{text: extractionReply},
		{text: extractionReply},
		{text: "QUIC was standardized by the IETF [1][2]."},
	}}
	searcher := &fakeEngine{results: []types.RawResult{
		{Engine: "fake", URL: "https://example.com/quic", Title: "QUIC"},
		{Engine: "fake", URL: "https://example.com/rfc9000", Title: "RFC 9000"},
	}}
	visitor := &fakeVisitor{page: visit.Page{Title: "QUIC", Markdown: testPageText, PlainText: testPageText}}

	var mu sync.Mutex
	var messages []string
	eng, err := New([]websearch.Engine{searcher}, visitor, provider, testConfig(1), nil,
		func(round, maxRounds int, message string) {
			mu.Lock()
			messages = append(messages, message)
			mu.Unlock()
		})
	require.NoError(t, err)

	result, err := eng.RunDeepSearch(context.Background(), "history of the QUIC protocol")
	require.NoError(t, err)

	state := result.State
	assert.Equal(t, types.StatusBudgetExceeded, state.Status)
	assert.Equal(t, 1, state.Metrics.RoundCount)
	require.Len(t, state.Rounds, 1)

	citations := state.AllCitations()
	require.Len(t, citations, 2)
	assert.Equal(t, 1, citations[0].ID)
	assert.Equal(t, 2, citations[1].ID)
	assert.Equal(t, types.QualityHigh, citations[0].Quality)
	require.Len(t, citations[0].Quotes, 1)

	assert.Equal(t, "QUIC was standardized by the IETF [1][2].", result.Answer.Text)
	require.Len(t, result.Answer.UsedReferences, 2)
	assert.Equal(t, 0.8, result.Answer.Confidence)

	// The refiner's budget check is deterministic, so the only LLM calls
	// are planning, one extraction per URL, and synthesis.
	assert.Equal(t, 4, provider.callCount())

	joined := strings.Join(messages, "\n")
	assert.Contains(t, joined, "queries: QUIC protocol history")
	assert.Contains(t, joined, "visited https://example.com/quic")
	assert.Contains(t, joined, "synthesizing final answer")
}

func TestEngineRefinerContinuesThenExits(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptStep{
		{text: plannerReply},
		{text: extractionReply},
		{text: extractionReply},
		{text: extractionReply},
		{text: `{"decision": "continue", "reason": "gaps", "feedback": "chase deployment numbers"}`},
		{text: `{"queries": [{"text": "QUIC deployment statistics", "rationale": "feedback"}]}`},
		{text: `{"decision": "exit", "reason": "objective answered"}`},
		{text: "QUIC history is well documented [1][2][3]."},
	}}
	searcher := &fakeEngine{results: []types.RawResult{
		{Engine: "fake", URL: "https://example.com/a", Title: "A"},
		{Engine: "fake", URL: "https://example.com/b", Title: "B"},
		{Engine: "fake", URL: "https://example.com/c", Title: "C"},
	}}
	visitor := &fakeVisitor{page: visit.Page{Markdown: testPageText, PlainText: testPageText}}

	eng, err := New([]websearch.Engine{searcher}, visitor, provider, testConfig(3), nil, nil)
	require.NoError(t, err)

	result, err := eng.RunDeepSearch(context.Background(), "history of the QUIC protocol")
	require.NoError(t, err)

	state := result.State
	assert.Equal(t, types.StatusCompleted, state.Status)
	assert.Equal(t, 2, state.Metrics.RoundCount)
	require.Len(t, state.Rounds, 2)

	// Round 2 re-plans with the refiner's feedback but finds no fresh
	// URLs, so it adds no citations.
	assert.Equal(t, "chase deployment numbers", state.Rounds[0].RefinerFeedback)
	assert.Equal(t, "QUIC deployment statistics", state.Rounds[1].Queries[0].Text)
	assert.Empty(t, state.Rounds[1].Citations)

	assert.Len(t, state.AllCitations(), 3)
	assert.Len(t, result.Answer.UsedReferences, 3)
	assert.Equal(t, 8, provider.callCount())
}

func TestEngineSynthesizesAfterPlannerFailure(t *testing.T) {
	provider := &scriptedProvider{steps: []scriptStep{
		{err: assert.AnError},
		{err: assert.AnError},
		{text: "Nothing could be researched for this objective."},
	}}
	searcher := &fakeEngine{}
	visitor := &fakeVisitor{}

	eng, err := New([]websearch.Engine{searcher}, visitor, provider, testConfig(3), nil, nil)
	require.NoError(t, err)

	result, err := eng.RunDeepSearch(context.Background(), "anything")
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, result.State.Status)
	assert.Equal(t, "Nothing could be researched for this objective.", result.Answer.Text)
	assert.Empty(t, result.Answer.UsedReferences)
}

func TestEngineCancelledBeforeStart(t *testing.T) {
	provider := &scriptedProvider{}
	eng, err := New([]websearch.Engine{&fakeEngine{}}, &fakeVisitor{}, provider, testConfig(3), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := eng.RunDeepSearch(ctx, "anything")
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, result.State.Status)
	assert.Equal(t, 0.0, result.Answer.Confidence)
	assert.Contains(t, result.Answer.Text, "cancelled")
	assert.Equal(t, 0, provider.callCount())
}
