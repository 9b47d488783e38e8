// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/deepsearch-engine/internal/llm"
	"github.com/pdiddy/deepsearch-engine/internal/visit"
	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// scriptStep is one canned provider response.
type scriptStep struct {
	text string
	err  error
}

// scriptedProvider plays back responses in call order and counts calls.
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

// newTestGateway wraps a provider in a gateway with no retry schedule, so
// every gateway call is a single attempt.
func newTestGateway(p llm.Provider) *llm.Gateway {
	return llm.NewGateway(p, types.LLMConfig{}, zap.NewNop())
}

// fakeVisitor serves pages from a map and records which URLs were fetched.
type fakeVisitor struct {
	mu      sync.Mutex
	pages   map[string]visit.Page
	visited []string
}

func (v *fakeVisitor) Visit(ctx context.Context, url string) (visit.Page, error) {
	v.mu.Lock()
	v.visited = append(v.visited, url)
	v.mu.Unlock()
	page, ok := v.pages[url]
	if !ok {
		return visit.Page{}, fmt.Errorf("fetching %s: not found", url)
	}
	return page, nil
}

func (v *fakeVisitor) visitCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.visited)
}

// fakeEngine returns fixed results for every query.
type fakeEngine struct {
	name    string
	results []types.RawResult
	err     error
	limited bool
}

func (e *fakeEngine) Name() string      { return e.name }
func (e *fakeEngine) RateLimited() bool { return e.limited }

func (e *fakeEngine) Search(ctx context.Context, query string, limit int) ([]types.RawResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	if limit > 0 && len(e.results) > limit {
		return e.results[:limit], nil
	}
	return e.results, nil
}
