// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agents implements the research round's stages: query planning,
// result collection, citation extraction, the continue/exit refiner, and
// final answer synthesis. Each agent absorbs its own failures where a safe
// default exists; only the planner escalates, because a round without
// queries cannot proceed.
package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/deepsearch-engine/internal/llm"
	"github.com/pdiddy/deepsearch-engine/internal/session"
	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// Planner turns session state into the next round's search queries.
type Planner struct {
	gw     *llm.Gateway
	logger *zap.Logger
}

// NewPlanner constructs the query planner.
func NewPlanner(gw *llm.Gateway, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{gw: gw, logger: logger}
}

// plannerResponse is the JSON shape the planner model must return.
type plannerResponse struct {
	Queries []struct {
		Text      string `json:"text"`
		Rationale string `json:"rationale"`
	} `json:"queries"`
}

// Plan asks the LLM for the next round's queries. An unparseable or empty
// response is an error: unlike the other agents there is no safe default,
// a round cannot run without queries.
func (p *Planner) Plan(ctx context.Context, state *types.ResearchState) ([]types.Query, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	user, err := render(plannerUserTmpl, struct {
		State    string
		Feedback string
		Round    int
	}{
		State:    session.Render(state),
		Feedback: session.LastFeedback(state),
		Round:    state.Metrics.RoundCount,
	})
	if err != nil {
		return nil, err
	}

	text, provider, err := p.gw.Call(ctx, plannerSystem, user, 1024, 0.3)
	if err != nil {
		return nil, fmt.Errorf("planning queries: %w", err)
	}

	var resp plannerResponse
	if !llm.ParseInto(text, &resp) {
		return nil, fmt.Errorf("planning queries: unparseable response from %s", provider)
	}

	var queries []types.Query
	for _, q := range resp.Queries {
		if strings.TrimSpace(q.Text) == "" {
			continue
		}
		queries = append(queries, types.Query{Text: q.Text, Rationale: q.Rationale})
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("planning queries: empty query list from %s", provider)
	}

	p.logger.Info("planned queries",
		zap.String("session_id", state.SessionID),
		zap.Int("round", state.Metrics.RoundCount),
		zap.Int("count", len(queries)))

	return queries, nil
}
