// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine runs the round-based research state machine: plan queries,
// collect results, extract citations, decide continue/exit, and finally
// synthesize a cited answer. One Engine value serves one session at a time;
// all collaborators are explicit dependencies so concurrent sessions never
// share mutable state.
package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/deepsearch-engine/internal/agents"
	"github.com/pdiddy/deepsearch-engine/internal/llm"
	"github.com/pdiddy/deepsearch-engine/internal/session"
	"github.com/pdiddy/deepsearch-engine/internal/visit"
	"github.com/pdiddy/deepsearch-engine/internal/websearch"
	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// ProgressFunc streams human-readable progress to the caller. It fires
// after query generation, once per URL during citation extraction, and
// before final synthesis.
type ProgressFunc func(round, maxRounds int, message string)

// Result is the output of one research session.
type Result struct {
	Answer types.Answer
	State  *types.ResearchState
}

// Engine composes the agents over a shared gateway and configuration.
type Engine struct {
	cfg       types.Config
	planner   *agents.Planner
	collector *agents.Collector
	citations *agents.CitationCollector
	refiner   *agents.Refiner
	synth     *agents.Synthesizer
	logger    *zap.Logger
	progress  ProgressFunc
}

// New builds an engine from its collaborators. interactive may be nil when
// the caller cannot mediate LLM sampling; with no API configured either,
// construction fails with llm.ErrNoProvider, the one configuration error
// this system escalates.
func New(engines []websearch.Engine, visitor visit.Visitor, interactive llm.Provider, cfg types.Config, logger *zap.Logger, onProgress ProgressFunc) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Defaults()

	gw := llm.NewGateway(interactive, cfg.LLM, logger)
	if !gw.Available() {
		return nil, llm.ErrNoProvider
	}

	return &Engine{
		cfg:       cfg,
		planner:   agents.NewPlanner(gw, logger),
		collector: agents.NewCollector(engines, cfg.Search, logger),
		citations: agents.NewCitationCollector(gw, visitor, cfg.Citations, logger),
		refiner:   agents.NewRefiner(gw, logger),
		synth:     agents.NewSynthesizer(gw, logger),
		logger:    logger,
		progress:  onProgress,
	}, nil
}

// RunDeepSearch executes the full session for the objective. Cancellation
// is cooperative: it stops new work at the next checkpoint and still yields
// a best-effort synthesized answer over whatever was collected.
func (e *Engine) RunDeepSearch(ctx context.Context, objective string) (Result, error) {
	state := session.New(objective, e.cfg.MaxRounds)
	e.logger.Info("session started",
		zap.String("session_id", state.SessionID),
		zap.String("objective", objective),
		zap.Int("max_rounds", state.Metrics.MaxRounds))

	session.StartRound(state)
	e.runRounds(ctx, state)

	e.report(state, "synthesizing final answer")
	answer := e.synth.Synthesize(ctx, state)

	e.logger.Info("session finished",
		zap.String("session_id", state.SessionID),
		zap.String("status", string(state.Status)),
		zap.Int("rounds", state.Metrics.RoundCount),
		zap.Int("citations", len(state.AllCitations())))

	return Result{Answer: answer, State: state}, nil
}

// runRounds drives the round loop until exit, budget exhaustion,
// cancellation, or an unplannable round, setting the terminal status.
func (e *Engine) runRounds(ctx context.Context, state *types.ResearchState) {
	for state.Metrics.RoundCount <= state.Metrics.MaxRounds {
		if ctx.Err() != nil {
			state.Status = types.StatusCompleted
			return
		}

		round := session.CurrentRound(state)
		if len(round.Queries) == 0 {
			queries, err := e.planner.Plan(ctx, state)
			if err != nil {
				// A round without queries cannot proceed; stop
				// and synthesize from what exists.
				e.logger.Warn("planner failed, ending rounds",
					zap.String("session_id", state.SessionID),
					zap.Error(err))
				state.Status = types.StatusCompleted
				return
			}
			session.SetQueries(state, queries)
			e.report(state, "queries: "+queryList(queries))
		}

		if ctx.Err() != nil {
			state.Status = types.StatusCompleted
			return
		}
		results, err := e.collector.Collect(ctx, state, round.Queries)
		if err != nil {
			e.logger.Warn("result collection failed",
				zap.String("session_id", state.SessionID),
				zap.Error(err))
		}

		if ctx.Err() != nil {
			state.Status = types.StatusCompleted
			return
		}
		outcome := e.citations.Collect(ctx, state, results, func(url string, verified int) {
			e.report(state, fmt.Sprintf("visited %s (%d verified quotes)", url, verified))
		})
		session.AppendCitations(state, outcome.Citations)
		if len(outcome.Failed) > 0 {
			e.logger.Warn("urls failed during citation collection",
				zap.String("session_id", state.SessionID),
				zap.Strings("urls", outcome.Failed))
		}

		decision := e.refiner.Decide(ctx, state)
		session.RecordDecision(state, decision.Decision, decision.Feedback)

		if decision.Decision == types.DecisionExit {
			if decision.Reason == agents.ReasonBudgetExceeded {
				state.Status = types.StatusBudgetExceeded
			} else {
				state.Status = types.StatusCompleted
			}
			e.logger.Info("refiner exit",
				zap.String("session_id", state.SessionID),
				zap.String("reason", decision.Reason))
			return
		}

		if state.Metrics.RoundCount >= state.Metrics.MaxRounds {
			state.Status = types.StatusBudgetExceeded
			return
		}
		session.StartRound(state)
	}
}

func (e *Engine) report(state *types.ResearchState, message string) {
	if e.progress != nil {
		e.progress(state.Metrics.RoundCount, state.Metrics.MaxRounds, message)
	}
}

func queryList(queries []types.Query) string {
	texts := make([]string, len(queries))
	for i, q := range queries {
		texts[i] = q.Text
	}
	return strings.Join(texts, "; ")
}
