// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdiddy/deepsearch-engine/internal/llm"
	"github.com/pdiddy/deepsearch-engine/internal/session"
	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// Exit reasons recorded on the round and used by the orchestrator to pick
// the terminal status.
const (
	ReasonCancelled      = "cancelled"
	ReasonBudgetExceeded = "budget_exceeded"
	ReasonSaturation     = "saturation"
)

// saturationWindow and saturationThreshold define the low-yield heuristic:
// saturationWindow consecutive rounds each producing fewer than
// saturationThreshold usable citations force an exit.
const (
	saturationWindow    = 2
	saturationThreshold = 3
)

// RefinerDecision is the refiner's verdict for the current round.
type RefinerDecision struct {
	Decision types.Decision
	Reason   string
	// Feedback guides the next round's planner; only meaningful on
	// CONTINUE.
	Feedback string
}

// Refiner decides whether the session should run another round. The budget
// and saturation short-circuits are deterministic and never call the LLM;
// only the residual judgment does.
type Refiner struct {
	gw     *llm.Gateway
	logger *zap.Logger
}

// NewRefiner constructs the refiner.
func NewRefiner(gw *llm.Gateway, logger *zap.Logger) *Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refiner{gw: gw, logger: logger}
}

// refinerResponse is the JSON shape the refiner model must return.
type refinerResponse struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
	Feedback string `json:"feedback"`
}

// Decide applies the deterministic short-circuits in priority order, then
// falls through to an LLM judgment. Parse failures and LLM failures both
// default to CONTINUE: halting research on a transient error is worse than
// one extra round.
func (r *Refiner) Decide(ctx context.Context, state *types.ResearchState) RefinerDecision {
	if ctx.Err() != nil {
		return RefinerDecision{Decision: types.DecisionExit, Reason: ReasonCancelled}
	}

	if state.Metrics.RoundCount >= state.Metrics.MaxRounds {
		return RefinerDecision{Decision: types.DecisionExit, Reason: ReasonBudgetExceeded}
	}

	if saturated(state) {
		return RefinerDecision{Decision: types.DecisionExit, Reason: ReasonSaturation}
	}

	user, err := render(refinerUserTmpl, struct {
		State     string
		Round     int
		MaxRounds int
	}{
		State:     session.Render(state),
		Round:     state.Metrics.RoundCount,
		MaxRounds: state.Metrics.MaxRounds,
	})
	if err != nil {
		return continueFallback("internal prompt error")
	}

	text, _, err := r.gw.Call(ctx, refinerSystem, user, 512, 0.2)
	if err != nil {
		r.logger.Warn("refiner llm call failed, continuing",
			zap.String("session_id", state.SessionID),
			zap.Error(err))
		return continueFallback("refiner unavailable")
	}

	var resp refinerResponse
	if !llm.ParseInto(text, &resp) {
		return continueFallback("unparseable refiner response")
	}

	if types.Decision(resp.Decision) == types.DecisionExit {
		return RefinerDecision{Decision: types.DecisionExit, Reason: resp.Reason}
	}
	return RefinerDecision{Decision: types.DecisionContinue, Reason: resp.Reason, Feedback: resp.Feedback}
}

// continueFallback is the fail-open default when no judgment is available.
func continueFallback(reason string) RefinerDecision {
	return RefinerDecision{
		Decision: types.DecisionContinue,
		Reason:   reason,
		Feedback: "broaden the queries and look for sources not yet covered",
	}
}

// saturated reports whether the last saturationWindow rounds each yielded
// fewer than saturationThreshold HIGH or MEDIUM citations.
func saturated(state *types.ResearchState) bool {
	if len(state.Rounds) < saturationWindow {
		return false
	}
	for _, round := range state.Rounds[len(state.Rounds)-saturationWindow:] {
		if round.UsableCitations() >= saturationThreshold {
			return false
		}
	}
	return true
}
