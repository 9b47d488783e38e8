// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/deepsearch-engine/internal/llm"
	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// successConfidence is the fixed confidence reported for a synthesized
// answer. Every failure and cancellation path reports 0.
const successConfidence = 0.8

// Synthesizer produces the final cited answer. The model writes only the
// answer body; reference lists are reconciled deterministically from the
// session's citation records so hallucinated references never survive.
type Synthesizer struct {
	gw     *llm.Gateway
	logger *zap.Logger
}

// NewSynthesizer constructs the answer synthesizer.
func NewSynthesizer(gw *llm.Gateway, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{gw: gw, logger: logger}
}

// Synthesize builds the final answer. It never returns an error: this is
// the terminal pipeline step, so an LLM failure becomes an error-text answer
// and cancellation a fixed cancelled answer.
func (s *Synthesizer) Synthesize(ctx context.Context, state *types.ResearchState) types.Answer {
	citations := state.AllCitations()

	if ctx.Err() != nil {
		return degradedAnswer("Research was cancelled before an answer could be synthesized.", citations)
	}

	user, err := render(synthesisUserTmpl, struct {
		Objective string
		Citations string
	}{
		Objective: state.Objective,
		Citations: renderCitations(citations),
	})
	if err != nil {
		return degradedAnswer(fmt.Sprintf("Synthesis failed: %v", err), citations)
	}

	text, provider, err := s.gw.Call(ctx, synthesisSystem, user, 4096, 0.4)
	if err != nil {
		s.logger.Error("synthesis llm call failed",
			zap.String("session_id", state.SessionID),
			zap.Error(err))
		return degradedAnswer(fmt.Sprintf("Synthesis failed: %v", err), citations)
	}

	body := stripReferenceSections(text)
	used := usedCitationIDs(body)
	usedRefs, unusedRefs := partitionReferences(citations, used)

	s.logger.Info("synthesized answer",
		zap.String("session_id", state.SessionID),
		zap.String("provider", provider),
		zap.Int("used_references", len(usedRefs)),
		zap.Int("unused_references", len(unusedRefs)))

	return types.Answer{
		Text:             body,
		UsedReferences:   usedRefs,
		UnusedReferences: unusedRefs,
		Confidence:       successConfidence,
		Formatted:        formatAnswer(body, usedRefs, unusedRefs),
	}
}

// renderCitations lists the session's citations as the only permissible
// citation keys for the model.
func renderCitations(citations []types.Citation) string {
	if len(citations) == 0 {
		return "(no citations were collected)"
	}
	var b strings.Builder
	for _, c := range citations {
		fmt.Fprintf(&b, "[%d] %s — %s (quality: %s)\n", c.ID, c.Title, c.URL, c.Quality)
		for _, q := range c.Quotes {
			fmt.Fprintf(&b, "  > %s\n", q)
		}
	}
	return b.String()
}

// refSectionRe matches a references heading the model was told not to
// write. Everything from the first match on is regenerated, never trusted.
var refSectionRe = regexp.MustCompile(`(?mi)^#{1,6}\s*(unused\s+)?references\s*:?\s*$`)

// stripReferenceSections cuts any model-written reference section off the
// answer body.
func stripReferenceSections(text string) string {
	if loc := refSectionRe.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	return strings.TrimSpace(text)
}

// citeMarkerRe matches inline [N] citation markers.
var citeMarkerRe = regexp.MustCompile(`\[(\d+)\]`)

// usedCitationIDs collects the set of citation IDs the answer body actually
// references.
func usedCitationIDs(body string) map[int]bool {
	used := make(map[int]bool)
	for _, m := range citeMarkerRe.FindAllStringSubmatch(body, -1) {
		if id, err := strconv.Atoi(m[1]); err == nil {
			used[id] = true
		}
	}
	return used
}

// partitionReferences splits the authoritative citation records into used
// and unused by marker membership, both in citation order. Marker IDs with
// no matching citation are ignored entirely.
func partitionReferences(citations []types.Citation, used map[int]bool) (usedRefs, unusedRefs []types.Reference) {
	for _, c := range citations {
		ref := types.Reference{ID: c.ID, Title: c.Title, URL: c.URL}
		if used[c.ID] {
			usedRefs = append(usedRefs, ref)
		} else {
			unusedRefs = append(unusedRefs, ref)
		}
	}
	return usedRefs, unusedRefs
}

// formatAnswer renders the full markdown document from the reconciled
// parts.
func formatAnswer(body string, usedRefs, unusedRefs []types.Reference) string {
	var b strings.Builder
	b.WriteString(body)

	if len(usedRefs) > 0 {
		b.WriteString("\n\n## References\n\n")
		for _, r := range usedRefs {
			fmt.Fprintf(&b, "[%d] %s — %s\n", r.ID, r.Title, r.URL)
		}
	}
	if len(unusedRefs) > 0 {
		b.WriteString("\n## Unused References\n\n")
		for _, r := range unusedRefs {
			fmt.Fprintf(&b, "[%d] %s — %s\n", r.ID, r.Title, r.URL)
		}
	}
	return b.String()
}

// degradedAnswer is the zero-confidence answer used on cancellation and
// synthesis failure. Collected citations are still listed as unused so the
// session record stays auditable.
func degradedAnswer(text string, citations []types.Citation) types.Answer {
	_, unusedRefs := partitionReferences(citations, nil)
	return types.Answer{
		Text:             text,
		UnusedReferences: unusedRefs,
		Confidence:       0,
		Formatted:        formatAnswer(text, nil, unusedRefs),
	}
}
