// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session constructs and mutates the research session record. The
// orchestrator is the single writer; all mutation goes through the functions
// here, which preserve the append-only round history and the monotonic
// citation ID sequence.
package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/deepsearch-engine/internal/merge"
	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// New creates an active session for the objective with an empty round
// history.
func New(objective string, maxRounds int) *types.ResearchState {
	return &types.ResearchState{
		SessionID: uuid.NewString(),
		Objective: objective,
		Status:    types.StatusActive,
		Metrics:   types.Metrics{MaxRounds: maxRounds},
	}
}

// StartRound appends a new round and returns its number. It panics if the
// session is no longer active: rounds after a terminal status would break
// the audit record.
func StartRound(s *types.ResearchState) int {
	if s.Status != types.StatusActive {
		panic(fmt.Sprintf("session %s: starting round on %s session", s.SessionID, s.Status))
	}
	n := len(s.Rounds) + 1
	s.Rounds = append(s.Rounds, types.Round{RoundNumber: n})
	s.Metrics.RoundCount = n
	return n
}

// CurrentRound returns the in-progress round, or nil before the first round.
func CurrentRound(s *types.ResearchState) *types.Round {
	if len(s.Rounds) == 0 {
		return nil
	}
	return &s.Rounds[len(s.Rounds)-1]
}

// SetQueries records the planner's queries on the current round.
func SetQueries(s *types.ResearchState, queries []types.Query) {
	if r := CurrentRound(s); r != nil {
		r.Queries = queries
	}
}

// AppendCitations adds citations to the current round.
func AppendCitations(s *types.ResearchState, citations []types.Citation) {
	if r := CurrentRound(s); r != nil {
		r.Citations = append(r.Citations, citations...)
	}
}

// RecordDecision stores the refiner's verdict on the current round.
func RecordDecision(s *types.ResearchState, decision types.Decision, feedback string) {
	if r := CurrentRound(s); r != nil {
		r.RefinerDecision = decision
		r.RefinerFeedback = feedback
	}
}

// NextCitationID returns max(existing IDs)+1, or 1 for an empty session.
// IDs are session-wide and never reused across rounds.
func NextCitationID(s *types.ResearchState) int {
	max := 0
	for _, r := range s.Rounds {
		for _, c := range r.Citations {
			if c.ID > max {
				max = c.ID
			}
		}
	}
	return max + 1
}

// LastFeedback returns the refiner feedback from the most recent decided
// round, or "" when none exists.
func LastFeedback(s *types.ResearchState) string {
	for i := len(s.Rounds) - 1; i >= 0; i-- {
		if s.Rounds[i].RefinerFeedback != "" {
			return s.Rounds[i].RefinerFeedback
		}
	}
	return ""
}

// KnownURLKeys returns the canonical keys of every URL already cited in the
// session, so later rounds skip re-visiting them.
func KnownURLKeys(s *types.ResearchState) map[string]bool {
	known := make(map[string]bool)
	for _, r := range s.Rounds {
		for _, c := range r.Citations {
			known[merge.CanonicalKey(c.URL)] = true
		}
	}
	return known
}

// QuotesForURL gathers quotes already extracted from the URL anywhere in the
// session, for "do not repeat" prompting.
func QuotesForURL(s *types.ResearchState, url string) []string {
	key := merge.CanonicalKey(url)
	var quotes []string
	for _, r := range s.Rounds {
		for _, c := range r.Citations {
			if merge.CanonicalKey(c.URL) == key {
				quotes = append(quotes, c.Quotes...)
			}
		}
	}
	return quotes
}

// Render produces the markdown view of the session used in planner, refiner
// and synthesizer prompts: objective, then per round the queries, citations
// with quality grades and verified quotes, and the refiner feedback.
func Render(s *types.ResearchState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Research Session\n\nObjective: %s\n", s.Objective)
	fmt.Fprintf(&b, "Rounds used: %d of %d\n", s.Metrics.RoundCount, s.Metrics.MaxRounds)

	for _, r := range s.Rounds {
		fmt.Fprintf(&b, "\n## Round %d\n", r.RoundNumber)

		if len(r.Queries) > 0 {
			b.WriteString("\nQueries:\n")
			for _, q := range r.Queries {
				if q.Rationale != "" {
					fmt.Fprintf(&b, "- %s (%s)\n", q.Text, q.Rationale)
				} else {
					fmt.Fprintf(&b, "- %s\n", q.Text)
				}
			}
		}

		for _, c := range r.Citations {
			fmt.Fprintf(&b, "\n[%d] %s — %s\nQuality: %s (%s)\n", c.ID, c.Title, c.URL, c.Quality, c.QualityNote)
			for _, q := range c.Quotes {
				fmt.Fprintf(&b, "> %s\n", q)
			}
		}

		if r.RefinerDecision != "" {
			fmt.Fprintf(&b, "\nDecision: %s", r.RefinerDecision)
			if r.RefinerFeedback != "" {
				fmt.Fprintf(&b, " — %s", r.RefinerFeedback)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
