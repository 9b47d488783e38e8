// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the deepsearch engine:
// the research session record (state, rounds, citations), raw and merged
// search results, the synthesized answer, and stage configuration.
package types

// SessionStatus is the lifecycle state of a research session.
type SessionStatus string

const (
	StatusActive         SessionStatus = "active"
	StatusCompleted      SessionStatus = "completed"
	StatusBudgetExceeded SessionStatus = "budget_exceeded"
	StatusError          SessionStatus = "error"
)

// Decision is the refiner's verdict for a round.
type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionExit     Decision = "exit"
)

// CitationQuality grades how well a source supports the objective.
type CitationQuality string

const (
	QualityHigh     CitationQuality = "high"
	QualityMedium   CitationQuality = "medium"
	QualityLow      CitationQuality = "low"
	QualityRejected CitationQuality = "rejected"
)

// Query is a single search query with the planner's rationale.
type Query struct {
	// Text is the query string sent to search engines.
	Text string `json:"text" yaml:"text"`

	// Rationale explains why the planner chose this query.
	Rationale string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// Citation records one visited source together with the verbatim quotes
// verified against its text.
type Citation struct {
	// ID is unique and monotonically increasing across the whole session.
	// IDs are never reused between rounds.
	ID int `json:"id" yaml:"id"`

	URL   string `json:"url" yaml:"url"`
	Title string `json:"title" yaml:"title"`

	// Quality grades the source; QualityNote is the mandatory rationale.
	Quality     CitationQuality `json:"quality" yaml:"quality"`
	QualityNote string          `json:"quality_note" yaml:"quality_note"`

	// Quotes are exact (format-normalized) substrings of the source text.
	// Every entry passed verification at creation time.
	Quotes []string `json:"quotes" yaml:"quotes"`

	// RawSourceText is the fetched page text, retained in memory so quotes
	// can be re-verified during synthesis. It is not exported or archived.
	RawSourceText string `json:"-" yaml:"-"`
}

// Usable reports whether the citation contributes evidence (HIGH or MEDIUM
// quality with at least one verified quote).
func (c Citation) Usable() bool {
	return (c.Quality == QualityHigh || c.Quality == QualityMedium) && len(c.Quotes) > 0
}

// Round is one iteration of query, search, citation and decision.
type Round struct {
	// RoundNumber is 1-based and matches the round's position in
	// ResearchState.Rounds.
	RoundNumber int `json:"round_number" yaml:"round_number"`

	Queries   []Query    `json:"queries" yaml:"queries"`
	Citations []Citation `json:"citations" yaml:"citations"`

	// RefinerDecision and RefinerFeedback are recorded after the refiner
	// runs. Feedback guides the next round's planner and is only
	// meaningful on CONTINUE.
	RefinerDecision Decision `json:"refiner_decision,omitempty" yaml:"refiner_decision,omitempty"`
	RefinerFeedback string   `json:"refiner_feedback,omitempty" yaml:"refiner_feedback,omitempty"`
}

// UsableCitations counts HIGH and MEDIUM quality citations in the round.
func (r Round) UsableCitations() int {
	n := 0
	for _, c := range r.Citations {
		if c.Quality == QualityHigh || c.Quality == QualityMedium {
			n++
		}
	}
	return n
}

// Metrics tracks round budget consumption.
type Metrics struct {
	// RoundCount equals len(Rounds) at all times and only increases.
	RoundCount int `json:"round_count" yaml:"round_count"`

	// MaxRounds is the session's round budget.
	MaxRounds int `json:"max_rounds" yaml:"max_rounds"`
}

// ResearchState is the full session record. It has a single writer (the
// orchestrator) and is append-only except for Status. Once Status leaves
// StatusActive no further rounds are appended.
type ResearchState struct {
	SessionID string        `json:"session_id" yaml:"session_id"`
	Objective string        `json:"objective" yaml:"objective"`
	Status    SessionStatus `json:"status" yaml:"status"`

	// Rounds is append-only; index+1 equals the round number.
	Rounds []Round `json:"rounds" yaml:"rounds"`

	Metrics Metrics `json:"metrics" yaml:"metrics"`
}

// AllCitations returns the session's citations in append order across rounds.
func (s *ResearchState) AllCitations() []Citation {
	var out []Citation
	for _, r := range s.Rounds {
		out = append(out, r.Citations...)
	}
	return out
}
