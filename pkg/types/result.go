// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// RawResult is a single search hit as returned by one engine, before merging.
type RawResult struct {
	// Engine names the search engine that produced this result.
	Engine string `json:"engine" yaml:"engine"`

	URL         string `json:"url" yaml:"url"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// MergedResult is a deduplicated search result with a cross-engine consensus
// score. It is ephemeral: produced by the merger, consumed by the citation
// collector, never persisted in session state.
type MergedResult struct {
	// URLKey is the canonicalized dedup key: lowercased, scheme and
	// leading "www." and trailing slash stripped.
	URLKey string `json:"url_key" yaml:"url_key"`

	URL         string `json:"url" yaml:"url"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`

	// SourceEngines lists the distinct engines that returned this URL.
	SourceEngines []string `json:"source_engines" yaml:"source_engines"`

	// RankPositions are the 1-indexed positions of each occurrence within
	// its engine's own result list.
	RankPositions []int `json:"rank_positions" yaml:"rank_positions"`

	// ConsensusScore is sum(1/rank) over occurrences times the number of
	// distinct source engines.
	ConsensusScore float64 `json:"consensus_score" yaml:"consensus_score"`
}
