// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package merge consolidates raw search results from multiple engines into a
// ranked, deduplicated list with a cross-engine consensus score.
package merge

import (
	"sort"
	"strings"

	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// Merge groups raw results by canonical URL, elects the longest title and
// description per group, and ranks groups by consensus score. Rank positions
// are 1-indexed per engine: each engine's top hit is rank 1 no matter where
// that engine sits in the input sequence, so no engine dominates the others
// by input order alone. Output order is deterministic: a stable sort on
// descending score keeps first-seen order for ties.
func Merge(raw []types.RawResult) []types.MergedResult {
	byKey := make(map[string]int)      // canonical key -> index in merged
	engineRank := make(map[string]int) // engine -> results seen so far

	var merged []types.MergedResult
	for _, r := range raw {
		engineRank[r.Engine]++
		if r.URL == "" {
			continue
		}
		key := CanonicalKey(r.URL)
		rank := engineRank[r.Engine]

		idx, ok := byKey[key]
		if !ok {
			byKey[key] = len(merged)
			merged = append(merged, types.MergedResult{
				URLKey:        key,
				URL:           r.URL,
				Title:         r.Title,
				Description:   r.Description,
				SourceEngines: []string{r.Engine},
				RankPositions: []int{rank},
			})
			continue
		}

		m := &merged[idx]
		// Longest string wins; ties keep the first-seen value.
		if len(r.Title) > len(m.Title) {
			m.Title = r.Title
		}
		if len(r.Description) > len(m.Description) {
			m.Description = r.Description
		}
		if !containsEngine(m.SourceEngines, r.Engine) {
			m.SourceEngines = append(m.SourceEngines, r.Engine)
		}
		m.RankPositions = append(m.RankPositions, rank)
	}

	for i := range merged {
		merged[i].ConsensusScore = score(merged[i])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].ConsensusScore > merged[j].ConsensusScore
	})

	return merged
}

// score computes sum(1/rank) over all per-engine rank positions, multiplied
// by the number of distinct source engines. Inverse rank rewards results any
// engine ranked highly; the engine multiplier rewards cross-engine agreement.
func score(m types.MergedResult) float64 {
	var s float64
	for _, rank := range m.RankPositions {
		s += 1.0 / float64(rank)
	}
	return s * float64(len(m.SourceEngines))
}

// CanonicalKey normalizes a URL for deduplication: lowercase, scheme
// stripped, leading "www." stripped, trailing slash stripped.
func CanonicalKey(rawURL string) string {
	key := strings.ToLower(strings.TrimSpace(rawURL))
	key = strings.TrimPrefix(key, "https://")
	key = strings.TrimPrefix(key, "http://")
	key = strings.TrimPrefix(key, "www.")
	key = strings.TrimSuffix(key, "/")
	return key
}

func containsEngine(engines []string, name string) bool {
	for _, e := range engines {
		if e == name {
			return true
		}
	}
	return false
}
