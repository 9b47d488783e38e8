// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/deepsearch-engine/internal/merge"
	"github.com/pdiddy/deepsearch-engine/internal/session"
	"github.com/pdiddy/deepsearch-engine/internal/websearch"
	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// Collector executes a round's queries against the search engines and merges
// the hits into a ranked, deduplicated list.
type Collector struct {
	engines []websearch.Engine
	cfg     types.SearchConfig
	logger  *zap.Logger
}

// NewCollector constructs the result collector.
func NewCollector(engines []websearch.Engine, cfg types.SearchConfig, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{engines: engines, cfg: cfg, logger: logger}
}

// Collect runs the queries sequentially against each engine, skipping
// engines that report themselves rate-limited, and merges the flat result
// sequence. URLs already cited earlier in the session are dropped from the
// merged list. Engine failures are logged and skipped; only a fully empty
// engine set is an error.
func (c *Collector) Collect(ctx context.Context, state *types.ResearchState, queries []types.Query) ([]types.MergedResult, error) {
	if len(c.engines) == 0 {
		return nil, fmt.Errorf("collecting results: no search engines configured")
	}

	// Sequential on purpose: concurrent fan-out would trip engine rate
	// limits, and per-engine throttling lives inside each engine.
	var raw []types.RawResult
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, engine := range c.engines {
			if engine.RateLimited() {
				c.logger.Warn("skipping rate-limited engine",
					zap.String("engine", engine.Name()),
					zap.String("query", q.Text))
				continue
			}
			results, err := engine.Search(ctx, q.Text, c.cfg.ResultsPerEngine)
			if err != nil {
				c.logger.Warn("engine search failed",
					zap.String("engine", engine.Name()),
					zap.String("query", q.Text),
					zap.Error(err))
				continue
			}
			raw = append(raw, results...)
		}
	}

	merged := merge.Merge(raw)

	known := session.KnownURLKeys(state)
	fresh := merged[:0]
	for _, m := range merged {
		if known[m.URLKey] {
			continue
		}
		fresh = append(fresh, m)
	}

	c.logger.Info("collected results",
		zap.String("session_id", state.SessionID),
		zap.Int("raw", len(raw)),
		zap.Int("merged", len(merged)),
		zap.Int("fresh", len(fresh)))

	return fresh, nil
}
