// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package websearch defines the search engine collaborator contract and a
// bundled DuckDuckGo client so the CLI works without an external scraping
// stack. Each engine implements the Engine interface per the Strategy
// pattern; the result collector treats engines polymorphically.
package websearch

import (
	"context"

	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// Engine searches a single provider. Implementations tag each result with
// their own name and do their own rate-limit bookkeeping.
type Engine interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]types.RawResult, error)
	RateLimited() bool
}
