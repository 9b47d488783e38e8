// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides a resilient LLM call primitive over two
// interchangeable providers: an interactive, caller-mediated provider and a
// direct OpenAI-compatible API provider. The gateway handles tiered provider
// selection, cross-provider fallback, and a configured retry schedule.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// ErrNoProvider is returned when the gateway is constructed with no usable
// provider at all. It is a configuration error and is never retried.
var ErrNoProvider = errors.New("no LLM provider configured")

// Provider is the call primitive both providers implement.
type Provider interface {
	Name() string
	Call(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// Gateway selects a provider, falls back to the other on failure, and
// retries the whole selection+fallback attempt on a configured delay
// schedule.
type Gateway struct {
	interactive Provider
	api         Provider

	ideAvailable bool
	apiAvailable bool
	useAPIFirst  bool
	useIDEFirst  bool

	retryDelays []time.Duration
	logger      *zap.Logger
}

// NewGateway builds a gateway from an optional interactive provider (nil
// means the caller cannot mediate sampling) and the API configuration. The
// selection booleans are computed once here.
func NewGateway(interactive Provider, cfg types.LLMConfig, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Gateway{
		interactive: interactive,
		retryDelays: cfg.RetryDelays,
		logger:      logger,
	}

	g.ideAvailable = interactive != nil
	g.apiAvailable = cfg.BaseURL != "" && cfg.Model != ""
	if g.apiAvailable {
		g.api = NewAPIProvider(cfg)
	}
	g.useAPIFirst = cfg.PreferAPI && g.apiAvailable
	g.useIDEFirst = !cfg.PreferAPI && g.ideAvailable

	return g
}

// Available reports whether at least one provider is configured.
func (g *Gateway) Available() bool {
	return g.ideAvailable || g.apiAvailable
}

// Call runs one gateway call: provider selection plus one fallback is a
// single attempt, and the attempt is retried over the configured delay
// schedule. It returns the response text and the name of the provider that
// produced it. Cancellation is checked before each attempt; an in-flight
// provider call is owned by the provider itself.
func (g *Gateway) Call(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, string, error) {
	if !g.Available() {
		return "", "", ErrNoProvider
	}

	var lastErr error
	for attempt := 0; attempt <= len(g.retryDelays); attempt++ {
		if attempt > 0 {
			delay := g.retryDelays[attempt-1]
			g.logger.Warn("llm attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", "", ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return "", "", err
		}

		text, provider, err := g.attempt(ctx, systemPrompt, userPrompt, maxTokens, temperature)
		if err == nil {
			return text, provider, nil
		}
		lastErr = err
	}

	return "", "", fmt.Errorf("llm call failed after %d attempts: %w", len(g.retryDelays)+1, lastErr)
}

// attempt selects the primary provider, and on failure tries the other
// provider once if it is available.
func (g *Gateway) attempt(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, string, error) {
	primary, secondary := g.order()

	text, err := primary.Call(ctx, systemPrompt, userPrompt, maxTokens, temperature)
	if err == nil {
		return text, primary.Name(), nil
	}
	if secondary == nil {
		return "", "", fmt.Errorf("%s: %w", primary.Name(), err)
	}

	g.logger.Warn("primary provider failed, falling back",
		zap.String("primary", primary.Name()),
		zap.String("fallback", secondary.Name()),
		zap.Error(err))

	text, err2 := secondary.Call(ctx, systemPrompt, userPrompt, maxTokens, temperature)
	if err2 == nil {
		return text, secondary.Name(), nil
	}
	return "", "", fmt.Errorf("%s: %v; %s: %v", primary.Name(), err, secondary.Name(), err2)
}

// order returns the primary provider and the optional fallback. An explicit
// preference that cannot be honored falls across to the other provider.
func (g *Gateway) order() (Provider, Provider) {
	switch {
	case g.useAPIFirst:
		if g.ideAvailable {
			return g.api, g.interactive
		}
		return g.api, nil
	case g.useIDEFirst:
		if g.apiAvailable {
			return g.interactive, g.api
		}
		return g.interactive, nil
	case g.apiAvailable:
		return g.api, nil
	default:
		return g.interactive, nil
	}
}
