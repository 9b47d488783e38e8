// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/deepsearch-engine/internal/llm"
	"github.com/pdiddy/deepsearch-engine/internal/session"
	"github.com/pdiddy/deepsearch-engine/internal/verify"
	"github.com/pdiddy/deepsearch-engine/internal/visit"
	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// maxPromptChars caps how much page text goes into one extraction prompt.
const maxPromptChars = 24 * 1024

// correctionRounds is the fixed number of re-quote attempts for quotes that
// fail verbatim verification. Quotes still unverified afterwards are
// dropped.
const correctionRounds = 2

// ProgressFunc is invoked once per processed URL with the number of quotes
// that passed verification (0 for rejected or failed URLs).
type ProgressFunc func(url string, verifiedQuotes int)

// CitationOutcome is the result of one citation-collection pass.
type CitationOutcome struct {
	Citations []types.Citation
	Visited   []string
	Failed    []string
}

// CitationCollector visits candidate URLs, extracts quotes through the LLM
// gateway, and verifies every quote against the fetched source text.
type CitationCollector struct {
	gw      *llm.Gateway
	visitor visit.Visitor
	cfg     types.CitationConfig
	logger  *zap.Logger
}

// NewCitationCollector constructs the citation collector.
func NewCitationCollector(gw *llm.Gateway, visitor visit.Visitor, cfg types.CitationConfig, logger *zap.Logger) *CitationCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CitationCollector{gw: gw, visitor: visitor, cfg: cfg, logger: logger}
}

// Collect processes the top results in fixed-size concurrent batches.
// Batches run sequentially and cancellation is checked before each one, so a
// cancelled session returns the partial outcome accumulated so far. Per-URL
// failures are recorded and never abort the batch. Citation IDs continue the
// session's monotonic sequence and are assigned in completion order.
func (cc *CitationCollector) Collect(ctx context.Context, state *types.ResearchState, results []types.MergedResult, onProgress ProgressFunc) CitationOutcome {
	urls := results
	if cc.cfg.MaxURLs > 0 && len(urls) > cc.cfg.MaxURLs {
		urls = urls[:cc.cfg.MaxURLs]
	}

	known := session.KnownURLKeys(state)

	var (
		mu      sync.Mutex
		outcome CitationOutcome
		nextID  = session.NextCitationID(state)
	)

	batch := cc.cfg.Concurrency
	if batch <= 0 {
		batch = 1
	}

	for start := 0; start < len(urls); start += batch {
		if ctx.Err() != nil {
			cc.logger.Info("citation collection cancelled",
				zap.String("session_id", state.SessionID),
				zap.Int("processed", len(outcome.Visited)))
			break
		}

		end := start + batch
		if end > len(urls) {
			end = len(urls)
		}

		var g errgroup.Group
		for _, result := range urls[start:end] {
			// Already cited earlier in the session: skip entirely,
			// no visit, no citation, no LLM spend.
			if known[result.URLKey] {
				continue
			}

			result := result
			g.Go(func() error {
				citation, err := cc.processURL(ctx, state, result)

				mu.Lock()
				if err != nil {
					outcome.Failed = append(outcome.Failed, result.URL)
				} else {
					citation.ID = nextID
					nextID++
					outcome.Citations = append(outcome.Citations, citation)
					outcome.Visited = append(outcome.Visited, result.URL)
				}
				mu.Unlock()

				if err != nil {
					cc.logger.Warn("url failed",
						zap.String("url", result.URL),
						zap.Error(err))
				}
				if onProgress != nil {
					onProgress(result.URL, len(citation.Quotes))
				}
				return nil
			})
		}
		g.Wait()
	}

	return outcome
}

// extractionResponse is the JSON shape the extraction model must return.
type extractionResponse struct {
	Quality     string   `json:"quality"`
	QualityNote string   `json:"quality_note"`
	Quotes      []string `json:"quotes"`
}

// correctionResponse is the JSON shape of a correction round reply.
type correctionResponse struct {
	Quotes []string `json:"quotes"`
}

// processURL fetches one page and builds its citation. It returns an error
// only for fetch or LLM transport failures; everything else degrades into a
// rejected citation.
func (cc *CitationCollector) processURL(ctx context.Context, state *types.ResearchState, result types.MergedResult) (types.Citation, error) {
	page, err := cc.visitor.Visit(ctx, result.URL)
	if err != nil {
		return types.Citation{}, err
	}

	title := page.Title
	if title == "" {
		title = result.Title
	}
	citation := types.Citation{
		URL:           result.URL,
		Title:         title,
		RawSourceText: page.Markdown,
	}

	if len(page.PlainText) < cc.cfg.MinContentLength {
		citation.Quality = types.QualityRejected
		citation.QualityNote = "content empty or below minimum length"
		return citation, nil
	}

	prior := session.QuotesForURL(state, result.URL)

	user, err := render(extractionUserTmpl, struct {
		Objective   string
		PriorQuotes []string
		PageText    string
	}{
		Objective:   state.Objective,
		PriorQuotes: prior,
		PageText:    truncate(page.Markdown, maxPromptChars),
	})
	if err != nil {
		return types.Citation{}, err
	}

	text, _, err := cc.gw.Call(ctx, extractionSystem, user, 2048, 0.2)
	if err != nil {
		return types.Citation{}, err
	}

	var resp extractionResponse
	if !llm.ParseInto(text, &resp) {
		citation.Quality = types.QualityRejected
		citation.QualityNote = "unparseable extraction response"
		return citation, nil
	}

	citation.Quality = parseQuality(resp.Quality)
	citation.QualityNote = resp.QualityNote
	if citation.QualityNote == "" {
		citation.QualityNote = "no rationale provided"
	}

	accepted, rejected := cc.verifyQuotes(resp.Quotes, page, prior, nil)

	for round := 0; round < correctionRounds && len(rejected) > 0; round++ {
		corrected, err := cc.requote(ctx, state.Objective, page, rejected)
		if err != nil {
			cc.logger.Warn("quote correction failed",
				zap.String("url", result.URL),
				zap.Int("round", round+1),
				zap.Error(err))
			break
		}
		var newAccepted []string
		newAccepted, rejected = cc.verifyQuotes(corrected, page, prior, accepted)
		accepted = append(accepted, newAccepted...)
	}

	if len(rejected) > 0 {
		// Remaining rejects are dropped from the citation.
		cc.logger.Debug("dropping unverified quotes",
			zap.String("url", result.URL),
			zap.Int("dropped", len(rejected)),
			zap.Int("kept", len(accepted)))
	}

	citation.Quotes = accepted
	return citation, nil
}

// verifyQuotes splits candidate quotes into verified and rejected, deduping
// against quotes already held elsewhere.
func (cc *CitationCollector) verifyQuotes(candidates []string, page visit.Page, prior, accepted []string) (verified, rejected []string) {
	seen := make(map[string]bool, len(prior)+len(accepted))
	for _, q := range prior {
		seen[q] = true
	}
	for _, q := range accepted {
		seen[q] = true
	}

	for _, q := range candidates {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		if verify.Verify(q, page.Markdown, page.PlainText) {
			verified = append(verified, q)
		} else {
			rejected = append(rejected, q)
		}
	}
	return verified, rejected
}

// requote runs one correction round for quotes that failed verification.
func (cc *CitationCollector) requote(ctx context.Context, objective string, page visit.Page, rejected []string) ([]string, error) {
	user, err := render(correctionUserTmpl, struct {
		Objective string
		Rejected  []string
		PageText  string
	}{
		Objective: objective,
		Rejected:  rejected,
		PageText:  truncate(page.Markdown, maxPromptChars),
	})
	if err != nil {
		return nil, err
	}

	text, _, err := cc.gw.Call(ctx, correctionSystem, user, 1024, 0)
	if err != nil {
		return nil, err
	}

	var resp correctionResponse
	if !llm.ParseInto(text, &resp) {
		return nil, nil
	}
	return resp.Quotes, nil
}

// parseQuality maps the model's quality string onto the known grades. An
// unknown grade downgrades to rejected so a malformed reply never inflates
// citation quality.
func parseQuality(s string) types.CitationQuality {
	switch types.CitationQuality(strings.ToLower(strings.TrimSpace(s))) {
	case types.QualityHigh:
		return types.QualityHigh
	case types.QualityMedium:
		return types.QualityMedium
	case types.QualityLow:
		return types.QualityLow
	default:
		return types.QualityRejected
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
