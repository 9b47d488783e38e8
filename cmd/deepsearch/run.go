// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/deepsearch-engine/internal/archive"
	"github.com/pdiddy/deepsearch-engine/internal/engine"
	"github.com/pdiddy/deepsearch-engine/internal/llm"
	"github.com/pdiddy/deepsearch-engine/internal/visit"
	"github.com/pdiddy/deepsearch-engine/internal/websearch"
	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run <objective>",
	Short: "Run a multi-round research session for an objective",
	Long: `Run executes the full research loop: plan queries, search the web, visit
promising results, extract and verify quotes, and refine until the round
budget is spent or results saturate. The final answer cites only citations
whose quotes were verified against the fetched pages.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Int("max-rounds", 0, "maximum research rounds (default 3)")
	runCmd.Flags().Int("results-per-engine", 0, "search results requested per engine (default 5)")
	runCmd.Flags().Int("max-citation-urls", 0, "cap on URLs visited per round (0 = no cap)")
	runCmd.Flags().Int("concurrency", 0, "concurrent page visits per batch (default 3)")
	runCmd.Flags().Bool("json", false, "output the answer and session state as JSON")
	runCmd.Flags().String("archive-dir", "", "archive the finished session under this directory")
	runCmd.Flags().Bool("verbose", false, "enable debug logging")
	runCmd.Flags().String("model", "", "model identifier for the API provider")
	runCmd.Flags().Bool("prefer-api", false, "prefer the API provider over the interactive one")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a research objective")
	}
	objective := strings.TrimSpace(strings.Join(args, " "))
	if objective == "" {
		return fmt.Errorf("provide a research objective")
	}

	cfg := types.Config{}
	cfg.MaxRounds, _ = cmd.Flags().GetInt("max-rounds")
	cfg.Search.ResultsPerEngine, _ = cmd.Flags().GetInt("results-per-engine")
	cfg.Citations.MaxURLs, _ = cmd.Flags().GetInt("max-citation-urls")
	cfg.Citations.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	cfg.LLM.PreferAPI, _ = cmd.Flags().GetBool("prefer-api")
	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = viper.GetString("llm.model")
	}
	cfg.LLM.Model = model
	cfg.LLM.APIKey = secretDefault("openai-api-key", "")
	cfg.LLM.BaseURL = secretDefault("openai-base-url", viper.GetString("llm.base_url"))
	cfg.Defaults()

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger, err := buildLogger(verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	engines := []websearch.Engine{
		websearch.NewDuckDuckGo(cfg.Search),
	}
	visitor := visit.NewHTTP(cfg.Search.Timeout, cfg.Search.UserAgent)

	progress := func(round, maxRounds int, message string) {
		fmt.Fprintf(os.Stderr, "[round %d/%d] %s\n", round, maxRounds, message)
	}

	eng, err := engine.New(engines, visitor, nil, cfg, logger, progress)
	if err != nil {
		if errors.Is(err, llm.ErrNoProvider) {
			return fmt.Errorf("no LLM provider configured: set openai-api-key and openai-base-url in .secrets/")
		}
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := eng.RunDeepSearch(ctx, objective)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		out := struct {
			Answer types.Answer         `json:"answer"`
			State  *types.ResearchState `json:"state"`
		}{result.Answer, result.State}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	} else {
		fmt.Println(result.Answer.Formatted)
	}

	archiveDir, _ := cmd.Flags().GetString("archive-dir")
	if archiveDir != "" {
		store, err := archive.Open(archiveDir)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer store.Close()
		if err := store.Save(ctx, result.State, result.Answer); err != nil {
			return fmt.Errorf("archiving session: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Archived session %s\n", result.State.SessionID)
	}

	return nil
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
