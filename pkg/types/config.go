// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network
// requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "deepsearch-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the result-collection stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// ResultsPerEngine is the number of results requested from each search
	// engine per query (default 5).
	ResultsPerEngine int `json:"results_per_engine" yaml:"results_per_engine"`
}

// LLMConfig holds settings for the LLM gateway.
type LLMConfig struct {
	// BaseURL is the root of an OpenAI-compatible chat API
	// (e.g. "https://api.openai.com/v1"). Empty disables the API provider.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model is the model identifier sent to the API provider.
	Model string `json:"model" yaml:"model"`

	// APIKey is the optional bearer token for the API provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// CallTimeout bounds a single API call (default 120s).
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`

	// RetryDelays is the sleep schedule between gateway attempts. The
	// number of retries equals its length (default 5s, 25s, 60s).
	RetryDelays []time.Duration `json:"retry_delays" yaml:"retry_delays"`

	// PreferAPI selects the API provider first even when an interactive
	// provider is available.
	PreferAPI bool `json:"prefer_api" yaml:"prefer_api"`
}

// CitationConfig holds settings for the citation-collection stage.
type CitationConfig struct {
	// MaxURLs caps how many merged results are visited per round.
	// Negative or zero means all.
	MaxURLs int `json:"max_urls" yaml:"max_urls"`

	// Concurrency is the batch size for concurrent URL visits (default 3).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// MinContentLength is the minimum page text length worth extracting
	// from (default 200). Shorter pages are recorded as rejected.
	MinContentLength int `json:"min_content_length" yaml:"min_content_length"`
}

// Config groups all stage configurations for a research session.
type Config struct {
	// MaxRounds bounds the number of research rounds (default 3).
	MaxRounds int `json:"max_rounds" yaml:"max_rounds"`

	Search    SearchConfig   `json:"search" yaml:"search"`
	LLM       LLMConfig      `json:"llm" yaml:"llm"`
	Citations CitationConfig `json:"citations" yaml:"citations"`
}

// Defaults fills zero-valued fields with their documented defaults.
func (c *Config) Defaults() {
	if c.MaxRounds <= 0 {
		c.MaxRounds = 3
	}
	if c.Search.ResultsPerEngine <= 0 {
		c.Search.ResultsPerEngine = 5
	}
	if c.Search.Timeout <= 0 {
		c.Search.Timeout = 15 * time.Second
	}
	if c.Search.UserAgent == "" {
		c.Search.UserAgent = "deepsearch-engine/0.1"
	}
	if c.LLM.CallTimeout <= 0 {
		c.LLM.CallTimeout = 120 * time.Second
	}
	if len(c.LLM.RetryDelays) == 0 {
		c.LLM.RetryDelays = []time.Duration{5 * time.Second, 25 * time.Second, 60 * time.Second}
	}
	if c.Citations.Concurrency <= 0 {
		c.Citations.Concurrency = 3
	}
	if c.Citations.MinContentLength <= 0 {
		c.Citations.MinContentLength = 200
	}
}
