// Package config resolves the runtime configuration from flags and the
// environment into one validated struct the app wiring consumes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/complyhq/regscout/internal/llm"
)

// Defaults for the data layout and tunables.
const (
	DefaultDataDir         = ".regscout"
	DefaultCacheTTL        = 24 * time.Hour
	DefaultHistoryMax      = 50
	DefaultSessionRounds   = 10
	DefaultVerifyInterval  = 30 * 24 * time.Hour
	DefaultVerifyMax       = 50
	DefaultFetchRetries    = 3
	DefaultFetchConcurrent = 10
)

// Config is the resolved runtime configuration.
type Config struct {
	// LLM selects the chat backend (OpenAI-compatible or Azure).
	LLM llm.Options

	// GoogleAPIKey and GoogleEngineID select Google Custom Search. When
	// empty, SearxURL selects a SearxNG instance instead.
	GoogleAPIKey   string
	GoogleEngineID string
	SearxURL       string

	// DataDir roots the on-disk state. The path fields below default to
	// locations under it when left empty.
	DataDir        string
	CacheDir       string
	HistoryPath    string
	BaselineDBPath string
	PromptsDir     string
	RegionsPath    string

	CacheTTL      time.Duration
	HistoryMax    int
	SessionRounds int

	// FetchRetries and FetchConcurrent bound the page fetcher: attempts per
	// URL and simultaneous downloads.
	FetchRetries    int
	FetchConcurrent int

	VerifyInterval time.Duration
	VerifyMax      int

	Verbose bool
}

// ConfigError reports a missing or inconsistent setting by name.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// FromEnv returns a Config seeded from environment variables. Flags layer on
// top of this in the CLI.
func FromEnv() Config {
	return Config{
		LLM: llm.Options{
			AzureEndpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			AzureAPIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			AzureDeployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
			AzureAPIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
			BaseURL:         os.Getenv("LLM_BASE_URL"),
			APIKey:          os.Getenv("LLM_API_KEY"),
			Model:           os.Getenv("LLM_MODEL"),
		},
		GoogleAPIKey:   os.Getenv("GOOGLE_API_KEY"),
		GoogleEngineID: os.Getenv("GOOGLE_CSE_ID"),
		SearxURL:       os.Getenv("SEARX_URL"),
		DataDir:        os.Getenv("REGSCOUT_DATA_DIR"),
		PromptsDir:     os.Getenv("REGSCOUT_PROMPTS_DIR"),
		RegionsPath:    os.Getenv("REGSCOUT_REGIONS_FILE"),
	}
}

// ApplyDefaults fills unset fields from the defaults and derives the data
// paths from DataDir.
func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.DataDir, "cache")
	}
	if c.HistoryPath == "" {
		c.HistoryPath = filepath.Join(c.DataDir, "history.json")
	}
	if c.BaselineDBPath == "" {
		c.BaselineDBPath = filepath.Join(c.DataDir, "baseline.db")
	}
	if c.PromptsDir == "" {
		c.PromptsDir = filepath.Join("config", "prompts")
	}
	if c.RegionsPath == "" {
		c.RegionsPath = filepath.Join("config", "regions.yaml")
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.HistoryMax <= 0 {
		c.HistoryMax = DefaultHistoryMax
	}
	if c.SessionRounds <= 0 {
		c.SessionRounds = DefaultSessionRounds
	}
	if c.VerifyInterval <= 0 {
		c.VerifyInterval = DefaultVerifyInterval
	}
	if c.VerifyMax <= 0 {
		c.VerifyMax = DefaultVerifyMax
	}
	if c.FetchRetries <= 0 {
		c.FetchRetries = DefaultFetchRetries
	}
	if c.FetchConcurrent <= 0 {
		c.FetchConcurrent = DefaultFetchConcurrent
	}
}

// Validate checks the configuration is complete enough to run a query.
func (c *Config) Validate() error {
	azure := strings.TrimSpace(c.LLM.AzureEndpoint) != ""
	switch {
	case azure && (c.LLM.AzureAPIKey == "" || c.LLM.AzureDeployment == ""):
		return &ConfigError{Field: "llm", Reason: "azure endpoint set but api key or deployment missing"}
	case !azure && strings.TrimSpace(c.LLM.APIKey) == "":
		return &ConfigError{Field: "llm.key", Reason: "no api key (set LLM_API_KEY or the azure variables)"}
	case !azure && strings.TrimSpace(c.LLM.Model) == "":
		return &ConfigError{Field: "llm.model", Reason: "no model name"}
	}

	google := c.GoogleAPIKey != "" || c.GoogleEngineID != ""
	if google && (c.GoogleAPIKey == "" || c.GoogleEngineID == "") {
		return &ConfigError{Field: "search", Reason: "google search needs both GOOGLE_API_KEY and GOOGLE_CSE_ID"}
	}
	if !google && strings.TrimSpace(c.SearxURL) == "" {
		return &ConfigError{Field: "search", Reason: "no search backend (set GOOGLE_API_KEY/GOOGLE_CSE_ID or SEARX_URL)"}
	}
	return nil
}
