// Package app assembles the configured components into a runnable instance:
// search provider, fetcher, tool registry, baseline store, pipeline, query
// handler and verifier.
package app

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/complyhq/regscout/internal/agent"
	"github.com/complyhq/regscout/internal/baseline"
	"github.com/complyhq/regscout/internal/config"
	"github.com/complyhq/regscout/internal/conversation"
	"github.com/complyhq/regscout/internal/fetch"
	"github.com/complyhq/regscout/internal/history"
	"github.com/complyhq/regscout/internal/llm"
	"github.com/complyhq/regscout/internal/pdftext"
	"github.com/complyhq/regscout/internal/qcache"
	"github.com/complyhq/regscout/internal/region"
	"github.com/complyhq/regscout/internal/search"
	"github.com/complyhq/regscout/internal/team"
	"github.com/complyhq/regscout/internal/tools"
	"github.com/complyhq/regscout/internal/verifier"
)

// App is one fully wired instance.
type App struct {
	Config   config.Config
	Team     *team.Team
	Verifier *verifier.Verifier
	Baseline *baseline.Store
	Cache    *qcache.Cache
	History  *history.Store
	Registry *tools.Registry
}

// New validates cfg and wires the instance. The caller owns Close.
func New(cfg config.Config) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := llm.Shared(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	regions, err := region.Load(cfg.RegionsPath)
	if err != nil {
		return nil, err
	}
	prompts, err := agent.LoadPrompts(cfg.PromptsDir)
	if err != nil {
		return nil, err
	}

	provider := searchProvider(cfg)
	fetcher := &fetch.Client{
		MaxAttempts:   cfg.FetchRetries,
		MaxConcurrent: cfg.FetchConcurrent,
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterAll(registry, tools.Deps{
		Search:  provider,
		Fetcher: fetcher,
		PDF:     &pdftext.Reader{},
		Regions: regions,
	}); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	store, err := baseline.Open(cfg.BaselineDBPath)
	if err != nil {
		return nil, err
	}

	model := cfg.LLM.RequestModel()
	pipeline := &agent.Pipeline{
		Planner:    &agent.Planner{Client: client, Model: model, Prompt: prompts.Planner},
		Researcher: &agent.Researcher{Client: client, Model: model, Prompt: prompts.Researcher, Registry: registry, Fetcher: fetcher, PDF: &pdftext.Reader{}},
		Validator:  &agent.Validator{Client: client, Model: model, Prompt: prompts.Validator},
	}

	cache := qcache.New(cfg.CacheDir)
	cache.TTL = cfg.CacheTTL
	hist := history.New(cfg.HistoryPath)
	hist.Max = cfg.HistoryMax

	log.Info().Str("search", provider.Name()).Str("model", model).
		Str("data", cfg.DataDir).Msg("app wired")

	return &App{
		Config: cfg,
		Team: &team.Team{
			Pipeline: pipeline,
			Cache:    cache,
			History:  hist,
			Sessions: conversation.NewRegistry(cfg.SessionRounds),
			Baseline: store,
		},
		Verifier: &verifier.Verifier{
			Store:          store,
			Registry:       registry,
			StaleThreshold: cfg.VerifyInterval,
			MaxPerRun:      cfg.VerifyMax,
		},
		Baseline: store,
		Cache:    cache,
		History:  hist,
		Registry: registry,
	}, nil
}

// Close releases the baseline database handle.
func (a *App) Close() error {
	return a.Baseline.Close()
}

func searchProvider(cfg config.Config) search.Provider {
	if cfg.GoogleAPIKey != "" && cfg.GoogleEngineID != "" {
		return &search.GoogleCSE{APIKey: cfg.GoogleAPIKey, EngineID: cfg.GoogleEngineID}
	}
	return &search.SearxNG{BaseURL: cfg.SearxURL}
}
