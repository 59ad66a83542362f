package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/complyhq/regscout/internal/config"
	"github.com/complyhq/regscout/internal/llm"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "regions.yaml"), `
default: taiwan
regions:
  taiwan:
    language: lang_zh-TW
    country: countryTW
    geolocation: tw
    interface_lang: zh-TW
    sites: ["law.moj.gov.tw"]
`)
	for _, name := range []string{"planner.md", "researcher.md", "validator.md"} {
		writeFile(t, filepath.Join(dir, "prompts", name), "prompt body")
	}
	return config.Config{
		LLM:            llm.Options{APIKey: "k", Model: "gpt-4o"},
		GoogleAPIKey:   "gk",
		GoogleEngineID: "cx",
		DataDir:        filepath.Join(dir, "data"),
		PromptsDir:     filepath.Join(dir, "prompts"),
		RegionsPath:    filepath.Join(dir, "regions.yaml"),
	}
}

func TestNewWiresEverything(t *testing.T) {
	llm.Reset()
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if a.Team == nil || a.Team.Pipeline == nil || a.Team.Baseline == nil {
		t.Fatalf("team = %+v", a.Team)
	}
	if a.Verifier == nil || a.Verifier.Store == nil {
		t.Fatalf("verifier = %+v", a.Verifier)
	}
	names := a.Registry.Names()
	if len(names) != 7 {
		t.Fatalf("tools = %v", names)
	}
	if a.Config.CacheDir == "" || a.Cache.TTL != config.DefaultCacheTTL {
		t.Fatalf("cache config = %+v", a.Config)
	}
	// The fetcher retries transient failures and bounds parallel downloads.
	f := a.Team.Pipeline.Researcher.Fetcher
	if f.MaxAttempts != config.DefaultFetchRetries || f.MaxConcurrent != config.DefaultFetchConcurrent {
		t.Fatalf("fetcher = %+v", f)
	}
}

func TestNewRejectsBrokenConfig(t *testing.T) {
	llm.Reset()
	cfg := testConfig(t)
	cfg.LLM.APIKey = ""
	if _, err := New(cfg); err == nil {
		t.Fatal("expected config error")
	}

	cfg = testConfig(t)
	cfg.RegionsPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(cfg); err == nil {
		t.Fatal("expected regions error")
	}

	cfg = testConfig(t)
	cfg.PromptsDir = t.TempDir()
	if _, err := New(cfg); err == nil {
		t.Fatal("expected prompts error")
	}
}
