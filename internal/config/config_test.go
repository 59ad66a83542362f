package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/complyhq/regscout/internal/llm"
)

func valid() Config {
	c := Config{
		LLM:            llm.Options{APIKey: "k", Model: "gpt-4o"},
		GoogleAPIKey:   "gk",
		GoogleEngineID: "cx",
	}
	c.ApplyDefaults()
	return c
}

func TestApplyDefaults(t *testing.T) {
	c := Config{DataDir: "/var/lib/regscout"}
	c.ApplyDefaults()
	if c.CacheDir != filepath.Join("/var/lib/regscout", "cache") {
		t.Fatalf("cache dir = %q", c.CacheDir)
	}
	if c.BaselineDBPath != filepath.Join("/var/lib/regscout", "baseline.db") {
		t.Fatalf("db path = %q", c.BaselineDBPath)
	}
	if c.CacheTTL != DefaultCacheTTL || c.HistoryMax != DefaultHistoryMax {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if c.FetchRetries != DefaultFetchRetries || c.FetchConcurrent != DefaultFetchConcurrent {
		t.Fatalf("fetch defaults not applied: %+v", c)
	}

	// Explicit paths survive.
	c2 := Config{CacheDir: "/tmp/c"}
	c2.ApplyDefaults()
	if c2.CacheDir != "/tmp/c" || c2.DataDir != DefaultDataDir {
		t.Fatalf("config = %+v", c2)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"ok", func(c *Config) {}, ""},
		{"searx instead of google", func(c *Config) {
			c.GoogleAPIKey, c.GoogleEngineID, c.SearxURL = "", "", "http://searx.local"
		}, ""},
		{"azure complete", func(c *Config) {
			c.LLM = llm.Options{AzureEndpoint: "https://x.openai.azure.com", AzureAPIKey: "k", AzureDeployment: "d"}
		}, ""},
		{"no llm key", func(c *Config) { c.LLM.APIKey = "" }, "llm.key"},
		{"no model", func(c *Config) { c.LLM.Model = "" }, "llm.model"},
		{"azure half configured", func(c *Config) {
			c.LLM = llm.Options{AzureEndpoint: "https://x.openai.azure.com", AzureAPIKey: "k"}
		}, "llm"},
		{"google half configured", func(c *Config) { c.GoogleEngineID = "" }, "search"},
		{"no search backend", func(c *Config) { c.GoogleAPIKey, c.GoogleEngineID = "", "" }, "search"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(&c)
			err := c.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("validate: %v", err)
				}
				return
			}
			var ce *ConfigError
			if err == nil {
				t.Fatal("expected error")
			}
			ok := false
			if e, is := err.(*ConfigError); is {
				ce = e
				ok = true
			}
			if !ok || ce.Field != tc.field {
				t.Fatalf("err = %v, want field %q", err, tc.field)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("message = %q", err.Error())
			}
		})
	}
}
