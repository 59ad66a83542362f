package region

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
default: taiwan
regions:
  Taiwan:
    language: lang_zh-TW
    country: countryTW
    geolocation: tw
    interface_lang: zh-TW
    disable_simplified_chinese: true
    sites:
      - law.moj.gov.tw
      - mol.gov.tw
  japan:
    language: lang_ja
    country: countryJP
    geolocation: jp
    interface_lang: ja
    sites:
      - elaws.e-gov.go.jp
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadAndLookup(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	tw := cfg.Lookup("Taiwan") // case-insensitive key
	if tw.Language != "lang_zh-TW" || tw.Geolocation != "tw" {
		t.Fatalf("taiwan profile = %+v", tw)
	}
	if !tw.DisableSimplifiedChinese {
		t.Fatal("expected simplified chinese conflation disabled")
	}
	if tw.PrimarySite() != "law.moj.gov.tw" {
		t.Fatalf("primary site = %q", tw.PrimarySite())
	}

	jp := cfg.Lookup("japan")
	if jp.Country != "countryJP" {
		t.Fatalf("japan profile = %+v", jp)
	}

	// Unknown jurisdictions fall back to the default profile.
	fallback := cfg.Lookup("atlantis")
	if fallback.Geolocation != "tw" {
		t.Fatalf("fallback profile = %+v", fallback)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "default: x\nregions: {}\n")); err == nil {
		t.Fatal("expected error for empty regions")
	}
	if _, err := Load(writeConfig(t, ":::bad")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLookup_NilConfig(t *testing.T) {
	var cfg *Config
	if p := cfg.Lookup("taiwan"); p.Language != "" {
		t.Fatalf("nil config lookup = %+v", p)
	}
}
