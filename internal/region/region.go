// Package region loads per-jurisdiction search profiles. A profile tunes the
// web search provider (result language, country bias, preferred official
// sites) so queries about e.g. Taiwanese law are answered from Taiwanese
// sources instead of whatever ranks globally.
package region

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is one jurisdiction's search tuning.
type Profile struct {
	// Language restricts result language, e.g. "lang_zh-TW".
	Language string `yaml:"language"`
	// Country biases results to documents from a country, e.g. "countryTW".
	Country string `yaml:"country"`
	// Geolocation is the two-letter end-user location, e.g. "tw".
	Geolocation string `yaml:"geolocation"`
	// InterfaceLang sets the search interface language, e.g. "zh-TW".
	InterfaceLang string `yaml:"interface_lang"`
	// Sites lists official domains to prefer; the first entry is used for
	// site-restricted searches.
	Sites []string `yaml:"sites"`
	// DisableSimplifiedChinese turns off Simplified/Traditional conflation.
	DisableSimplifiedChinese bool `yaml:"disable_simplified_chinese"`
}

// Config maps lowercase region keys ("taiwan", "japan", "eu", ...) to
// profiles.
type Config struct {
	Regions map[string]Profile `yaml:"regions"`
	// Default names the profile used when a jurisdiction has no entry.
	Default string `yaml:"default"`
}

// Load reads a region config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse regions config: %w", err)
	}
	if len(cfg.Regions) == 0 {
		return nil, fmt.Errorf("regions config %s defines no regions", path)
	}
	normalized := make(map[string]Profile, len(cfg.Regions))
	for k, v := range cfg.Regions {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	cfg.Regions = normalized
	cfg.Default = strings.ToLower(strings.TrimSpace(cfg.Default))
	return &cfg, nil
}

// Lookup returns the profile for name, falling back to the default profile
// and finally to a zero profile so callers never need a nil check.
func (c *Config) Lookup(name string) Profile {
	if c == nil {
		return Profile{}
	}
	if p, ok := c.Regions[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	if p, ok := c.Regions[c.Default]; ok {
		return p
	}
	return Profile{}
}

// PrimarySite returns the first preferred site of the profile, if any.
func (p Profile) PrimarySite() string {
	if len(p.Sites) == 0 {
		return ""
	}
	return p.Sites[0]
}
