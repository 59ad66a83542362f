package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Prompts holds the system prompts of the three pipeline nodes.
type Prompts struct {
	Planner   string
	Researcher string
	Validator string
}

// LoadPrompts reads planner.md, researcher.md and validator.md from dir. A
// missing or empty prompt file is a configuration error; the pipeline never
// runs on silently defaulted prompts.
func LoadPrompts(dir string) (Prompts, error) {
	var p Prompts
	for _, spec := range []struct {
		file string
		dst  *string
	}{
		{"planner.md", &p.Planner},
		{"researcher.md", &p.Researcher},
		{"validator.md", &p.Validator},
	} {
		raw, err := os.ReadFile(filepath.Join(dir, spec.file))
		if err != nil {
			return Prompts{}, fmt.Errorf("load prompt %s: %w", spec.file, err)
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			return Prompts{}, fmt.Errorf("prompt %s is empty", spec.file)
		}
		*spec.dst = text
	}
	return p, nil
}
