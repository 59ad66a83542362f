package tools

import (
	"github.com/complyhq/regscout/internal/fetch"
	"github.com/complyhq/regscout/internal/pdftext"
	"github.com/complyhq/regscout/internal/region"
	"github.com/complyhq/regscout/internal/search"
)

// MaxContentChars caps the page or document text a single tool call returns.
const MaxContentChars = 10000

// Deps carries the shared backends the tool handlers run on. Tests substitute
// fakes and point the statute portal bases at local servers.
type Deps struct {
	Search  search.Provider
	Fetcher *fetch.Client
	PDF     pdftext.Extractor
	Regions *region.Config

	// TWLawBase overrides the Taiwan statute portal origin.
	TWLawBase string
	// JPSites restricts Japanese web augmentation; defaults to the official
	// government portals.
	JPSites []string
}

// RegisterAll wires every tool into the registry.
func RegisterAll(r *Registry, deps Deps) error {
	for _, register := range []func(*Registry, Deps) error{
		registerWebSearch,
		registerFetchWebpage,
		registerFetchPDF,
		registerTWLaws,
		registerJPLaws,
		registerEULaws,
	} {
		if err := register(r, deps); err != nil {
			return err
		}
	}
	return nil
}
