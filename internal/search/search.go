// Package search defines the web search provider interface and its
// implementations. The primary provider is Google Programmable Search tuned
// per jurisdiction; SearxNG serves as a self-hosted fallback.
package search

import (
	"context"

	"github.com/complyhq/regscout/internal/region"
)

// Result represents a single search hit from any provider.
type Result struct {
	Title   string
	URL     string
	Snippet string
	Source  string // provider name for observability
}

// Request carries one search with its regional tuning and operators.
type Request struct {
	Query string
	Limit int
	// Region tunes language, country bias and interface language.
	Region region.Profile
	// Site restricts results to a single domain when non-empty.
	Site string
	// DateRestrict narrows by recency using provider syntax, e.g. "y1", "m6".
	DateRestrict string
	// FileType restricts to a file extension, e.g. "pdf".
	FileType string
	// ExactTerms must all appear in each result.
	ExactTerms string
	// ExcludeTerms must not appear in any result.
	ExcludeTerms string
	// OrTerms requires at least one of the words to appear.
	OrTerms string
	// SortByDate orders results newest first instead of by relevance.
	SortByDate bool
	// DisableDuplicateFilter turns off the provider's near-duplicate
	// collapsing, surfacing every indexed hit.
	DisableDuplicateFilter bool
}

// Provider is the minimal interface for search providers.
type Provider interface {
	Search(ctx context.Context, req Request) ([]Result, error)
	Name() string
}
