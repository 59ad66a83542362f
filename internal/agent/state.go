// Package agent implements the three-stage research pipeline: the planner
// decides what to search for (or asks for clarification), the researcher
// drives a tool-calling loop against the registered tools and enriches the
// hits with fetched content, and the validator distills the evidence into a
// structured compliance report.
package agent

import (
	"strings"
	"time"
)

// Status is the pipeline position of a query.
type Status string

const (
	StatusStarting           Status = "starting"
	StatusNeedsClarification Status = "needs_clarification"
	StatusReadyToSearch      Status = "ready_to_search"
	StatusReadyToValidate    Status = "ready_to_validate"
	StatusCompleted          Status = "completed"
	StatusError              Status = "error"
)

// Plan is the planner's output: either clarification questions or the search
// strategy for the researcher.
type Plan struct {
	NeedsClarification     bool     `json:"needs_clarification"`
	ClarificationQuestions []string `json:"clarification_questions,omitempty"`
	IsFollowUp             bool     `json:"is_follow_up,omitempty"`
	ResolvedQuery          string   `json:"resolved_query,omitempty"`
	Jurisdiction           string   `json:"jurisdiction,omitempty"`
	SearchKeywords         []string `json:"search_keywords,omitempty"`
}

// State flows through the pipeline nodes.
type State struct {
	Query         string
	OriginalQuery string
	Jurisdiction  string
	SessionID     string
	// MandatoryKeywords are the baseline's must-check keywords for the
	// jurisdiction; the researcher prompt instructs the model to cover them.
	MandatoryKeywords []string

	Status   Status
	Plan     *Plan
	Findings []Finding
	Report   *Report
	Err      error
}

// Finding is one piece of evidence accumulated by the researcher.
type Finding struct {
	Title          string
	URL            string
	Snippet        string
	Source         string
	FullContent    string
	ContentFetched bool
	FetchError     string
}

// FindingFromMap builds a Finding from a loosely-typed tool result object.
// The link may arrive under url, href or source_url depending on the tool.
func FindingFromMap(m map[string]any) Finding {
	str := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}
	f := Finding{
		Title:   str("title", "name"),
		URL:     str("url", "href", "source_url"),
		Snippet: str("snippet", "body"),
		Source:  str("source"),
	}
	if content := str("content"); content != "" {
		f.FullContent = content
		f.ContentFetched = true
	}
	return f
}

// MergeFindings appends newcomers to existing, dropping duplicates by URL and
// keeping the first occurrence. Findings without a URL are always kept; they
// carry tool output (e.g. statute text) that has no web address.
func MergeFindings(existing, newcomers []Finding) []Finding {
	seen := make(map[string]struct{}, len(existing))
	for _, f := range existing {
		if f.URL != "" {
			seen[f.URL] = struct{}{}
		}
	}
	out := existing
	for _, f := range newcomers {
		if f.URL != "" {
			if _, dup := seen[f.URL]; dup {
				continue
			}
			seen[f.URL] = struct{}{}
		}
		out = append(out, f)
	}
	return out
}

// Event is one discrete progress message emitted while a query runs.
type Event struct {
	Stage   string
	Message string
	At      time.Time
}

// EventFunc receives pipeline events. A nil EventFunc is valid and discards
// them.
type EventFunc func(Event)

func (fn EventFunc) emit(stage, message string) {
	if fn == nil {
		return
	}
	fn(Event{Stage: stage, Message: message, At: time.Now()})
}
