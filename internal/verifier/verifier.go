// Package verifier probes baseline regulations against live web search and
// records whether each one is still findable, feeding the confidence score in
// the baseline store. It is meant to run on a schedule (cron or a timer loop)
// rather than per query.
package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/complyhq/regscout/internal/baseline"
	"github.com/complyhq/regscout/internal/tools"
)

const (
	// DefaultStaleThreshold is the verification age after which a regulation
	// is probed again.
	DefaultStaleThreshold = 30 * 24 * time.Hour
	// DefaultMaxPerRun caps how many regulations one run probes.
	DefaultMaxPerRun = 50
	// DefaultProbeDelay spaces consecutive probes to stay polite to the
	// search backend.
	DefaultProbeDelay = 500 * time.Millisecond
	// probeResults is how many hits each probe asks for; one is enough to
	// call the regulation findable.
	probeResults = 3
)

// regionNames maps baseline country codes to the region profiles the search
// tool understands.
var regionNames = map[string]string{
	"TW": "taiwan",
	"JP": "japan",
	"EU": "eu",
	"US": "usa",
}

// Verifier probes regulations through the registered web_search tool.
type Verifier struct {
	Store    *baseline.Store
	Registry *tools.Registry

	// StaleThreshold overrides DefaultStaleThreshold when positive.
	StaleThreshold time.Duration
	// MaxPerRun overrides DefaultMaxPerRun when positive.
	MaxPerRun int
	// ProbeDelay overrides DefaultProbeDelay when positive.
	ProbeDelay time.Duration

	// sleep is injectable for tests.
	sleep func(time.Duration)
}

// Outcome is the result of probing one regulation.
type Outcome struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Country    string  `json:"country"`
	Query      string  `json:"query"`
	Found      bool    `json:"found"`
	ResultURL  string  `json:"result_url,omitempty"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// CountryTally counts probe outcomes for one country.
type CountryTally struct {
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
}

// Summary aggregates one verification run.
type Summary struct {
	Total     int                     `json:"total"`
	Found     int                     `json:"found"`
	NotFound  int                     `json:"not_found"`
	Errors    int                     `json:"errors"`
	ByCountry map[string]CountryTally `json:"by_country"`
	Details   []Outcome               `json:"details"`
}

func (v *Verifier) threshold() time.Duration {
	if v.StaleThreshold > 0 {
		return v.StaleThreshold
	}
	return DefaultStaleThreshold
}

func (v *Verifier) maxPerRun() int {
	if v.MaxPerRun > 0 {
		return v.MaxPerRun
	}
	return DefaultMaxPerRun
}

func (v *Verifier) delay() time.Duration {
	if v.ProbeDelay > 0 {
		return v.ProbeDelay
	}
	return DefaultProbeDelay
}

func (v *Verifier) pause(ctx context.Context) error {
	if v.sleep != nil {
		v.sleep(v.delay())
		return ctx.Err()
	}
	select {
	case <-time.After(v.delay()):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// probeQuery picks the search query for a regulation: its highest-priority
// keyword, falling back to the name.
func probeQuery(r baseline.Regulation) string {
	if len(r.SearchKeywords) > 0 && strings.TrimSpace(r.SearchKeywords[0].Text) != "" {
		return r.SearchKeywords[0].Text
	}
	return r.Name
}

// VerifyOne probes a single regulation and records the outcome. Search
// failures are recorded as not found so the confidence score reflects them.
func (v *Verifier) VerifyOne(ctx context.Context, r baseline.Regulation) Outcome {
	out := Outcome{ID: r.ID, Name: r.Name, Country: r.CountryCode, Query: probeQuery(r)}

	args, _ := json.Marshal(map[string]any{
		"query":       out.Query,
		"region":      regionNames[r.CountryCode],
		"num_results": probeResults,
	})
	raw := v.Registry.Invoke(ctx, "web_search", args)

	var probe struct {
		Status  string `json:"status"`
		Error   string `json:"error"`
		Results []struct {
			URL string `json:"url"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		out.Error = fmt.Sprintf("decode probe result: %v", err)
	} else if probe.Status != "success" {
		out.Error = probe.Error
	}
	out.Found = probe.Status == "success" && len(probe.Results) > 0
	if out.Found {
		out.ResultURL = probe.Results[0].URL
	}

	score, err := v.Store.RecordVerification(ctx, r.ID, baseline.Verification{
		Found:       out.Found,
		Type:        "scheduled",
		SearchQuery: out.Query,
		ResultCount: len(probe.Results),
		ResultURL:   out.ResultURL,
		VerifiedBy:  "scheduled",
	})
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Confidence = score
	log.Info().Int64("id", r.ID).Str("name", r.Name).Bool("found", out.Found).
		Float64("confidence", score).Msg("regulation verified")
	return out
}

// RunScheduled probes every stale regulation, pausing between probes, and
// returns the aggregated run summary.
func (v *Verifier) RunScheduled(ctx context.Context) (*Summary, error) {
	stale, err := v.Store.Stale(ctx, v.threshold(), v.maxPerRun())
	if err != nil {
		return nil, fmt.Errorf("select stale regulations: %w", err)
	}
	log.Info().Int("count", len(stale)).Msg("verification run starting")
	return v.verifyAll(ctx, stale)
}

// VerifyBatch probes every active regulation matching the filter, regardless
// of verification age.
func (v *Verifier) VerifyBatch(ctx context.Context, f baseline.Filter) (*Summary, error) {
	regs, err := v.Store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("select regulations: %w", err)
	}
	return v.verifyAll(ctx, regs)
}

func (v *Verifier) verifyAll(ctx context.Context, regs []baseline.Regulation) (*Summary, error) {
	s := &Summary{ByCountry: make(map[string]CountryTally)}
	for i, r := range regs {
		if i > 0 {
			if err := v.pause(ctx); err != nil {
				return s, err
			}
		}
		out := v.VerifyOne(ctx, r)
		s.Total++
		tally := s.ByCountry[r.CountryCode]
		switch {
		case out.Error != "" && !out.Found:
			s.Errors++
			s.NotFound++
			tally.NotFound++
		case out.Found:
			s.Found++
			tally.Found++
		default:
			s.NotFound++
			tally.NotFound++
		}
		s.ByCountry[r.CountryCode] = tally
		s.Details = append(s.Details, out)
	}
	log.Info().Int("total", s.Total).Int("found", s.Found).
		Int("not_found", s.NotFound).Int("errors", s.Errors).Msg("verification run done")
	return s, nil
}

// lowConfidenceCutoff marks regulations worth a manual look in the report.
const lowConfidenceCutoff = 0.5

// GenerateReport renders a human-readable health report of the baseline:
// corpus statistics, regulations with low confidence, and regulations never
// verified.
func (v *Verifier) GenerateReport(ctx context.Context) (string, error) {
	stats, err := v.Store.Statistics(ctx)
	if err != nil {
		return "", fmt.Errorf("baseline statistics: %w", err)
	}
	regs, err := v.Store.List(ctx, baseline.Filter{})
	if err != nil {
		return "", fmt.Errorf("list regulations: %w", err)
	}

	var b strings.Builder
	b.WriteString("# 法規基準庫狀態報告\n\n")
	fmt.Fprintf(&b, "- 法規總數: %d (強制 %d)\n", stats.Total, stats.Mandatory)
	fmt.Fprintf(&b, "- 已驗證: %d / 未曾驗證: %d\n", stats.Verified, stats.NeverVerified)
	fmt.Fprintf(&b, "- 平均信心分數: %.2f\n", stats.AvgConfidence)

	countries := make([]string, 0, len(stats.ByCountry))
	for code := range stats.ByCountry {
		countries = append(countries, code)
	}
	sort.Strings(countries)
	for _, code := range countries {
		fmt.Fprintf(&b, "- %s: %d 條\n", code, stats.ByCountry[code])
	}

	var low, never []baseline.Regulation
	for _, r := range regs {
		if r.LastVerifiedAt == nil {
			never = append(never, r)
			continue
		}
		if r.ConfidenceScore < lowConfidenceCutoff {
			low = append(low, r)
		}
	}

	if len(low) > 0 {
		b.WriteString("\n## 低信心法規 (建議人工確認)\n\n")
		for _, r := range low {
			fmt.Fprintf(&b, "- [%s] %s (信心 %.2f, 未找到 %d 次)\n",
				r.CountryCode, r.Name, r.ConfidenceScore, r.NotFoundCount)
		}
	}
	if len(never) > 0 {
		b.WriteString("\n## 未曾驗證\n\n")
		for _, r := range never {
			fmt.Fprintf(&b, "- [%s] %s\n", r.CountryCode, r.Name)
		}
	}

	// Mandatory keyword coverage per country, for spotting entries whose
	// probes keep missing because the keyword itself is bad.
	for _, code := range countries {
		refs, err := v.Store.MandatoryKeywords(ctx, code, "")
		if err != nil {
			return "", fmt.Errorf("mandatory keywords %s: %w", code, err)
		}
		if len(refs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s 必查關鍵字\n\n", code)
		for _, ref := range refs {
			fmt.Fprintf(&b, "- %s (%s)\n", ref.Keyword, ref.RegulationName)
		}
	}
	return b.String(), nil
}
