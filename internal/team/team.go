// Package team is the entry point for answering a question: it checks the
// answer cache, gathers conversation context and baseline keywords, runs the
// research pipeline and records the outcome in history and memory.
package team

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/complyhq/regscout/internal/agent"
	"github.com/complyhq/regscout/internal/baseline"
	"github.com/complyhq/regscout/internal/conversation"
	"github.com/complyhq/regscout/internal/history"
	"github.com/complyhq/regscout/internal/qcache"
)

// ClarificationMarker separates the original question from the user's
// follow-up answer when a clarification round trip happens. The part before
// the marker is the question as first asked; cache keys and history entries
// use that part so the supplemented and unsupplemented forms land on the same
// record.
const ClarificationMarker = "\n\n【用戶補充說明】"

// DefaultSession is used when the caller does not name a session.
const DefaultSession = "default"

// Request is one question to answer.
type Request struct {
	Query        string
	Jurisdiction string
	SessionID    string
	// SkipCache forces a fresh pipeline run even when a cached answer exists.
	SkipCache bool
}

// StatusSuccess is the envelope status for a completed answer. The pipeline's
// internal "completed" state maps to it at the boundary.
const StatusSuccess = "success"

// Result is the envelope returned for every question, whatever its outcome.
type Result struct {
	Status                 string        `json:"status"`
	Query                  string        `json:"query"`
	OriginalQuery          string        `json:"original_query"`
	Jurisdiction           string        `json:"jurisdiction,omitempty"`
	ClarificationQuestions []string      `json:"clarification_questions,omitempty"`
	Report                 *agent.Report `json:"regulations,omitempty"`
	Error                  string        `json:"error,omitempty"`
	Timestamp              time.Time     `json:"timestamp"`
	FromCache              bool          `json:"from_cache"`
}

// Team wires the pipeline to its supporting stores. Baseline is optional; the
// rest must be set.
type Team struct {
	Pipeline *agent.Pipeline
	Cache    *qcache.Cache
	History  *history.Store
	Sessions *conversation.Registry
	Baseline *baseline.Store

	// now is injectable for tests.
	now func() time.Time
}

func (t *Team) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// BaseQuery strips the clarification supplement, returning the question as
// first asked.
func BaseQuery(query string) string {
	if i := strings.Index(query, ClarificationMarker); i >= 0 {
		return strings.TrimSpace(query[:i])
	}
	return strings.TrimSpace(query)
}

// ProcessQuery answers one question end to end. A cached answer short-circuits
// the pipeline; a clarification request comes back as a Result rather than an
// error. The returned error is non-nil only when the pipeline itself failed,
// and the Result still describes the failure in that case.
func (t *Team) ProcessQuery(ctx context.Context, req Request, events agent.EventFunc) (*Result, error) {
	base := BaseQuery(req.Query)
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = DefaultSession
	}
	memory := t.Sessions.Get(sessionID)
	contextStr := memory.ContextString()
	memory.Add(conversation.RoleUser, base)

	if !req.SkipCache {
		if raw, ok := t.Cache.Get(base, req.Jurisdiction); ok {
			var cached Result
			if err := json.Unmarshal(raw, &cached); err == nil {
				cached.FromCache = true
				log.Info().Str("query", base).Msg("answer served from cache")
				if cached.Report != nil {
					memory.Add(conversation.RoleAssistant, cached.Report.Summary)
				}
				return &cached, nil
			}
			// Unreadable entry: fall through and recompute.
			_ = t.Cache.Delete(base, req.Jurisdiction)
		}
	}

	state := &agent.State{
		Query:             strings.TrimSpace(req.Query),
		OriginalQuery:     base,
		Jurisdiction:      req.Jurisdiction,
		SessionID:         sessionID,
		MandatoryKeywords: t.mandatoryKeywords(ctx, req.Jurisdiction),
	}
	runErr := t.Pipeline.Run(ctx, state, contextStr, t.baselineKeywords(ctx, req.Jurisdiction), events)

	status := string(state.Status)
	if state.Status == agent.StatusCompleted {
		status = StatusSuccess
	}
	result := &Result{
		Status:        status,
		Query:         state.Query,
		OriginalQuery: base,
		Jurisdiction:  state.Jurisdiction,
		Timestamp:     t.clock(),
	}

	switch {
	case runErr != nil:
		// Failed runs are not recorded; history holds completed answers only.
		result.Error = runErr.Error()
		memory.Add(conversation.RoleAssistant, "查詢失敗: "+runErr.Error())
		return result, runErr

	case state.Status == agent.StatusNeedsClarification:
		result.ClarificationQuestions = state.Plan.ClarificationQuestions
		memory.Add(conversation.RoleAssistant, strings.Join(result.ClarificationQuestions, "\n"))
		return result, nil

	default:
		result.Report = state.Report
		regulations := 0
		summary := ""
		if state.Report != nil {
			regulations = len(state.Report.Regulations)
			summary = state.Report.Summary
		}
		memory.Add(conversation.RoleAssistant, summary)
		t.record(base, req.Query, state.Jurisdiction, result, regulations)
		if raw, err := json.Marshal(result); err == nil {
			if err := t.Cache.Set(base, req.Jurisdiction, raw); err != nil {
				log.Warn().Err(err).Msg("cache answer")
			}
		}
		return result, nil
	}
}

// record appends the outcome to the history log. The full envelope rides along
// so past answers can be replayed without re-running the pipeline.
func (t *Team) record(base, fullQuery, jurisdiction string, result *Result, regulations int) {
	entry := history.Entry{
		Query:        base,
		Jurisdiction: jurisdiction,
		Status:       result.Status,
		Regulations:  regulations,
	}
	if strings.TrimSpace(fullQuery) != base {
		entry.FullQuery = strings.TrimSpace(fullQuery)
	}
	if raw, err := json.Marshal(result); err == nil {
		entry.Result = raw
	}
	if _, err := t.History.Append(entry); err != nil {
		log.Warn().Err(err).Msg("record history")
	}
}

// baselineKeywords pulls known regulation names and keywords for the
// jurisdiction from the baseline store, feeding them to the planner. Missing
// store or lookup failure degrades to no keywords.
func (t *Team) baselineKeywords(ctx context.Context, jurisdiction string) []string {
	if t.Baseline == nil || jurisdiction == "" {
		return nil
	}
	code := baseline.CountryCode(jurisdiction)
	if code == "" {
		return nil
	}
	keywords, err := t.Baseline.SearchKeywords(ctx, code, "")
	if err != nil {
		log.Warn().Err(err).Str("country", code).Msg("baseline keyword lookup failed")
		return nil
	}
	return keywords
}

// mandatoryKeywords lists the must-check keywords of mandatory regulations in
// scope, each tagged with the regulation it belongs to, for the researcher
// prompt. Missing store or lookup failure degrades to none.
func (t *Team) mandatoryKeywords(ctx context.Context, jurisdiction string) []string {
	if t.Baseline == nil || jurisdiction == "" {
		return nil
	}
	code := baseline.CountryCode(jurisdiction)
	if code == "" {
		return nil
	}
	refs, err := t.Baseline.MandatoryKeywords(ctx, code, "")
	if err != nil {
		log.Warn().Err(err).Str("country", code).Msg("mandatory keyword lookup failed")
		return nil
	}
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Keyword + "（" + r.RegulationName + "）"
	}
	return out
}

// ClearSession drops a session's conversation memory.
func (t *Team) ClearSession(sessionID string) {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	t.Sessions.Drop(sessionID)
}
