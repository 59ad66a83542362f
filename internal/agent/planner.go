package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/complyhq/regscout/internal/extract"
	"github.com/complyhq/regscout/internal/llm"
)

// Planner decides whether a query is answerable as-is and, if so, what to
// search for. Ambiguous queries come back as clarification questions instead
// of a search plan.
type Planner struct {
	Client llm.Client
	Model  string
	Prompt string
}

// Plan analyzes the query in the light of the conversation so far and the
// baseline keywords known for the jurisdiction. The reply must be a JSON
// plan; a malformed reply fails the query, since searching on a misread
// question produces a confidently wrong answer.
func (p *Planner) Plan(ctx context.Context, query, conversationContext string, baselineKeywords []string) (*Plan, error) {
	var user strings.Builder
	if conversationContext != "" {
		user.WriteString("先前對話:\n")
		user.WriteString(conversationContext)
		user.WriteString("\n\n")
	}
	user.WriteString("使用者問題: ")
	user.WriteString(query)
	if len(baselineKeywords) > 0 {
		user.WriteString("\n\n資料庫已知相關法規關鍵字 (優先排序): ")
		user.WriteString(strings.Join(baselineKeywords, "、"))
	}

	resp, err := p.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.Model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.Prompt},
			{Role: openai.ChatMessageRoleUser, Content: user.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("planner completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("planner returned no choices")
	}
	content := resp.Choices[0].Message.Content

	raw, err := extractJSON(content)
	if err != nil {
		log.Warn().Str("reply", extract.Truncate(content, 200)).Msg("planner reply not JSON")
		return nil, fmt.Errorf("parse planner reply: %w", err)
	}
	var plan Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("decode planner plan: %w", err)
	}
	sanitizePlan(&plan, query, baselineKeywords)
	return &plan, nil
}

func sanitizePlan(plan *Plan, query string, baselineKeywords []string) {
	plan.ClarificationQuestions = cleanStrings(plan.ClarificationQuestions)
	plan.SearchKeywords = cleanStrings(plan.SearchKeywords)
	plan.ResolvedQuery = strings.TrimSpace(plan.ResolvedQuery)
	plan.Jurisdiction = strings.ToLower(strings.TrimSpace(plan.Jurisdiction))
	if plan.NeedsClarification && len(plan.ClarificationQuestions) == 0 {
		// A clarification ask without questions is useless; search instead.
		plan.NeedsClarification = false
	}
	if !plan.NeedsClarification && len(plan.SearchKeywords) == 0 {
		plan.SearchKeywords = fallbackPlan(query, baselineKeywords).SearchKeywords
	}
}

// fallbackPlan searches on the raw query plus the highest-priority baseline
// keywords when the model produced no usable plan.
func fallbackPlan(query string, baselineKeywords []string) *Plan {
	keywords := []string{strings.TrimSpace(query)}
	for _, k := range baselineKeywords {
		if len(keywords) >= 5 {
			break
		}
		keywords = append(keywords, k)
	}
	return &Plan{SearchKeywords: cleanStrings(keywords)}
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
