package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/complyhq/regscout/internal/llm"
)

// Validator budgets. The evidence block is capped in total and per item so
// even a very productive research pass fits the model context.
const (
	DefaultTargetTotalChars = 150000
	maxEvidenceContent      = 2000
	maxSnippetWithContent   = 300
	maxSnippetPlain         = 200
	DefaultValidatorRetries = 3
)

// Validator distills the researcher's evidence into a structured report.
type Validator struct {
	Client llm.Client
	Model  string
	Prompt string

	// MaxRetries caps corrective re-prompts after unparseable replies.
	MaxRetries int
	// TargetTotalChars caps the rendered evidence block.
	TargetTotalChars int
}

// Validate renders the evidence, asks the model for a JSON report, and
// retries with a corrective prompt when the reply does not parse. After the
// last retry it falls back to an explicit degraded report; the pipeline
// always completes with some report.
func (v *Validator) Validate(ctx context.Context, state *State, events EventFunc) error {
	retries := v.MaxRetries
	if retries <= 0 {
		retries = DefaultValidatorRetries
	}

	evidence := renderEvidence(state.Findings, v.targetChars())
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: v.Prompt},
		{Role: openai.ChatMessageRoleUser, Content: v.userPrompt(state, evidence)},
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		resp, err := v.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       v.Model,
			Temperature: 0.1,
			Messages:    messages,
		})
		// Transport failures and empty replies burn a retry like unparseable
		// output does; the pipeline must still end with a report.
		if err != nil {
			lastErr = fmt.Errorf("validator completion: %w", err)
			log.Warn().Int("attempt", attempt).Err(err).Msg("validator call failed")
			events.emit("validate", fmt.Sprintf("驗證呼叫失敗，重試中 (%d/%d)", attempt, retries))
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("validator returned no choices")
			log.Warn().Int("attempt", attempt).Msg("validator returned no choices")
			continue
		}
		content := resp.Choices[0].Message.Content

		report, err := parseReport(content)
		if err == nil {
			state.Report = report
			state.Status = StatusCompleted
			events.emit("validate", "報告彙整完成")
			return nil
		}
		lastErr = err
		log.Warn().Int("attempt", attempt).Err(err).Msg("validator reply unparseable")
		events.emit("validate", fmt.Sprintf("報告格式錯誤，重試中 (%d/%d)", attempt, retries))
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleUser,
				Content: "上一則回覆無法解析為 JSON: " + err.Error() +
					"。請重新輸出，只能輸出一個符合格式的 JSON 物件，不要加任何說明文字或 Markdown 圍欄。",
			})
	}

	state.Report = DegradedReport(state.OriginalQuery, state.Findings, lastErr.Error())
	state.Status = StatusCompleted
	events.emit("validate", "報告彙整失敗，回傳降級結果")
	return nil
}

func (v *Validator) targetChars() int {
	if v.TargetTotalChars > 0 {
		return v.TargetTotalChars
	}
	return DefaultTargetTotalChars
}

func (v *Validator) userPrompt(state *State, evidence string) string {
	var b strings.Builder
	b.WriteString("使用者問題: ")
	b.WriteString(state.OriginalQuery)
	if state.Jurisdiction != "" {
		b.WriteString("\n查詢地區: ")
		b.WriteString(state.Jurisdiction)
	}
	b.WriteString("\n\n研究資料:\n")
	b.WriteString(evidence)
	b.WriteString("\n\n請依系統指示，僅輸出一個 JSON 物件。")
	return b.String()
}

func parseReport(content string) (*Report, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("report shape mismatch: %w", err)
	}
	report.Normalize()
	return &report, nil
}

// renderEvidence formats findings for the validator prompt under a total
// character budget. Enriched items render first with a longer snippet
// allowance and an inlined (capped) content block; plain search hits fill
// whatever budget remains.
func renderEvidence(findings []Finding, budget int) string {
	var b strings.Builder
	idx := 0
	render := func(f Finding) string {
		var item strings.Builder
		fmt.Fprintf(&item, "[%d] %s\n", idx+1, f.Title)
		if f.URL != "" {
			item.WriteString("來源: " + f.URL + "\n")
		}
		snippetCap := maxSnippetPlain
		if f.ContentFetched {
			snippetCap = maxSnippetWithContent
		}
		if f.Snippet != "" {
			item.WriteString("摘要: " + capRunes(f.Snippet, snippetCap) + "\n")
		}
		if f.ContentFetched && f.FullContent != "" {
			item.WriteString("內文: " + capRunes(f.FullContent, maxEvidenceContent) + "\n")
		}
		item.WriteString("\n")
		return item.String()
	}
	for _, withContent := range []bool{true, false} {
		for _, f := range findings {
			if f.ContentFetched != withContent {
				continue
			}
			s := render(f)
			if b.Len()+len(s) > budget {
				break
			}
			b.WriteString(s)
			idx++
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func capRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
