package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

const goodReport = "```json\n" + `{
	"summary": "台灣個資法對違規蒐集個資可處罰鍰。",
	"verified_regulations": [
		{"name": "個人資料保護法", "status": "verified", "source_url": "https://law.moj.gov.tw/a",
		 "key_points": ["第 48 條 罰鍰"], "confidence": 0.9}
	],
	"confidence_score": 0.85,
	"sources": ["https://law.moj.gov.tw/a"]
}` + "\n```"

func testState() *State {
	return &State{
		Query:         "個資法罰則",
		OriginalQuery: "個資法罰則",
		Jurisdiction:  "taiwan",
		Findings: []Finding{
			{Title: "個資法", URL: "https://law.moj.gov.tw/a", Snippet: "摘要", FullContent: "第 48 條...", ContentFetched: true},
		},
	}
}

func TestValidator_ParsesFencedReport(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{textResponse(goodReport)}}
	v := &Validator{Client: client, Model: "m", Prompt: "驗證員"}
	state := testState()
	if err := v.Validate(context.Background(), state, nil); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if state.Status != StatusCompleted || state.Report == nil {
		t.Fatalf("state = %+v", state)
	}
	if len(state.Report.Regulations) != 1 || state.Report.Regulations[0].Name != "個人資料保護法" {
		t.Fatalf("report = %+v", state.Report)
	}
	// Normalize fills the bilingual disclaimer when the model omits it.
	if state.Report.Disclaimer.ZH == "" || state.Report.Disclaimer.EN == "" {
		t.Fatalf("disclaimer = %+v", state.Report.Disclaimer)
	}
	if state.Report.ValidationResult != "ok" {
		t.Fatalf("validation result = %q", state.Report.ValidationResult)
	}
}

func TestValidator_RetriesWithCorrectivePrompt(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		textResponse("這不是 JSON"),
		textResponse(goodReport),
	}}
	v := &Validator{Client: client, Model: "m", Prompt: "p"}
	state := testState()
	if err := v.Validate(context.Background(), state, nil); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if state.Report == nil || state.Report.ConfidenceScore != 0.85 {
		t.Fatalf("report = %+v", state.Report)
	}
	// The retry request carries the failed reply and a corrective user turn.
	second := client.requests[1]
	n := len(second.Messages)
	if second.Messages[n-2].Role != openai.ChatMessageRoleAssistant {
		t.Fatalf("retry transcript = %+v", second.Messages)
	}
	if !strings.Contains(second.Messages[n-1].Content, "JSON") {
		t.Fatalf("corrective prompt = %q", second.Messages[n-1].Content)
	}
}

func TestValidator_DegradedReportAfterRetries(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		textResponse("bad 1"),
		textResponse("bad 2"),
		textResponse("bad 3"),
	}}
	v := &Validator{Client: client, Model: "m", Prompt: "p", MaxRetries: 3}
	state := testState()
	events, recorded := collectEvents(t)
	if err := v.Validate(context.Background(), state, events); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if state.Status != StatusCompleted {
		t.Fatalf("status = %s", state.Status)
	}
	r := state.Report
	if r.ConfidenceScore != 0.3 {
		t.Fatalf("degraded confidence = %v", r.ConfidenceScore)
	}
	if len(r.Sources) != 1 || r.Sources[0] != "https://law.moj.gov.tw/a" {
		t.Fatalf("degraded sources = %v", r.Sources)
	}
	if len(r.Limitations) == 0 || len(r.RiskWarnings) == 0 {
		t.Fatalf("degraded report = %+v", r)
	}
	// The collected findings survive as unverified regulations.
	if len(r.Regulations) != 1 || r.Regulations[0].Name != "個資法" || r.Regulations[0].Status != "unverified" {
		t.Fatalf("degraded regulations = %+v", r.Regulations)
	}
	if r.ValidationResult != "error" {
		t.Fatalf("validation result = %q", r.ValidationResult)
	}
	if r.Disclaimer.ZH == "" {
		t.Fatal("degraded report missing disclaimer")
	}
	if len(client.requests) != 3 {
		t.Fatalf("attempts = %d", len(client.requests))
	}
	if len(*recorded) == 0 {
		t.Fatal("no events emitted")
	}
}

func TestValidator_TransportFailuresDegradeInsteadOfAborting(t *testing.T) {
	// The backend is down for the whole validation stage. Each failed call
	// burns one retry and the pipeline still completes with a degraded report.
	client := &scriptedClient{err: errors.New("backend down")}
	v := &Validator{Client: client, Model: "m", Prompt: "p", MaxRetries: 3}
	state := testState()
	if err := v.Validate(context.Background(), state, nil); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if state.Status != StatusCompleted || state.Report == nil {
		t.Fatalf("state = %+v", state)
	}
	if state.Report.ValidationResult != "error" {
		t.Fatalf("validation result = %q", state.Report.ValidationResult)
	}
	if !strings.Contains(state.Report.Limitations[0], "backend down") {
		t.Fatalf("limitations = %v", state.Report.Limitations)
	}
	if len(client.requests) != 3 {
		t.Fatalf("attempts = %d", len(client.requests))
	}
}

func TestRenderEvidence_Budgets(t *testing.T) {
	long := strings.Repeat("法", 5000)
	findings := []Finding{
		{Title: "with content", URL: "https://a", Snippet: strings.Repeat("s", 400), FullContent: long, ContentFetched: true},
		{Title: "plain", URL: "https://b", Snippet: strings.Repeat("p", 400)},
	}
	out := renderEvidence(findings, DefaultTargetTotalChars)
	// Content capped at 2000 runes plus ellipsis.
	if strings.Contains(out, strings.Repeat("法", 2001)) {
		t.Fatal("content not capped at 2000")
	}
	if !strings.Contains(out, strings.Repeat("法", 2000)+"...") {
		t.Fatal("capped content marker missing")
	}
	// Snippet caps differ with and without content: 300 vs 200.
	if !strings.Contains(out, strings.Repeat("s", 300)+"...") {
		t.Fatal("snippet with content not capped at 300")
	}
	if !strings.Contains(out, strings.Repeat("p", 200)+"...") {
		t.Fatal("plain snippet not capped at 200")
	}

	// Total budget stops rendering further items.
	many := make([]Finding, 100)
	for i := range many {
		many[i] = Finding{Title: "t", URL: "https://x", Snippet: strings.Repeat("z", 150)}
	}
	small := renderEvidence(many, 1000)
	if len(small) > 1100 {
		t.Fatalf("budget exceeded: %d chars", len(small))
	}
}

func TestRenderEvidence_EnrichedItemsRenderFirst(t *testing.T) {
	// A flood of plain search hits ahead of an enriched item must not eat the
	// budget before the fetched content gets in.
	findings := make([]Finding, 0, 31)
	for i := 0; i < 30; i++ {
		findings = append(findings, Finding{Title: "搜尋結果", URL: "https://x", Snippet: strings.Repeat("z", 150)})
	}
	findings = append(findings, Finding{
		Title:          "主管機關全文",
		URL:            "https://law.moj.gov.tw/full",
		FullContent:    strings.Repeat("a", 1500),
		ContentFetched: true,
	})

	out := renderEvidence(findings, 3000)
	if !strings.Contains(out, "主管機關全文") {
		t.Fatalf("enriched item missing:\n%s", out)
	}
	// The enriched item takes slot [1]; plain hits follow with the remainder.
	if !strings.HasPrefix(out, "[1] 主管機關全文") {
		t.Fatalf("enriched item not first:\n%.80s", out)
	}
	if !strings.Contains(out, "[2] 搜尋結果") {
		t.Fatal("remaining budget not used for plain hits")
	}
}
