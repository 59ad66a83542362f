package agent

import (
	"context"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestPlanner_SearchPlan(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		textResponse("```json\n{\"needs_clarification\": false, \"jurisdiction\": \"Taiwan\", \"search_keywords\": [\" 個人資料保護法 \", \"個資法 罰則\", \"個資法 罰則\", \"\"]}\n```"),
	}}
	p := &Planner{Client: client, Model: "gpt-4o", Prompt: "你是法規研究規劃員"}

	plan, err := p.Plan(context.Background(), "台灣個資法的罰則?", "", []string{"個人資料保護法"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.NeedsClarification {
		t.Fatal("unexpected clarification")
	}
	if plan.Jurisdiction != "taiwan" {
		t.Fatalf("jurisdiction = %q", plan.Jurisdiction)
	}
	// Keywords are trimmed, deduplicated, empties dropped.
	if len(plan.SearchKeywords) != 2 || plan.SearchKeywords[0] != "個人資料保護法" {
		t.Fatalf("keywords = %v", plan.SearchKeywords)
	}

	// The baseline keywords ride along in the user prompt.
	req := client.requests[0]
	if !strings.Contains(req.Messages[1].Content, "個人資料保護法") {
		t.Fatalf("user prompt = %q", req.Messages[1].Content)
	}
}

func TestPlanner_Clarification(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		textResponse(`{"needs_clarification": true, "clarification_questions": ["請問是哪個國家的法規?", "您的產業是?"]}`),
	}}
	p := &Planner{Client: client, Model: "m", Prompt: "prompt"}
	plan, err := p.Plan(context.Background(), "法規有哪些?", "", nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan.NeedsClarification || len(plan.ClarificationQuestions) != 2 {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestPlanner_ClarificationWithoutQuestionsDowngraded(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		textResponse(`{"needs_clarification": true, "clarification_questions": []}`),
	}}
	p := &Planner{Client: client, Model: "m", Prompt: "prompt"}
	plan, err := p.Plan(context.Background(), "台灣資安法規", "", nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.NeedsClarification {
		t.Fatal("questionless clarification must downgrade to a search plan")
	}
	if len(plan.SearchKeywords) == 0 || plan.SearchKeywords[0] != "台灣資安法規" {
		t.Fatalf("fallback keywords = %v", plan.SearchKeywords)
	}
}

func TestPlanner_GarbageReplyFails(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		textResponse("很抱歉，我沒有辦法以 JSON 回覆。"),
	}}
	p := &Planner{Client: client, Model: "m", Prompt: "prompt"}
	if _, err := p.Plan(context.Background(), "日本個資規定", "", []string{"個人情報保護法"}); err == nil {
		t.Fatal("expected error for unparseable reply")
	}
}

func TestPlanner_EmptyKeywordsFallBackToQuery(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		textResponse(`{"needs_clarification": false, "jurisdiction": "japan", "search_keywords": []}`),
	}}
	p := &Planner{Client: client, Model: "m", Prompt: "prompt"}
	plan, err := p.Plan(context.Background(), "日本個資規定", "", []string{"個人情報保護法", "APPI"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := []string{"日本個資規定", "個人情報保護法", "APPI"}
	if len(plan.SearchKeywords) != len(want) {
		t.Fatalf("keywords = %v", plan.SearchKeywords)
	}
	for i := range want {
		if plan.SearchKeywords[i] != want[i] {
			t.Fatalf("keywords[%d] = %q, want %q", i, plan.SearchKeywords[i], want[i])
		}
	}
}

func TestPlanner_FollowUpResolution(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		textResponse(`{"is_follow_up": true, "resolved_query": "日本的個人資料保護法規有哪些?", "jurisdiction": "japan", "search_keywords": ["個人情報保護法"]}`),
	}}
	p := &Planner{Client: client, Model: "m", Prompt: "prompt"}
	plan, err := p.Plan(context.Background(), "那日本呢?", "使用者: 台灣個資法規有哪些?\n\n助手: ...", nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan.IsFollowUp || plan.ResolvedQuery != "日本的個人資料保護法規有哪些?" {
		t.Fatalf("plan = %+v", plan)
	}
	// The conversation context must be in the prompt for resolution to work.
	if !strings.Contains(client.requests[0].Messages[1].Content, "先前對話") {
		t.Fatalf("prompt = %q", client.requests[0].Messages[1].Content)
	}
}
