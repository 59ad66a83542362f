package agent

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/complyhq/regscout/internal/tools"
)

func newPipeline(client *scriptedClient) *Pipeline {
	return &Pipeline{
		Planner:    &Planner{Client: client, Model: "m", Prompt: "planner"},
		Researcher: &Researcher{Client: client, Model: "m", Prompt: "researcher", Registry: tools.NewRegistry()},
		Validator:  &Validator{Client: client, Model: "m", Prompt: "validator"},
	}
}

func TestPipeline_FullRun(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		// planner
		textResponse(`{"needs_clarification": false, "jurisdiction": "taiwan", "search_keywords": ["個資法"]}`),
		// researcher: no tool calls, loop ends immediately
		textResponse("已有足夠資料"),
		// validator
		textResponse(goodReport),
	}}
	p := newPipeline(client)
	state := &State{Query: "個資法罰則"}
	events, recorded := collectEvents(t)
	if err := p.Run(context.Background(), state, "", nil, events); err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.Status != StatusCompleted || state.Report == nil {
		t.Fatalf("state = %+v", state)
	}
	if state.Jurisdiction != "taiwan" {
		t.Fatalf("jurisdiction = %q", state.Jurisdiction)
	}
	if state.OriginalQuery != "個資法罰則" {
		t.Fatalf("original = %q", state.OriginalQuery)
	}
	// Events cover all three stages.
	stages := map[string]bool{}
	for _, e := range *recorded {
		stages[e.Stage] = true
	}
	for _, stage := range []string{"plan", "research", "validate"} {
		if !stages[stage] {
			t.Fatalf("missing %s event; got %+v", stage, *recorded)
		}
	}
}

func TestPipeline_ClarificationShortCircuits(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		textResponse(`{"needs_clarification": true, "clarification_questions": ["哪個國家?"]}`),
	}}
	p := newPipeline(client)
	state := &State{Query: "法規?"}
	if err := p.Run(context.Background(), state, "", nil, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.Status != StatusNeedsClarification {
		t.Fatalf("status = %s", state.Status)
	}
	if len(state.Plan.ClarificationQuestions) != 1 {
		t.Fatalf("plan = %+v", state.Plan)
	}
	// Only the planner ran.
	if len(client.requests) != 1 {
		t.Fatalf("model calls = %d", len(client.requests))
	}
}

func TestPipeline_FollowUpRewritesQuery(t *testing.T) {
	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		textResponse(`{"is_follow_up": true, "resolved_query": "日本的個資法規?", "jurisdiction": "japan", "search_keywords": ["個人情報保護法"]}`),
		textResponse("done"),
		textResponse(goodReport),
	}}
	p := newPipeline(client)
	state := &State{Query: "那日本呢?"}
	if err := p.Run(context.Background(), state, "使用者: 台灣個資法?", nil, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if state.Query != "日本的個資法規?" {
		t.Fatalf("query = %q", state.Query)
	}
	// The original phrasing survives for history and the final envelope.
	if state.OriginalQuery != "那日本呢?" {
		t.Fatalf("original = %q", state.OriginalQuery)
	}
	if state.Jurisdiction != "japan" {
		t.Fatalf("jurisdiction = %q", state.Jurisdiction)
	}
}

func TestPipeline_ErrorStatus(t *testing.T) {
	client := &scriptedClient{err: errors.New("backend down")}
	p := newPipeline(client)
	state := &State{Query: "q"}
	err := p.Run(context.Background(), state, "", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if state.Status != StatusError || state.Err == nil {
		t.Fatalf("state = %+v", state)
	}
}
