package agent

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Pipeline chains the three nodes. Each Run call works on its own State, so
// one Pipeline serves concurrent queries.
type Pipeline struct {
	Planner    *Planner
	Researcher *Researcher
	Validator  *Validator
}

// Run moves the state through plan, research and validate. It stops early
// with StatusNeedsClarification when the planner asks for more detail, and
// records failures on the state as StatusError. A non-nil error return always
// has state.Err set to the same error.
func (p *Pipeline) Run(ctx context.Context, state *State, conversationContext string, baselineKeywords []string, events EventFunc) error {
	state.Status = StatusStarting
	if state.OriginalQuery == "" {
		state.OriginalQuery = state.Query
	}

	events.emit("plan", "分析問題中")
	plan, err := p.Planner.Plan(ctx, state.Query, conversationContext, baselineKeywords)
	if err != nil {
		return p.fail(state, events, err)
	}
	state.Plan = plan
	if plan.ResolvedQuery != "" {
		// Follow-up questions are rewritten into standalone queries.
		state.Query = plan.ResolvedQuery
	}
	if state.Jurisdiction == "" && plan.Jurisdiction != "" {
		state.Jurisdiction = plan.Jurisdiction
	}
	if plan.NeedsClarification {
		state.Status = StatusNeedsClarification
		events.emit("plan", "問題不夠明確，需要補充說明")
		return nil
	}

	state.Status = StatusReadyToSearch
	events.emit("research", "開始搜尋法規資料")
	if err := p.Researcher.Research(ctx, state, events); err != nil {
		return p.fail(state, events, err)
	}

	events.emit("validate", "驗證並彙整結果中")
	if err := p.Validator.Validate(ctx, state, events); err != nil {
		return p.fail(state, events, err)
	}
	return nil
}

func (p *Pipeline) fail(state *State, events EventFunc, err error) error {
	state.Status = StatusError
	state.Err = err
	log.Error().Err(err).Str("query", state.OriginalQuery).Msg("pipeline failed")
	events.emit("error", err.Error())
	return err
}
