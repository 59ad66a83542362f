package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/complyhq/regscout/internal/extract"
	"github.com/complyhq/regscout/internal/fetch"
	"github.com/complyhq/regscout/internal/llm"
	"github.com/complyhq/regscout/internal/pdftext"
	"github.com/complyhq/regscout/internal/tools"
)

// Researcher defaults. The iteration cap bounds runaway tool loops; the
// fetch knobs bound the enrichment pass that downloads page content for the
// most promising hits.
const (
	DefaultMaxIterations = 15
	DefaultTopNToFetch   = 50
	DefaultMaxWorkers    = 10
	DefaultFetchTimeout  = 60 * time.Second
	maxFindingContent    = 10000
)

// Researcher runs the tool-calling loop and enriches the collected hits.
type Researcher struct {
	Client   llm.Client
	Model    string
	Prompt   string
	Registry *tools.Registry
	Fetcher  *fetch.Client
	// PDF extracts text from PDF hits during enrichment. Nil skips them.
	PDF pdftext.Extractor

	// MaxIterations caps model round-trips. Zero means DefaultMaxIterations.
	MaxIterations int
	// TopNToFetch caps how many hits get their content fetched.
	TopNToFetch int
	// MaxWorkers bounds parallel enrichment fetches.
	MaxWorkers int
	// FetchTimeout bounds each enrichment fetch.
	FetchTimeout time.Duration
}

// Research drives the loop: the model requests tools, results are appended to
// the transcript and accumulated as findings, and the loop ends when the
// model stops calling tools or the iteration cap is hit. Afterwards the top
// hits without content are fetched in parallel.
func (r *Researcher) Research(ctx context.Context, state *State, events EventFunc) error {
	maxIter := r.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: r.systemPrompt(state)},
		{Role: openai.ChatMessageRoleUser, Content: state.Query},
	}
	specs := r.Registry.Specs()

	for iteration := 0; iteration < maxIter; iteration++ {
		resp, err := r.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    r.Model,
			Messages: messages,
			Tools:    specs,
		})
		// A failed iteration ends the loop but keeps what earlier iterations
		// found; the validator still gets the accumulated evidence.
		if err != nil {
			log.Warn().Int("iteration", iteration).Err(err).Msg("research iteration failed, keeping findings")
			events.emit("research", "搜尋中斷，以目前已蒐集的資料繼續")
			break
		}
		if len(resp.Choices) == 0 {
			log.Warn().Int("iteration", iteration).Msg("researcher returned no choices, keeping findings")
			break
		}
		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			break
		}
		messages = append(messages, msg)
		for _, tc := range msg.ToolCalls {
			if tc.Type != openai.ToolTypeFunction {
				continue
			}
			events.emit("research", "呼叫工具 "+tc.Function.Name)
			raw := r.Registry.Invoke(ctx, tc.Function.Name, json.RawMessage(tc.Function.Arguments))
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: tc.ID,
				Content:    string(raw),
			})
			newcomers := make([]Finding, 0)
			for _, m := range tools.ResultsList(raw) {
				f := FindingFromMap(m)
				if f.Title == "" && f.URL == "" && f.FullContent == "" {
					continue
				}
				newcomers = append(newcomers, f)
			}
			state.Findings = MergeFindings(state.Findings, newcomers)
		}
		log.Debug().Int("iteration", iteration).Int("findings", len(state.Findings)).Msg("research iteration done")
	}

	events.emit("research", fmt.Sprintf("搜尋完成，共 %d 筆資料，開始擷取內文", len(state.Findings)))
	r.enrich(ctx, state.Findings)
	state.Status = StatusReadyToValidate
	return nil
}

func (r *Researcher) systemPrompt(state *State) string {
	var b strings.Builder
	b.WriteString(r.Prompt)
	if state.Jurisdiction != "" {
		b.WriteString("\n\n查詢地區: ")
		b.WriteString(state.Jurisdiction)
	}
	if state.Plan != nil && len(state.Plan.SearchKeywords) > 0 {
		b.WriteString("\n\n建議搜尋關鍵字 (依優先順序): ")
		b.WriteString(strings.Join(state.Plan.SearchKeywords, "、"))
	}
	if len(state.MandatoryKeywords) > 0 {
		b.WriteString("\n\n必查關鍵字 (下列法規務必優先查證):\n")
		for _, k := range state.MandatoryKeywords {
			b.WriteString("- " + k + "\n")
		}
	}
	return b.String()
}

// enrich downloads page content for the top hits that arrived without any,
// bounded in parallelism and per-item time. Failures are recorded on the
// finding instead of aborting the pass.
func (r *Researcher) enrich(ctx context.Context, findings []Finding) {
	if r.Fetcher == nil {
		return
	}
	topN := r.TopNToFetch
	if topN <= 0 {
		topN = DefaultTopNToFetch
	}
	workers := r.MaxWorkers
	if workers <= 0 {
		workers = DefaultMaxWorkers
	}
	timeout := r.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	scanned := 0
	for i := range findings {
		if scanned >= topN {
			break
		}
		scanned++
		if findings[i].ContentFetched || findings[i].URL == "" {
			continue
		}
		if !strings.HasPrefix(findings[i].URL, "http") {
			continue
		}
		i := i
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			res, err := r.Fetcher.Get(itemCtx, findings[i].URL)
			if err != nil {
				findings[i].FetchError = err.Error()
				return nil
			}
			var text string
			if fetch.IsPDFContentType(res.ContentType) {
				if r.PDF == nil {
					findings[i].FetchError = "pdf content not inlined"
					return nil
				}
				text, _, err = r.PDF.Extract(res.Body)
				if err != nil {
					findings[i].FetchError = err.Error()
					return nil
				}
			} else {
				doc := extract.FromHTML(res.Body)
				text = doc.Text
			}
			if strings.TrimSpace(text) == "" {
				findings[i].FetchError = "empty content"
				return nil
			}
			findings[i].FullContent = extract.Truncate(text, maxFindingContent)
			findings[i].ContentFetched = true
			return nil
		})
	}
	_ = g.Wait()
}
