package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/complyhq/regscout/internal/region"
	"github.com/complyhq/regscout/internal/search"
)

type webSearchArgs struct {
	Query        string `json:"query"`
	Region       string `json:"region"`
	NumResults   int    `json:"num_results"`
	DateRestrict string `json:"date_restrict"`
	FileType     string `json:"file_type"`
	ExactTerms   string `json:"exact_terms"`
	ExcludeTerms string `json:"exclude_terms"`
	OrTerms      string `json:"or_terms"`
	SortByDate   bool   `json:"sort_by_date"`
	NoDupFilter  bool   `json:"disable_duplicate_filter"`
}

var webSearchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "搜尋關鍵字"},
		"region": {"type": "string", "description": "地區 (taiwan, japan, eu, usa)", "default": "taiwan"},
		"num_results": {"type": "integer", "description": "結果數量 (1-10)", "default": 10},
		"date_restrict": {"type": "string", "description": "時間範圍, 如 y1 (一年內)、m6 (六個月內)"},
		"file_type": {"type": "string", "description": "限定檔案類型, 如 pdf"},
		"exact_terms": {"type": "string", "description": "結果必須完整包含的詞"},
		"exclude_terms": {"type": "string", "description": "結果不得包含的詞"},
		"or_terms": {"type": "string", "description": "結果至少包含其中一個詞"},
		"sort_by_date": {"type": "boolean", "description": "依日期排序 (最新優先) 而非相關性"},
		"disable_duplicate_filter": {"type": "boolean", "description": "停用重複結果過濾，回傳所有命中"}
	},
	"required": ["query"]
}`)

func registerWebSearch(r *Registry, deps Deps) error {
	return r.Register(Definition{
		Name:        "web_search",
		Description: "使用地區化網頁搜尋查詢法規資訊。結果依地區設定偏向當地官方來源。",
		Schema:      webSearchSchema,
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var a webSearchArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return nil, fmt.Errorf("parse arguments: %w", err)
			}
			if a.Query == "" {
				return nil, fmt.Errorf("query is required")
			}
			if a.Region == "" {
				a.Region = "taiwan"
			}
			if a.NumResults <= 0 {
				a.NumResults = 10
			}
			return webSearch(ctx, deps, a)
		},
	})
}

// webSearch is shared by the web_search tool, the catalog fallbacks of the
// statute tools, and the scheduled verifier.
func webSearch(ctx context.Context, deps Deps, a webSearchArgs) (map[string]any, error) {
	if deps.Search == nil {
		return nil, fmt.Errorf("no search provider configured")
	}
	profile := deps.Regions.Lookup(a.Region)
	req := searchRequest(a.Query, a.NumResults, profile)
	req.DateRestrict = a.DateRestrict
	req.FileType = a.FileType
	req.ExactTerms = a.ExactTerms
	req.ExcludeTerms = a.ExcludeTerms
	req.OrTerms = a.OrTerms
	req.SortByDate = a.SortByDate
	req.DisableDuplicateFilter = a.NoDupFilter
	hits, err := deps.Search.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", a.Query, err)
	}
	results := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		results = append(results, map[string]any{
			"title":   h.Title,
			"url":     h.URL,
			"snippet": h.Snippet,
			"source":  h.Source,
		})
	}
	return map[string]any{
		"status":        "success",
		"query":         a.Query,
		"region":        a.Region,
		"search_engine": deps.Search.Name(),
		"results":       results,
	}, nil
}

func searchRequest(query string, limit int, profile region.Profile) search.Request {
	return search.Request{Query: query, Limit: limit, Region: profile}
}
