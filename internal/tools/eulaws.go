package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// euLaw is one entry of the built-in EU regulation catalog with its CELEX
// identifier and EUR-Lex link.
type euLaw struct {
	Name     string
	Abbrev   string
	CELEX    string
	URL      string
	Keywords []string
}

var euCatalog = []euLaw{
	{"General Data Protection Regulation", "GDPR", "32016R0679",
		"https://eur-lex.europa.eu/eli/reg/2016/679/oj", []string{"gdpr", "data protection", "個資", "個人資料", "privacy"}},
	{"NIS 2 Directive", "NIS2", "32022L2555",
		"https://eur-lex.europa.eu/eli/dir/2022/2555/oj", []string{"nis2", "nis 2", "network security", "資安", "cybersecurity"}},
	{"Digital Operational Resilience Act", "DORA", "32022R2554",
		"https://eur-lex.europa.eu/eli/reg/2022/2554/oj", []string{"dora", "operational resilience", "金融資安", "financial"}},
	{"Artificial Intelligence Act", "AI Act", "32024R1689",
		"https://eur-lex.europa.eu/eli/reg/2024/1689/oj", []string{"ai act", "artificial intelligence", "人工智慧", "ai 法"}},
	{"ePrivacy Directive", "ePrivacy", "32002L0058",
		"https://eur-lex.europa.eu/eli/dir/2002/58/oj", []string{"eprivacy", "cookie", "electronic communications"}},
	{"Cyber Resilience Act", "CRA", "32024R2847",
		"https://eur-lex.europa.eu/eli/reg/2024/2847/oj", []string{"cra", "cyber resilience", "product security"}},
	{"Digital Services Act", "DSA", "32022R2065",
		"https://eur-lex.europa.eu/eli/reg/2022/2065/oj", []string{"dsa", "digital services", "平台"}},
	{"Digital Markets Act", "DMA", "32022R1925",
		"https://eur-lex.europa.eu/eli/reg/2022/1925/oj", []string{"dma", "digital markets", "gatekeeper"}},
	{"Markets in Crypto-Assets Regulation", "MiCA", "32023R1114",
		"https://eur-lex.europa.eu/eli/reg/2023/1114/oj", []string{"mica", "crypto", "虛擬資產", "加密"}},
}

var searchEULawsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"keyword": {"type": "string", "description": "法規名稱、縮寫或主題 (中英皆可)"}
	},
	"required": ["keyword"]
}`)

func registerEULaws(r *Registry, deps Deps) error {
	return r.Register(Definition{
		Name:        "search_eu_laws",
		Description: "搜尋歐盟法規，先查內建目錄，查無結果時改以 EUR-Lex 網站搜尋。",
		Schema:      searchEULawsSchema,
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var a struct {
				Keyword string `json:"keyword"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return nil, fmt.Errorf("parse arguments: %w", err)
			}
			if strings.TrimSpace(a.Keyword) == "" {
				return nil, fmt.Errorf("keyword is required")
			}
			return searchEULaws(ctx, deps, a.Keyword), nil
		},
	})
}

func searchEULaws(ctx context.Context, deps Deps, keyword string) map[string]any {
	kw := strings.TrimSpace(keyword)
	source := "eu_catalog"

	var results []map[string]any
	for _, law := range euCatalog {
		if matchesEULaw(law, kw) {
			results = append(results, map[string]any{
				"name":   law.Name,
				"abbrev": law.Abbrev,
				"celex":  law.CELEX,
				"url":    law.URL,
			})
		}
	}

	// Unknown subject: fall back to a site-restricted EUR-Lex web search.
	if len(results) == 0 && deps.Search != nil {
		profile := deps.Regions.Lookup("eu")
		req := searchRequest(kw, 5, profile)
		req.Site = "eur-lex.europa.eu"
		hits, err := deps.Search.Search(ctx, req)
		if err != nil {
			log.Warn().Str("keyword", kw).Err(err).Msg("eur-lex fallback search failed")
		}
		for _, h := range hits {
			results = append(results, map[string]any{
				"name":    h.Title,
				"url":     h.URL,
				"snippet": h.Snippet,
			})
		}
		source = "eur-lex.europa.eu"
	}

	return map[string]any{
		"status":  "success",
		"keyword": keyword,
		"source":  source,
		"results": results,
	}
}

func matchesEULaw(law euLaw, keyword string) bool {
	lower := strings.ToLower(keyword)
	if strings.Contains(strings.ToLower(law.Name), lower) ||
		strings.Contains(strings.ToLower(law.Abbrev), lower) ||
		strings.Contains(law.CELEX, keyword) {
		return true
	}
	for _, k := range law.Keywords {
		if strings.Contains(lower, strings.ToLower(k)) || strings.Contains(strings.ToLower(k), lower) {
			return true
		}
	}
	return false
}
