package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// jpLaw is one entry of the built-in Japanese law catalog. The e-Gov statute
// database has no keyword API usable without a browser session, so a curated
// catalog answers direct lookups and web augmentation covers the rest.
type jpLaw struct {
	Name     string
	NameEN   string
	Category string
	URL      string
	Keywords []string
}

var jpCatalog = []jpLaw{
	{"個人情報の保護に関する法律", "Act on the Protection of Personal Information", "privacy",
		"https://elaws.e-gov.go.jp/document?lawid=415AC0000000057", []string{"個人情報", "APPI", "プライバシー", "個資"}},
	{"労働基準法", "Labor Standards Act", "labor",
		"https://elaws.e-gov.go.jp/document?lawid=322AC0000000049", []string{"労働", "勞動", "労基法", "残業"}},
	{"サイバーセキュリティ基本法", "Basic Act on Cybersecurity", "cybersecurity",
		"https://elaws.e-gov.go.jp/document?lawid=426AC1000000104", []string{"サイバー", "資安", "セキュリティ"}},
	{"不正アクセス行為の禁止等に関する法律", "Act on Prohibition of Unauthorized Computer Access", "cybersecurity",
		"https://elaws.e-gov.go.jp/document?lawid=411AC0000000128", []string{"不正アクセス", "資安", "駭客"}},
	{"特定電子メールの送信の適正化等に関する法律", "Act on Regulation of Transmission of Specified Electronic Mail", "privacy",
		"https://elaws.e-gov.go.jp/document?lawid=414AC0000000026", []string{"電子メール", "スパム", "垃圾郵件"}},
	{"金融商品取引法", "Financial Instruments and Exchange Act", "finance",
		"https://elaws.e-gov.go.jp/document?lawid=323AC0000000025", []string{"金融", "証券", "金商法"}},
	{"会社法", "Companies Act", "corporate",
		"https://elaws.e-gov.go.jp/document?lawid=417AC0000000086", []string{"会社", "公司", "取締役"}},
	{"不当景品類及び不当表示防止法", "Act against Unjustifiable Premiums and Misleading Representations", "consumer",
		"https://elaws.e-gov.go.jp/document?lawid=337AC0000000134", []string{"景品表示", "広告", "消費者"}},
}

// defaultJPSites are the official portals web augmentation is restricted to.
var defaultJPSites = []string{"elaws.e-gov.go.jp", "fsa.go.jp", "nisc.go.jp"}

// broadQueryTokens mark queries asking for a whole category ("所有日本資安法規")
// rather than one statute.
var broadQueryTokens = []string{"所有", "全部", "相關", "有哪些", "列出", "all", "全て", "すべて", "一覧"}

var searchJPLawsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"keyword": {"type": "string", "description": "法規名稱、主題或關鍵字 (中日英皆可)"}
	},
	"required": ["keyword"]
}`)

func registerJPLaws(r *Registry, deps Deps) error {
	return r.Register(Definition{
		Name:        "search_jp_laws",
		Description: "搜尋日本法令，先查內建法令目錄，必要時以官方網站搜尋補充。",
		Schema:      searchJPLawsSchema,
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
			return searchJPLaws(ctx, deps, a.Keyword), nil
		},
	})
}

func searchJPLaws(ctx context.Context, deps Deps, keyword string) map[string]any {
	kw := strings.TrimSpace(keyword)
	broad := isBroadQuery(kw)

	var matches []jpLaw
	if broad {
		// A category ask returns the matching slice of the whole catalog, or
		// the full catalog when no category keyword matches either.
		matches = catalogJPByCategory(kw)
		if len(matches) == 0 {
			matches = jpCatalog
		}
	} else {
		matches = catalogJPSearch(kw)
	}

	results := make([]map[string]any, 0, len(matches))
	for _, law := range matches {
		results = append(results, map[string]any{
			"name":     law.Name,
			"name_en":  law.NameEN,
			"category": law.Category,
			"url":      law.URL,
		})
	}

	// Augment from the official portals when the catalog is thin or the ask
	// was broad, so new statutes the catalog does not know about still show.
	if deps.Search != nil && (broad || len(results) == 0) {
		results = append(results, jpWebAugment(ctx, deps, kw)...)
	}

	return map[string]any{
		"status":  "success",
		"keyword": keyword,
		"source":  "jp_catalog",
		"results": results,
	}
}

func isBroadQuery(keyword string) bool {
	lower := strings.ToLower(keyword)
	for _, token := range broadQueryTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

var jpCategoryHints = map[string][]string{
	"privacy":       {"個人情報", "個資", "隱私", "プライバシー", "privacy", "personal"},
	"labor":         {"労働", "勞動", "勞工", "labor", "労基"},
	"cybersecurity": {"サイバー", "資安", "資通", "セキュリティ", "cyber", "security"},
	"finance":       {"金融", "証券", "finance", "financial"},
	"corporate":     {"会社", "公司", "corporate", "company"},
	"consumer":      {"消費", "広告", "景品", "consumer"},
}

func catalogJPByCategory(keyword string) []jpLaw {
	lower := strings.ToLower(keyword)
	wanted := make(map[string]struct{})
	for category, hints := range jpCategoryHints {
		for _, hint := range hints {
			if strings.Contains(lower, strings.ToLower(hint)) {
				wanted[category] = struct{}{}
				break
			}
		}
	}
	if len(wanted) == 0 {
		return nil
	}
	var out []jpLaw
	for _, law := range jpCatalog {
		if _, ok := wanted[law.Category]; ok {
			out = append(out, law)
		}
	}
	return out
}

func catalogJPSearch(keyword string) []jpLaw {
	var out []jpLaw
	for _, law := range jpCatalog {
		if matchesJPLaw(law, keyword) {
			out = append(out, law)
		}
	}
	return out
}

func matchesJPLaw(law jpLaw, keyword string) bool {
	lower := strings.ToLower(keyword)
	if strings.Contains(law.Name, keyword) || strings.Contains(strings.ToLower(law.NameEN), lower) {
		return true
	}
	for _, k := range law.Keywords {
		if strings.Contains(lower, strings.ToLower(k)) || strings.Contains(strings.ToLower(k), lower) {
			return true
		}
	}
	return false
}

func jpWebAugment(ctx context.Context, deps Deps, keyword string) []map[string]any {
	sites := deps.JPSites
	if len(sites) == 0 {
		sites = defaultJPSites
	}
	profile := deps.Regions.Lookup("japan")
	var out []map[string]any
	for _, site := range sites {
		req := searchRequest(keyword, 3, profile)
		req.Site = site
		hits, err := deps.Search.Search(ctx, req)
		if err != nil {
			log.Warn().Str("site", site).Err(err).Msg("jp web augmentation failed")
			continue
		}
		for _, h := range hits {
			out = append(out, map[string]any{
				"name":    h.Title,
				"url":     h.URL,
				"snippet": h.Snippet,
				"source":  "web:" + site,
			})
		}
	}
	return out
}
