package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/complyhq/regscout/internal/extract"
)

// defaultTWLawBase is the national statute database of Taiwan.
const defaultTWLawBase = "https://law.moj.gov.tw"

// twLaw is one entry of the built-in catalog used when the portal is
// unreachable. PCodes are the portal's stable statute identifiers.
type twLaw struct {
	Name      string
	PCode     string
	Authority string
	Keywords  []string
}

var twCatalog = []twLaw{
	{"個人資料保護法", "I0050021", "個人資料保護委員會", []string{"個資", "隱私", "個人資料"}},
	{"勞動基準法", "N0030001", "勞動部", []string{"勞基法", "工時", "加班", "勞工"}},
	{"資通安全管理法", "A0030297", "數位發展部", []string{"資安", "資通安全", "網路安全"}},
	{"公司法", "J0080001", "經濟部", []string{"公司", "股份有限公司", "董事"}},
	{"消費者保護法", "J0170001", "行政院", []string{"消保法", "消費者", "定型化契約"}},
	{"職業安全衛生法", "N0060001", "勞動部", []string{"職安", "工安", "職業災害"}},
	{"洗錢防制法", "G0380131", "法務部", []string{"洗錢", "反洗錢", "AML"}},
	{"金融消費者保護法", "G0380226", "金融監督管理委員會", []string{"金融消費", "金管會"}},
	{"食品安全衛生管理法", "L0040001", "衛生福利部", []string{"食安", "食品"}},
	{"著作權法", "J0070017", "經濟部智慧財產局", []string{"著作權", "版權", "智慧財產"}},
}

var searchTWLawsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"keyword": {"type": "string", "description": "法規名稱或關鍵字"}
	},
	"required": ["keyword"]
}`)

var fetchTWLawSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"pcode": {"type": "string", "description": "全國法規資料庫法規代碼，例如 I0050021"}
	},
	"required": ["pcode"]
}`)

func registerTWLaws(r *Registry, deps Deps) error {
	if err := r.Register(Definition{
		Name:        "search_tw_laws",
		Description: "在全國法規資料庫搜尋台灣法規，回傳法規名稱與代碼 (pcode)。",
		Schema:      searchTWLawsSchema,
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
			return searchTWLaws(ctx, deps, a.Keyword), nil
		},
	}); err != nil {
		return err
	}
	return r.Register(Definition{
		Name:        "fetch_tw_law_content",
		Description: "以 pcode 取得台灣法規全文條文。",
		Schema:      fetchTWLawSchema,
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var a struct {
				PCode string `json:"pcode"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return nil, fmt.Errorf("parse arguments: %w", err)
			}
			if strings.TrimSpace(a.PCode) == "" {
				return nil, fmt.Errorf("pcode is required")
			}
			return fetchTWLawContent(ctx, deps, strings.TrimSpace(a.PCode))
		},
	})
}

func twLawBase(deps Deps) string {
	if deps.TWLawBase != "" {
		return strings.TrimRight(deps.TWLawBase, "/")
	}
	return defaultTWLawBase
}

// searchTWLaws queries the statute portal and falls back to the built-in
// catalog when the portal is unreachable or returns nothing. It never errors:
// the caller always gets a result document.
func searchTWLaws(ctx context.Context, deps Deps, keyword string) map[string]any {
	base := twLawBase(deps)
	results, err := crawlTWSearch(ctx, deps, base, keyword)
	source := "law.moj.gov.tw"
	if err != nil || len(results) == 0 {
		if err != nil {
			log.Warn().Str("keyword", keyword).Err(err).Msg("tw law portal unreachable, using built-in catalog")
		}
		results = catalogTWSearch(base, keyword)
		source = "builtin_catalog"
	}
	return map[string]any{
		"status":  "success",
		"keyword": keyword,
		"source":  source,
		"results": results,
	}
}

func crawlTWSearch(ctx context.Context, deps Deps, base, keyword string) ([]map[string]any, error) {
	searchURL := base + "/Law/LawSearchResult.aspx?ty=ONEBAR&kw=" + url.QueryEscape(keyword)
	res, err := deps.Fetcher.Get(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	return parseTWSearchResults(base, res.Body), nil
}

var pcodeRe = regexp.MustCompile(`[?&](?i)pcode=([A-Z0-9]+)`)

// parseTWSearchResults walks the result page anchors and collects links to
// statute pages (LawAll.aspx?pcode=...), keeping first occurrence per pcode.
func parseTWSearchResults(base string, body []byte) []map[string]any {
	node, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []map[string]any
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "a") {
			var href string
			for _, attr := range n.Attr {
				if strings.EqualFold(attr.Key, "href") {
					href = attr.Val
					break
				}
			}
			if m := pcodeRe.FindStringSubmatch(href); m != nil {
				pcode := strings.ToUpper(m[1])
				name := strings.TrimSpace(anchorText(n))
				if _, dup := seen[pcode]; !dup && name != "" {
					seen[pcode] = struct{}{}
					out = append(out, map[string]any{
						"name":  name,
						"pcode": pcode,
						"url":   base + "/LawClass/LawAll.aspx?pcode=" + pcode,
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return out
}

func anchorText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func catalogTWSearch(base, keyword string) []map[string]any {
	kw := strings.TrimSpace(keyword)
	var out []map[string]any
	for _, law := range twCatalog {
		if !matchesTWLaw(law, kw) {
			continue
		}
		out = append(out, map[string]any{
			"name":      law.Name,
			"pcode":     law.PCode,
			"authority": law.Authority,
			"url":       base + "/LawClass/LawAll.aspx?pcode=" + law.PCode,
		})
	}
	return out
}

func matchesTWLaw(law twLaw, keyword string) bool {
	if keyword == "" {
		return true
	}
	if strings.Contains(law.Name, keyword) || strings.Contains(keyword, law.Name) {
		return true
	}
	for _, k := range law.Keywords {
		if strings.Contains(keyword, k) || strings.Contains(k, keyword) {
			return true
		}
	}
	return false
}

var twArticleRe = regexp.MustCompile(`第\s*[0-9０-９]+(?:-[0-9０-９]+)?\s*條`)

func fetchTWLawContent(ctx context.Context, deps Deps, pcode string) (map[string]any, error) {
	lawURL := twLawBase(deps) + "/LawClass/LawAll.aspx?pcode=" + url.QueryEscape(pcode)
	res, err := deps.Fetcher.Get(ctx, lawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch law %s: %w", pcode, err)
	}
	doc := extract.FromHTML(res.Body)
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("law %s: empty content", pcode)
	}
	articles := len(twArticleRe.FindAllString(doc.Text, -1))
	return map[string]any{
		"status":   "success",
		"pcode":    pcode,
		"name":     strings.TrimSpace(strings.TrimSuffix(doc.Title, "-全國法規資料庫")),
		"url":      lawURL,
		"articles": articles,
		"content":  extract.Truncate(doc.Text, MaxContentChars),
	}, nil
}
