package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// GoogleCSE implements Provider against the Google Programmable Search JSON
// API. Regional parameters map onto the engine's lr/cr/gl/hl knobs so a
// Taiwanese query is answered from Taiwanese sources.
type GoogleCSE struct {
	APIKey     string
	EngineID   string
	HTTPClient *http.Client
	// BaseURL overrides the API endpoint; tests point it at a local server.
	BaseURL string
}

const googleCSEEndpoint = "https://www.googleapis.com/customsearch/v1"

func (g *GoogleCSE) Name() string { return "google_cse" }

func (g *GoogleCSE) Search(ctx context.Context, req Request) ([]Result, error) {
	if g.APIKey == "" || g.EngineID == "" {
		return nil, fmt.Errorf("google cse: api key or engine id missing")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 10 {
		// The JSON API returns at most 10 per call.
		limit = 10
	}

	base := g.BaseURL
	if base == "" {
		base = googleCSEEndpoint
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("key", g.APIKey)
	q.Set("cx", g.EngineID)
	q.Set("q", req.Query)
	q.Set("num", strconv.Itoa(limit))
	if req.DisableDuplicateFilter {
		q.Set("filter", "0")
	}
	if v := req.Region.Language; v != "" {
		q.Set("lr", v)
	}
	if v := req.Region.Country; v != "" {
		q.Set("cr", v)
	}
	if v := req.Region.Geolocation; v != "" {
		q.Set("gl", v)
	}
	if v := req.Region.InterfaceLang; v != "" {
		q.Set("hl", v)
	}
	if req.Region.DisableSimplifiedChinese {
		q.Set("c2coff", "1")
	}
	if v := req.Site; v != "" {
		q.Set("siteSearch", v)
		q.Set("siteSearchFilter", "i")
	}
	if v := req.DateRestrict; v != "" {
		q.Set("dateRestrict", v)
	}
	if v := req.FileType; v != "" {
		q.Set("fileType", v)
	}
	if v := req.ExactTerms; v != "" {
		q.Set("exactTerms", v)
	}
	if v := req.ExcludeTerms; v != "" {
		q.Set("excludeTerms", v)
	}
	if v := req.OrTerms; v != "" {
		q.Set("orTerms", v)
	}
	if req.SortByDate {
		q.Set("sort", "date")
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	hc := g.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("google cse status: %d", resp.StatusCode)
	}
	var gr googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(gr.Items))
	for _, item := range gr.Items {
		if item.Link == "" || item.Title == "" {
			continue
		}
		out = append(out, Result{
			Title:   strings.TrimSpace(item.Title),
			URL:     strings.TrimSpace(item.Link),
			Snippet: strings.TrimSpace(item.Snippet),
			Source:  g.Name(),
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}
