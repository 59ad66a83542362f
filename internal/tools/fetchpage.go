package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/complyhq/regscout/internal/extract"
	"github.com/complyhq/regscout/internal/fetch"
)

var fetchWebpageSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"url": {"type": "string", "description": "要讀取的網頁 URL"}
	},
	"required": ["url"]
}`)

func registerFetchWebpage(r *Registry, deps Deps) error {
	return r.Register(Definition{
		Name:        "fetch_webpage",
		Description: "讀取網頁並回傳純文字內容，用於取得法規條文或官方公告全文。",
		Schema:      fetchWebpageSchema,
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var a struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return nil, fmt.Errorf("parse arguments: %w", err)
			}
			if a.URL == "" {
				return nil, fmt.Errorf("url is required")
			}
			res, err := deps.Fetcher.Get(ctx, a.URL)
			if err != nil {
				return nil, fmt.Errorf("fetch %s: %w", a.URL, err)
			}
			if fetch.IsPDFContentType(res.ContentType) {
				return pdfResult(deps, a.URL, res.Body)
			}
			doc := extract.FromHTML(res.Body)
			return map[string]any{
				"status":  "success",
				"url":     a.URL,
				"title":   doc.Title,
				"content": extract.Truncate(doc.Text, MaxContentChars),
			}, nil
		},
	})
}

var fetchPDFSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"url": {"type": "string", "description": "PDF 文件的 URL"}
	},
	"required": ["url"]
}`)

func registerFetchPDF(r *Registry, deps Deps) error {
	return r.Register(Definition{
		Name:        "fetch_pdf_content",
		Description: "下載 PDF 文件並抽取文字內容，用於官方指引或函釋文件。",
		Schema:      fetchPDFSchema,
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var a struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return nil, fmt.Errorf("parse arguments: %w", err)
			}
			if a.URL == "" {
				return nil, fmt.Errorf("url is required")
			}
			// PDFs get the longer budget.
			res, err := deps.Fetcher.GetWithTimeout(ctx, a.URL, fetch.PDFTimeout)
			if err != nil {
				return nil, fmt.Errorf("fetch %s: %w", a.URL, err)
			}
			return pdfResult(deps, a.URL, res.Body)
		},
	})
}

func pdfResult(deps Deps, url string, body []byte) (map[string]any, error) {
	if deps.PDF == nil {
		return nil, fmt.Errorf("no pdf extractor configured")
	}
	text, pages, err := deps.PDF.Extract(body)
	if err != nil {
		return nil, fmt.Errorf("extract pdf %s: %w", url, err)
	}
	return map[string]any{
		"status":  "success",
		"url":     url,
		"pages":   pages,
		"content": extract.Truncate(text, MaxContentChars),
	}, nil
}
