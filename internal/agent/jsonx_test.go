package agent

import (
	"strings"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			"json fence preferred",
			"說明文字\n```json\n{\"a\": 1}\n```\n```\n{\"b\": 2}\n```",
			`{"a": 1}`, false,
		},
		{
			"any fence",
			"```\n{\"b\": 2}\n```",
			`{"b": 2}`, false,
		},
		{
			"bare object",
			`{"c": 3}`,
			`{"c": 3}`, false,
		},
		{
			"object embedded in prose",
			`好的，以下是結果: {"d": {"nested": "值 with } brace in string"}} 希望有幫助`,
			`{"d": {"nested": "值 with } brace in string"}}`, false,
		},
		{
			"array document",
			`[1, 2, 3]`,
			`[1, 2, 3]`, false,
		},
		{
			"no json at all",
			"抱歉，我無法回答這個問題。",
			"", true,
		},
		{
			"bare scalar rejected",
			`42`,
			"", true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := extractJSON(tc.content)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if strings.TrimSpace(string(raw)) != tc.want {
				t.Fatalf("raw = %s, want %s", raw, tc.want)
			}
		})
	}
}

func TestFindingFromMap(t *testing.T) {
	f := FindingFromMap(map[string]any{"title": "個資法", "url": "https://a", "snippet": "摘要"})
	if f.Title != "個資法" || f.URL != "https://a" || f.Snippet != "摘要" || f.ContentFetched {
		t.Fatalf("finding = %+v", f)
	}
	// Alternate link keys used by different tools.
	if f := FindingFromMap(map[string]any{"name": "法規", "href": "https://b"}); f.URL != "https://b" || f.Title != "法規" {
		t.Fatalf("finding = %+v", f)
	}
	if f := FindingFromMap(map[string]any{"source_url": "https://c", "body": "內容摘要"}); f.URL != "https://c" || f.Snippet != "內容摘要" {
		t.Fatalf("finding = %+v", f)
	}
	// Inline content marks the finding as already fetched.
	f = FindingFromMap(map[string]any{"name": "勞動基準法", "content": "第 1 條 ..."})
	if !f.ContentFetched || f.FullContent == "" {
		t.Fatalf("finding = %+v", f)
	}
}

func TestMergeFindings(t *testing.T) {
	existing := []Finding{{Title: "first", URL: "https://a", Snippet: "original"}}
	merged := MergeFindings(existing, []Finding{
		{Title: "dup", URL: "https://a", Snippet: "replacement"},
		{Title: "second", URL: "https://b"},
		{Title: "statute text", FullContent: "第 1 條"},
		{Title: "statute text again", FullContent: "第 2 條"},
	})
	if len(merged) != 4 {
		t.Fatalf("merged = %d: %+v", len(merged), merged)
	}
	// First occurrence wins for duplicate URLs.
	if merged[0].Snippet != "original" {
		t.Fatalf("dedup replaced first occurrence: %+v", merged[0])
	}
	// URL-less findings are always kept.
	if merged[2].Title != "statute text" || merged[3].Title != "statute text again" {
		t.Fatalf("url-less findings dropped: %+v", merged)
	}
}
