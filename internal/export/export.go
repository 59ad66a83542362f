// Package export renders a finished answer to Markdown, JSON or PDF for
// sharing outside the CLI. Markdown is the canonical rendering; the PDF is
// produced from it.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/complyhq/regscout/internal/team"
)

// Markdown renders the result as a Markdown document.
func Markdown(res *team.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 法規查詢報告\n\n")
	fmt.Fprintf(&b, "**問題**: %s\n\n", res.OriginalQuery)
	if res.Jurisdiction != "" {
		fmt.Fprintf(&b, "**地區**: %s\n\n", res.Jurisdiction)
	}
	fmt.Fprintf(&b, "**查詢時間**: %s\n\n", res.Timestamp.Format("2006-01-02 15:04"))
	if res.FromCache {
		b.WriteString("> 本報告來自快取。\n\n")
	}

	r := res.Report
	if r == nil {
		if res.Error != "" {
			fmt.Fprintf(&b, "查詢失敗: %s\n", res.Error)
		}
		if len(res.ClarificationQuestions) > 0 {
			b.WriteString("需要補充說明:\n\n")
			for _, q := range res.ClarificationQuestions {
				fmt.Fprintf(&b, "- %s\n", q)
			}
		}
		return b.String()
	}

	if r.Summary != "" {
		b.WriteString("## 摘要\n\n")
		b.WriteString(r.Summary)
		b.WriteString("\n\n")
	}

	if len(r.Regulations) > 0 {
		b.WriteString("## 相關法規\n\n")
		for _, reg := range r.Regulations {
			name := reg.Name
			if reg.NameEN != "" {
				name += " (" + reg.NameEN + ")"
			}
			fmt.Fprintf(&b, "### %s\n\n", name)
			if reg.Status != "" {
				fmt.Fprintf(&b, "- 狀態: %s\n", reg.Status)
			}
			if reg.EffectiveDate != "" {
				fmt.Fprintf(&b, "- 生效日期: %s\n", reg.EffectiveDate)
			}
			if reg.Penalties != "" {
				fmt.Fprintf(&b, "- 罰則: %s\n", reg.Penalties)
			}
			if reg.SourceURL != "" {
				fmt.Fprintf(&b, "- 來源: [%s](%s)\n", reg.SourceURL, reg.SourceURL)
			}
			if len(reg.KeyPoints) > 0 {
				b.WriteString("\n重點:\n\n")
				for _, p := range reg.KeyPoints {
					fmt.Fprintf(&b, "- %s\n", p)
				}
			}
			b.WriteString("\n")
		}
	}

	if len(r.RiskWarnings) > 0 {
		b.WriteString("## 風險提醒\n\n")
		for _, w := range r.RiskWarnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if len(r.Sources) > 0 {
		b.WriteString("## 資料來源\n\n")
		for _, s := range r.Sources {
			fmt.Fprintf(&b, "- [%s](%s)\n", s, s)
		}
		b.WriteString("\n")
	}

	if len(r.Limitations) > 0 {
		b.WriteString("## 查詢限制\n\n")
		for _, l := range r.Limitations {
			fmt.Fprintf(&b, "- %s\n", l)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## 信心分數\n\n%.2f\n\n", r.ConfidenceScore)
	fmt.Fprintf(&b, "---\n\n%s\n\n%s\n", r.Disclaimer.ZH, r.Disclaimer.EN)
	return b.String()
}

// JSON renders the result as indented JSON.
func JSON(res *team.Result) ([]byte, error) {
	return json.MarshalIndent(res, "", "  ")
}

// WriteMarkdown writes the Markdown rendering to path.
func WriteMarkdown(res *team.Result, path string) error {
	return os.WriteFile(path, []byte(Markdown(res)), 0o644)
}

// WriteJSON writes the JSON rendering to path.
func WriteJSON(res *team.Result, path string) error {
	raw, err := JSON(res)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// PDFOptions control PDF rendering. The built-in core fonts cannot render
// CJK text, so reports in Chinese need a UTF-8 TTF supplied by the caller.
type PDFOptions struct {
	// FontPath points at a .ttf with CJK coverage (e.g. a Noto Sans TC file).
	// Empty means the Helvetica core font.
	FontPath string
}

// WritePDF writes a simple PDF rendering of the result to path. Layout is
// line-oriented Markdown: headings get a larger bold font, links become
// clickable, everything else flows as paragraphs.
func WritePDF(res *team.Result, path string, opts PDFOptions) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	family := "Helvetica"
	if opts.FontPath != "" {
		family = "report"
		pdf.AddUTF8Font(family, "", opts.FontPath)
		// Reuse the regular face for bold headings; a second font file is
		// not worth requiring.
		pdf.AddUTF8Font(family, "B", opts.FontPath)
	}
	pdf.SetFont(family, "", 11)
	pdf.AddPage()

	linkRe := regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

	scanner := bufio.NewScanner(strings.NewReader(Markdown(res)))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		s := strings.TrimSpace(scanner.Text())
		if s == "" {
			pdf.Ln(5)
			continue
		}
		if strings.HasPrefix(s, "#") {
			i := 0
			for i < len(s) && s[i] == '#' {
				i++
			}
			text := strings.TrimSpace(s[i:])
			if text == "" {
				continue
			}
			size := 14.0
			if i >= 2 {
				size = 12.0
			}
			pdf.SetFont(family, "B", size)
			pdf.CellFormat(0, 8, text, "", 1, "L", false, 0, "")
			pdf.SetFont(family, "", 11)
			continue
		}
		parts := linkRe.FindAllStringSubmatchIndex(s, -1)
		if len(parts) == 0 {
			pdf.MultiCell(0, 5, s, "", "L", false)
			continue
		}
		pos := 0
		for _, m := range parts {
			if m[0] > pos {
				pdf.Write(5, s[pos:m[0]])
			}
			pdf.WriteLinkString(5, s[m[2]:m[3]], s[m[4]:m[5]])
			pos = m[1]
		}
		if pos < len(s) {
			pdf.Write(5, s[pos:])
		}
		pdf.Ln(6)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return pdf.OutputFileAndClose(path)
}
