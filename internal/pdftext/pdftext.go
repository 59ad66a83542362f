// Package pdftext extracts plain text from PDF bodies fetched by the
// fetch_pdf_content tool.
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor converts a raw PDF body into plain text. Implementations must be
// safe for concurrent use.
type Extractor interface {
	Extract(data []byte) (text string, pages int, err error)
}

// Reader is the default Extractor backed by a pure-Go PDF parser.
type Reader struct{}

// Extract parses data and returns the concatenated plain text of all pages
// along with the page count. Scanned (image-only) PDFs yield empty text and a
// descriptive error so callers can report the limitation instead of returning
// a silently blank document.
func (Reader) Extract(data []byte) (string, int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("parse pdf: %w", err)
	}
	pages := r.NumPage()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", pages, fmt.Errorf("extract text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", pages, fmt.Errorf("read text: %w", err)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", pages, fmt.Errorf("no extractable text in %d pages (scanned document?)", pages)
	}
	return text, pages, nil
}
