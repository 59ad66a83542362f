package pdftext

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

// makePDF renders one page of text per element of pages.
func makePDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		doc.MultiCell(0, 6, text, "", "L", false)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	return buf.Bytes()
}

func TestExtract(t *testing.T) {
	data := makePDF(t, "Data protection obligations apply.", "Administrative fines up to 500000.")
	text, pages, err := Reader{}.Extract(data)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if pages != 2 {
		t.Fatalf("pages = %d", pages)
	}
	for _, want := range []string{"Data protection", "500000"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text missing %q:\n%s", want, text)
		}
	}
}

func TestExtract_NotAPDF(t *testing.T) {
	if _, _, err := (Reader{}).Extract([]byte("<html>not a pdf</html>")); err == nil {
		t.Fatal("expected parse error")
	}
}
