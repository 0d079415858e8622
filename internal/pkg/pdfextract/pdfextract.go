// Package pdfextract pulls plain text out of PDF files, page by page, so
// provenance (filename + page number) survives into retrieval results.
package pdfextract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page is the extracted text of one PDF page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// File extracts the text of every page of the PDF at path. Pages without
// extractable text are skipped; page numbering is preserved. A PDF whose
// pages all come back empty yields an empty slice and no error — the
// caller decides whether that is a failure.
func File(path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]Page, 0, total)
	for num := 1; num <= total; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract text from page %d failed: %w", num, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: num, Text: text})
	}
	return pages, nil
}
