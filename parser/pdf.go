package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

// Parse extracts plain text page by page. Pages without a text layer, or
// whose content stream cannot be decoded, contribute nothing.
func (p *PDFParser) Parse(ctx context.Context, data []byte) (*ParseResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}

	totalPages := reader.NumPage()
	sections := make([]Section, 0, totalPages)

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("parser: skipping unreadable pdf page", "page", i, "error", err)
			continue
		}

		if strings.TrimSpace(text) == "" {
			continue
		}

		sections = append(sections, Section{
			Content:    text,
			PageNumber: i,
		})
	}

	return &ParseResult{Sections: sections, Format: "pdf"}, nil
}
