package parser

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupportedFormat is returned when no parser is registered for a
// document's format.
var ErrUnsupportedFormat = errors.New("parser: unsupported format")

// ParseResult is what a parser produces from a document.
type ParseResult struct {
	Sections []Section // Ordered sections extracted from the document
	Format   string
}

// Section is one unit of extracted text: a PDF page, a slide, a sheet or a
// heading-delimited block.
type Section struct {
	Heading    string
	Content    string
	PageNumber int
}

// Text joins every non-empty section into a single document string,
// separated by newlines.
func (r *ParseResult) Text() string {
	var b strings.Builder
	for _, s := range r.Sections {
		if strings.TrimSpace(s.Content) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(s.Content)
	}
	return b.String()
}

// Parser can parse a specific document format from its raw bytes.
type Parser interface {
	Parse(ctx context.Context, data []byte) (*ParseResult, error)
	SupportedFormats() []string
}
