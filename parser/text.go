package parser

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// TextParser handles plain text and markdown files.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "md"} }

func (p *TextParser) Parse(ctx context.Context, data []byte) (*ParseResult, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("text file is not valid UTF-8")
	}
	res := &ParseResult{Format: "txt"}
	if len(data) > 0 {
		res.Sections = []Section{{Content: string(data)}}
	}
	return res, nil
}
