package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Registry maps lowercase file extensions (without the dot) to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry with the built-in parsers.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&PDFParser{}, &DOCXParser{}, &XLSXParser{}, &PPTXParser{}, &TextParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// Get returns the parser registered for format.
func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return p, nil
}

// Register adds or replaces the parser for format.
func (r *Registry) Register(format string, p Parser) {
	r.parsers[strings.ToLower(format)] = p
}

// Formats lists the registered formats.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for f := range r.parsers {
		out = append(out, f)
	}
	return out
}

// FormatOf derives a registry key from a file name.
func FormatOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Text picks a parser by the file name's extension and returns the
// document's full text.
func (r *Registry) Text(ctx context.Context, filename string, data []byte) (string, error) {
	p, err := r.Get(FormatOf(filename))
	if err != nil {
		return "", err
	}
	res, err := p.Parse(ctx, data)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", filename, err)
	}
	return res.Text(), nil
}
