package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// ErrNoJSONArray is returned by ParseTriplets when the response holds no
// array of objects.
var ErrNoJSONArray = errors.New("graph: no JSON array in response")

// Completer sends one prompt to a generative backend and returns the raw
// text it produced.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// extractionPrompt asks for a bare JSON array of triplets. The consistency
// instruction keeps subjects that recur in a chunk under one name so the
// merged graph links up instead of fragmenting.
const extractionPrompt = `You are an expert at extracting knowledge-graph triplets from text.
Extract every subject-predicate-object triplet stated in the text below.
Represent each triplet as a JSON object with exactly the keys "subject", "predicate" and "object".

Text:
%s

Output a JSON array like:
[
  {"subject": "...", "predicate": "...", "object": "..."},
  ...
]

Return only the JSON array. Do NOT include explanations or commentary.

When the same entity appears in several triplets, always use the same name for it.
Consistent names let the triplets join into one connected knowledge graph with little noise.`

// Extractor turns text chunks into triplets with one backend call each.
type Extractor struct {
	llm Completer
}

// NewExtractor creates an extractor backed by c.
func NewExtractor(c Completer) *Extractor {
	return &Extractor{llm: c}
}

// Prompt renders the extraction prompt for chunk.
func Prompt(chunk string) string {
	return fmt.Sprintf(extractionPrompt, chunk)
}

// Extract asks the backend for the triplets in chunk. A response that
// cannot be parsed yields an empty result and a warning; only a failed
// backend call is returned as an error.
func (e *Extractor) Extract(ctx context.Context, chunk string) ([]Triplet, error) {
	raw, err := e.llm.Complete(ctx, Prompt(chunk))
	if err != nil {
		return nil, fmt.Errorf("triplet extraction: %w", err)
	}

	triplets, err := ParseTriplets(raw)
	if err != nil {
		slog.Warn("graph: unparseable extraction response",
			"error", err, "response_len", len(raw), "response_head", head(raw, 120))
		return []Triplet{}, nil
	}
	return triplets, nil
}

var (
	// tripletArrayRe matches the first bracketed run of objects, lazily, so
	// trailing commentary containing "]" is not swallowed.
	tripletArrayRe = regexp.MustCompile(`(?s)\[\s*\{.*?\}\s*\]`)
	thinkBlockRe   = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// ParseTriplets locates the JSON array in a raw model response and decodes
// it. Reasoning blocks (<think>…</think>) are removed first so arrays quoted
// inside them are not mistaken for the answer.
func ParseTriplets(raw string) ([]Triplet, error) {
	text := stripThinking(raw)

	match := tripletArrayRe.FindString(text)
	if match == "" {
		return nil, ErrNoJSONArray
	}

	var triplets []Triplet
	if err := json.Unmarshal([]byte(match), &triplets); err != nil {
		return nil, fmt.Errorf("graph: decoding triplet array: %w", err)
	}
	if triplets == nil {
		triplets = []Triplet{}
	}
	return triplets, nil
}

// stripThinking removes reasoning blocks. A dangling close tag (the opening
// tag was cut off) drops everything before it.
func stripThinking(s string) string {
	s = thinkBlockRe.ReplaceAllString(s, "")
	if i := strings.LastIndex(s, "</think>"); i >= 0 {
		s = s[i+len("</think>"):]
	}
	return s
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
