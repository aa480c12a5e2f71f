package graph

import (
	"context"
	"strings"
)

// completerFunc adapts a function to Completer.
type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// chunkOf recovers the chunk text embedded in an extraction prompt.
func chunkOf(prompt string) string {
	const startMarker = "Text:\n"
	const endMarker = "\n\nOutput a JSON array"
	i := strings.Index(prompt, startMarker)
	j := strings.Index(prompt, endMarker)
	if i < 0 || j < i {
		return ""
	}
	return prompt[i+len(startMarker) : j]
}
