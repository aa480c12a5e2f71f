// Package rag answers questions about a single document by placing the
// document's full text in the prompt.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

// NoDocumentReply is returned, without calling the backend, when there is
// no document text to answer from.
const NoDocumentReply = "Please upload a PDF first to enable question answering."

// DefaultMaxContextChars bounds the document text sent with a question.
const DefaultMaxContextChars = 400_000

// ErrContextTooLarge is returned when the document exceeds the context
// budget.
var ErrContextTooLarge = errors.New("rag: document exceeds context budget")

// Completer sends one prompt to a generative backend and returns the raw
// text it produced.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const answerPrompt = `You are a helpful assistant. Answer the user's question based on the provided context from the document.
If you do not have enough context, just politely say you cannot answer.

Context:
%s

Question:
%s

Answer:
`

// Responder answers questions grounded in a document's text.
type Responder struct {
	llm             Completer
	maxContextChars int
}

// Option configures a Responder.
type Option func(*Responder)

// WithMaxContextChars overrides the context budget. Zero or negative
// disables the check.
func WithMaxContextChars(n int) Option {
	return func(r *Responder) { r.maxContextChars = n }
}

// NewResponder creates a responder backed by c.
func NewResponder(c Completer, opts ...Option) *Responder {
	r := &Responder{llm: c, maxContextChars: DefaultMaxContextChars}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Prompt renders the answering prompt.
func Prompt(question, documentText string) string {
	return fmt.Sprintf(answerPrompt, documentText, question)
}

// Respond answers question from documentText. The backend's text is
// returned verbatim.
func (r *Responder) Respond(ctx context.Context, question, documentText string) (string, error) {
	if documentText == "" {
		return NoDocumentReply, nil
	}

	if r.maxContextChars > 0 {
		if n := utf8.RuneCountInString(documentText); n > r.maxContextChars {
			return "", fmt.Errorf("%w: %d characters, limit %d", ErrContextTooLarge, n, r.maxContextChars)
		}
	}

	answer, err := r.llm.Complete(ctx, Prompt(question, documentText))
	if err != nil {
		return "", fmt.Errorf("answering question: %w", err)
	}

	slog.Debug("rag: answered", "question_len", len(question), "context_len", len(documentText),
		"answer_len", len(answer))
	return answer, nil
}
