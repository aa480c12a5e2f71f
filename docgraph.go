// Package docgraph turns uploaded documents into a knowledge graph of
// (subject, predicate, object) triplets and answers questions grounded in a
// document's text.
//
// The flow mirrors a review step: SubmitDocument parses and extracts
// triplets without touching the graph, CommitGraph merges a (possibly
// edited) triplet list into the store, and Ask answers a question against
// the submitted document text.
package docgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brunobiangulo/docgraph/chunker"
	"github.com/brunobiangulo/docgraph/graph"
	"github.com/brunobiangulo/docgraph/llm"
	"github.com/brunobiangulo/docgraph/parser"
	"github.com/brunobiangulo/docgraph/rag"
	"github.com/brunobiangulo/docgraph/store"
)

// Engine is the main entry point for document-to-graph processing.
type Engine interface {
	// SubmitDocument parses a document and extracts its triplets. The graph
	// is not modified.
	SubmitDocument(ctx context.Context, filename string, data []byte) (*Submission, error)

	// CommitGraph merges triplets into the graph store. Merging is
	// idempotent; a partial failure still applies the successful triplets.
	CommitGraph(ctx context.Context, triplets []graph.Triplet) (*CommitResult, error)

	// DocumentText parses a document and returns its plain text without
	// extracting triplets.
	DocumentText(ctx context.Context, filename string, data []byte) (string, error)

	// Ask answers a question using only documentText as context.
	Ask(ctx context.Context, question, documentText string) (*Answer, error)

	// ClearGraph removes every entity and relation.
	ClearGraph(ctx context.Context) error

	// GraphStats returns entity and relation counts.
	GraphStats(ctx context.Context) (store.Stats, error)

	// ExportGraph returns a sorted copy of the whole graph.
	ExportGraph(ctx context.Context) (*store.Snapshot, error)

	// Close releases the graph store.
	Close() error
}

// Submission is the result of processing one document.
type Submission struct {
	Filename     string          `json:"filename"`
	Format       string          `json:"format"`
	Triplets     []graph.Triplet `json:"triplets"`
	DocumentText string          `json:"document_text"`
	ChunkCount   int             `json:"chunk_count"`
	FailedChunks int             `json:"failed_chunks"`
}

// CommitResult reports how many triplets were merged.
type CommitResult struct {
	InsertedCount int                  `json:"inserted_count"`
	Failed        []graph.TripletError `json:"failed,omitempty"`
}

// Answer is the response to a question.
type Answer struct {
	Text string `json:"text"`
}

// Option overrides a dependency that New would otherwise build from Config.
type Option func(*options)

type options struct {
	extraction graph.Completer
	answering  rag.Completer
	store      graph.Store
}

// WithExtractionModel uses c for triplet extraction instead of the
// configured backend.
func WithExtractionModel(c graph.Completer) Option {
	return func(o *options) { o.extraction = c }
}

// WithAnsweringModel uses c for question answering instead of the
// configured backend.
func WithAnsweringModel(c rag.Completer) Option {
	return func(o *options) { o.answering = c }
}

// WithStore uses s as the graph store instead of opening the configured
// backend. The engine takes ownership and closes it.
func WithStore(s graph.Store) Option {
	return func(o *options) { o.store = s }
}

type engine struct {
	cfg       Config
	parsers   *parser.Registry
	builder   *graph.Builder
	merger    *graph.Merger
	responder *rag.Responder
	store     graph.Store
}

// New creates an engine. The graph store is connected eagerly so that a
// misconfigured backend fails at startup rather than on first commit.
func New(ctx context.Context, cfg Config, opts ...Option) (Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	extraction := o.extraction
	if extraction == nil {
		m, err := newModel(cfg.Extraction, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating extraction model: %w", err)
		}
		extraction = m
	}

	answering := o.answering
	if answering == nil {
		m, err := newModel(cfg.Answering, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating answering model: %w", err)
		}
		answering = m
	}

	s := o.store
	if s == nil {
		b, err := store.Open(ctx, cfg.Graph)
		if err != nil {
			return nil, fmt.Errorf("opening graph store: %w", err)
		}
		s = b
	}

	chunkr := chunker.New(chunker.Config{
		MaxSize: cfg.ChunkSize,
		Overlap: cfg.ChunkOverlap,
	})

	builder := graph.NewBuilder(chunkr, graph.NewExtractor(extraction), graph.BuilderConfig{
		Concurrency:  cfg.ExtractConcurrency,
		ChunkTimeout: time.Duration(cfg.ChunkTimeoutSeconds) * time.Second,
	})

	slog.Info("docgraph: engine ready",
		"extraction_model", cfg.Extraction.Model,
		"answering_model", cfg.Answering.Model,
		"graph_backend", cfg.Graph.Backend)

	return &engine{
		cfg:       cfg,
		parsers:   parser.NewRegistry(),
		builder:   builder,
		merger:    graph.NewMerger(s),
		responder: rag.NewResponder(answering, rag.WithMaxContextChars(cfg.MaxContextChars)),
		store:     s,
	}, nil
}

func newModel(cfg LLMConfig, shared Config) (*llm.Model, error) {
	p, err := llm.NewProvider(llm.Config{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}
	return llm.NewModel(p, llm.ModelConfig{
		Name:              cfg.Model,
		Temperature:       cfg.Temperature,
		RequestsPerSecond: shared.RequestsPerSecond,
	}), nil
}

// SubmitDocument parses data according to filename's extension, chunks the
// text and extracts triplets from every chunk.
func (e *engine) SubmitDocument(ctx context.Context, filename string, data []byte) (*Submission, error) {
	if strings.TrimSpace(filename) == "" || len(data) == 0 {
		return nil, fmt.Errorf("%w: no document provided", ErrMissingInput)
	}
	if limit := e.cfg.MaxDocumentBytes; limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrDocumentTooLarge, len(data), limit)
	}

	start := time.Now()
	text, err := e.DocumentText(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	sub := &Submission{
		Filename:     filename,
		Format:       parser.FormatOf(filename),
		Triplets:     []graph.Triplet{},
		DocumentText: text,
	}
	if strings.TrimSpace(text) == "" {
		slog.Warn("docgraph: document has no extractable text", "filename", filename)
		return sub, nil
	}

	res, err := e.builder.Build(ctx, text)
	if err != nil {
		if errors.Is(err, graph.ErrAllChunksFailed) {
			return nil, fmt.Errorf("%w: %w", ErrLLMRequestFailed, err)
		}
		return nil, err
	}

	sub.Triplets = res.Triplets
	sub.ChunkCount = res.ChunkCount
	sub.FailedChunks = res.FailedChunks

	slog.Info("docgraph: document processed",
		"filename", filename,
		"chars", len(text),
		"chunks", res.ChunkCount,
		"failed_chunks", res.FailedChunks,
		"triplets", len(res.Triplets),
		"elapsed", time.Since(start).Round(time.Millisecond))

	return sub, nil
}

// DocumentText parses data according to filename's extension.
func (e *engine) DocumentText(ctx context.Context, filename string, data []byte) (string, error) {
	if strings.TrimSpace(filename) == "" || len(data) == 0 {
		return "", fmt.Errorf("%w: no document provided", ErrMissingInput)
	}
	text, err := e.parsers.Text(ctx, filename, data)
	if err != nil {
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s: %v", ErrParsingFailed, filename, err)
	}
	return text, nil
}

// CommitGraph merges triplets into the store. On partial failure the result
// is returned alongside an error wrapping ErrGraphWrite.
func (e *engine) CommitGraph(ctx context.Context, triplets []graph.Triplet) (*CommitResult, error) {
	if len(triplets) == 0 {
		return nil, fmt.Errorf("%w: no triplets to commit", ErrMissingInput)
	}

	n, err := e.merger.MergeAll(ctx, triplets)
	res := &CommitResult{InsertedCount: n}
	if err != nil {
		var me *graph.MergeError
		if errors.As(err, &me) {
			res.Failed = me.Failed
			return res, fmt.Errorf("%w: %w", ErrGraphWrite, err)
		}
		return res, err
	}

	slog.Info("docgraph: graph committed", "triplets", n)
	return res, nil
}

// Ask answers question from documentText. An empty document yields the
// upload prompt rather than an error.
func (e *engine) Ask(ctx context.Context, question, documentText string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: no question provided", ErrMissingInput)
	}

	text, err := e.responder.Respond(ctx, question, documentText)
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrContextTooLarge):
			return nil, fmt.Errorf("%w: %w", ErrDocumentTooLarge, err)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, fmt.Errorf("%w: %w", ErrLLMRequestFailed, err)
		}
	}
	return &Answer{Text: text}, nil
}

func (e *engine) ClearGraph(ctx context.Context) error {
	if err := e.store.Clear(ctx); err != nil {
		return fmt.Errorf("%w: clearing graph: %w", ErrGraphWrite, err)
	}
	slog.Info("docgraph: graph cleared")
	return nil
}

func (e *engine) GraphStats(ctx context.Context) (store.Stats, error) {
	return e.store.Stats(ctx)
}

func (e *engine) ExportGraph(ctx context.Context) (*store.Snapshot, error) {
	return e.store.Snapshot(ctx)
}

// Close shuts down the engine.
func (e *engine) Close() error {
	return e.store.Close()
}
