package docgraph

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/brunobiangulo/docgraph/graph"
	"github.com/brunobiangulo/docgraph/rag"
	"github.com/brunobiangulo/docgraph/store"
)

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// countingCompleter returns a fixed reply and counts calls.
type countingCompleter struct {
	reply string
	err   error
	calls atomic.Int32
	last  atomic.Value
}

func (c *countingCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.calls.Add(1)
	c.last.Store(prompt)
	return c.reply, c.err
}

// failingStore rejects triplets whose subject is "Bad".
type failingStore struct {
	*store.Memory
}

func (s failingStore) MergeTriplet(ctx context.Context, subject, predicate, object string) error {
	if subject == "Bad" {
		return errors.New("constraint violation")
	}
	return s.Memory.MergeTriplet(ctx, subject, predicate, object)
}

const foundedReply = `[{"subject":"Alice","predicate":"FOUNDED","object":"Acme"}]`

func newTestEngine(t *testing.T, cfg Config, opts ...Option) Engine {
	t.Helper()
	opts = append([]Option{
		WithExtractionModel(&countingCompleter{reply: foundedReply}),
		WithAnsweringModel(&countingCompleter{reply: "Alice."}),
		WithStore(store.NewMemory()),
	}, opts...)
	e, err := New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestSubmitCommitAsk(t *testing.T) {
	ctx := context.Background()
	answering := &countingCompleter{reply: "Alice founded Acme."}
	e := newTestEngine(t, DefaultConfig(), WithAnsweringModel(answering))

	doc := "Alice founded Acme."
	sub, err := e.SubmitDocument(ctx, "notes.txt", []byte(doc))
	if err != nil {
		t.Fatalf("SubmitDocument: %v", err)
	}
	if sub.DocumentText != doc {
		t.Errorf("DocumentText = %q, want %q", sub.DocumentText, doc)
	}
	if sub.Format != "txt" || sub.ChunkCount != 1 || sub.FailedChunks != 0 {
		t.Errorf("submission = %+v", sub)
	}
	want := graph.Triplet{Subject: "Alice", Predicate: "FOUNDED", Object: "Acme"}
	if len(sub.Triplets) != 1 || sub.Triplets[0] != want {
		t.Fatalf("Triplets = %+v, want [%+v]", sub.Triplets, want)
	}

	// Submitting does not touch the graph.
	stats, err := e.GraphStats(ctx)
	if err != nil {
		t.Fatalf("GraphStats: %v", err)
	}
	if stats.Nodes != 0 || stats.Edges != 0 {
		t.Errorf("graph modified before commit: %+v", stats)
	}

	for i := 0; i < 2; i++ {
		res, err := e.CommitGraph(ctx, sub.Triplets)
		if err != nil {
			t.Fatalf("CommitGraph #%d: %v", i+1, err)
		}
		if res.InsertedCount != 1 {
			t.Errorf("InsertedCount = %d, want 1", res.InsertedCount)
		}
	}
	stats, _ = e.GraphStats(ctx)
	if stats.Nodes != 2 || stats.Edges != 1 {
		t.Errorf("after two commits stats = %+v, want 2 nodes 1 edge", stats)
	}

	ans, err := e.Ask(ctx, "Who founded Acme?", sub.DocumentText)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "Alice founded Acme." {
		t.Errorf("answer = %q", ans.Text)
	}
	prompt, _ := answering.last.Load().(string)
	if !strings.Contains(prompt, doc) || !strings.Contains(prompt, "Who founded Acme?") {
		t.Errorf("answering prompt missing document or question:\n%s", prompt)
	}
}

func TestAskWithoutDocument(t *testing.T) {
	answering := &countingCompleter{reply: "should not be used"}
	e := newTestEngine(t, DefaultConfig(), WithAnsweringModel(answering))

	ans, err := e.Ask(context.Background(), "Who founded Acme?", "")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != rag.NoDocumentReply {
		t.Errorf("answer = %q, want %q", ans.Text, rag.NoDocumentReply)
	}
	if n := answering.calls.Load(); n != 0 {
		t.Errorf("backend called %d times, want 0", n)
	}
}

func TestMissingInput(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, DefaultConfig())

	if _, err := e.SubmitDocument(ctx, "notes.txt", nil); !errors.Is(err, ErrMissingInput) {
		t.Errorf("SubmitDocument(nil) error = %v, want ErrMissingInput", err)
	}
	if _, err := e.SubmitDocument(ctx, "", []byte("x")); !errors.Is(err, ErrMissingInput) {
		t.Errorf("SubmitDocument(no name) error = %v, want ErrMissingInput", err)
	}
	if _, err := e.CommitGraph(ctx, nil); !errors.Is(err, ErrMissingInput) {
		t.Errorf("CommitGraph(nil) error = %v, want ErrMissingInput", err)
	}
	if _, err := e.Ask(ctx, "   ", "doc"); !errors.Is(err, ErrMissingInput) {
		t.Errorf("Ask(blank) error = %v, want ErrMissingInput", err)
	}
}

func TestSubmitDocumentErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported format", func(t *testing.T) {
		e := newTestEngine(t, DefaultConfig())
		_, err := e.SubmitDocument(ctx, "photo.png", []byte{0x89, 'P', 'N', 'G'})
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("error = %v, want ErrUnsupportedFormat", err)
		}
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		e := newTestEngine(t, DefaultConfig())
		_, err := e.SubmitDocument(ctx, "broken.pdf", []byte("this is not a pdf"))
		if !errors.Is(err, ErrParsingFailed) {
			t.Errorf("error = %v, want ErrParsingFailed", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxDocumentBytes = 4
		e := newTestEngine(t, cfg)
		_, err := e.SubmitDocument(ctx, "notes.txt", []byte("Alice founded Acme."))
		if !errors.Is(err, ErrDocumentTooLarge) {
			t.Errorf("error = %v, want ErrDocumentTooLarge", err)
		}
	})

	t.Run("backend down", func(t *testing.T) {
		down := &countingCompleter{err: errors.New("connection refused")}
		e := newTestEngine(t, DefaultConfig(), WithExtractionModel(down))
		_, err := e.SubmitDocument(ctx, "notes.txt", []byte("Alice founded Acme."))
		if !errors.Is(err, ErrLLMRequestFailed) {
			t.Errorf("error = %v, want ErrLLMRequestFailed", err)
		}
		if !errors.Is(err, graph.ErrAllChunksFailed) {
			t.Errorf("error = %v, want wrapped ErrAllChunksFailed", err)
		}
	})
}

func TestSubmitBlankDocument(t *testing.T) {
	extraction := &countingCompleter{reply: foundedReply}
	e := newTestEngine(t, DefaultConfig(), WithExtractionModel(extraction))

	sub, err := e.SubmitDocument(context.Background(), "blank.txt", []byte(" \n\t\n"))
	if err != nil {
		t.Fatalf("SubmitDocument: %v", err)
	}
	if sub.Triplets == nil || len(sub.Triplets) != 0 {
		t.Errorf("Triplets = %#v, want empty non-nil slice", sub.Triplets)
	}
	if n := extraction.calls.Load(); n != 0 {
		t.Errorf("extraction called %d times for blank text", n)
	}
}

func TestSubmitMultipleChunks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 40
	cfg.ChunkOverlap = 10

	var calls atomic.Int32
	extraction := completerFunc(func(_ context.Context, prompt string) (string, error) {
		if calls.Add(1) == 1 {
			return "no json here", nil
		}
		return foundedReply, nil
	})
	e := newTestEngine(t, cfg, WithExtractionModel(extraction))

	text := strings.Repeat("Alice founded Acme in Paris. ", 6)
	sub, err := e.SubmitDocument(context.Background(), "notes.md", []byte(text))
	if err != nil {
		t.Fatalf("SubmitDocument: %v", err)
	}
	if sub.ChunkCount < 2 {
		t.Fatalf("ChunkCount = %d, want several", sub.ChunkCount)
	}
	if int(calls.Load()) != sub.ChunkCount {
		t.Errorf("extraction calls = %d, want one per chunk (%d)", calls.Load(), sub.ChunkCount)
	}
	// One unparseable response contributes nothing; duplicates are kept.
	if len(sub.Triplets) != sub.ChunkCount-1 {
		t.Errorf("got %d triplets, want %d", len(sub.Triplets), sub.ChunkCount-1)
	}
	if sub.FailedChunks != 0 {
		t.Errorf("FailedChunks = %d, want 0", sub.FailedChunks)
	}
}

func TestCommitPartialFailure(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, DefaultConfig(), WithStore(failingStore{store.NewMemory()}))

	res, err := e.CommitGraph(ctx, []graph.Triplet{
		{Subject: "Alice", Predicate: "FOUNDED", Object: "Acme"},
		{Subject: "Bad", Predicate: "BREAKS", Object: "Things"},
		{Subject: "Acme", Predicate: "LOCATED_IN", Object: "Paris"},
	})
	if !errors.Is(err, ErrGraphWrite) {
		t.Fatalf("error = %v, want ErrGraphWrite", err)
	}
	if !errors.Is(err, graph.ErrMergeFailed) {
		t.Errorf("error = %v, want wrapped ErrMergeFailed", err)
	}
	if res == nil || res.InsertedCount != 2 {
		t.Fatalf("result = %+v, want InsertedCount 2", res)
	}
	if len(res.Failed) != 1 || res.Failed[0].Index != 1 {
		t.Errorf("Failed = %+v, want triplet 1", res.Failed)
	}

	stats, _ := e.GraphStats(ctx)
	if stats.Nodes != 3 || stats.Edges != 2 {
		t.Errorf("stats = %+v, want 3 nodes 2 edges", stats)
	}
}

func TestCommitNormalizesBlankFields(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, DefaultConfig())

	if _, err := e.CommitGraph(ctx, []graph.Triplet{{Subject: "  ", Predicate: "", Object: "Acme"}}); err != nil {
		t.Fatalf("CommitGraph: %v", err)
	}
	snap, err := e.ExportGraph(ctx)
	if err != nil {
		t.Fatalf("ExportGraph: %v", err)
	}
	if len(snap.Edges) != 1 {
		t.Fatalf("edges = %+v", snap.Edges)
	}
	want := store.Edge{Source: graph.UnknownEntity, Type: graph.UnknownRelation, Target: "Acme"}
	if snap.Edges[0] != want {
		t.Errorf("edge = %+v, want %+v", snap.Edges[0], want)
	}
}

func TestAskErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("backend failure", func(t *testing.T) {
		down := &countingCompleter{err: errors.New("503 service unavailable")}
		e := newTestEngine(t, DefaultConfig(), WithAnsweringModel(down))
		_, err := e.Ask(ctx, "Who?", "Alice founded Acme.")
		if !errors.Is(err, ErrLLMRequestFailed) {
			t.Errorf("error = %v, want ErrLLMRequestFailed", err)
		}
	})

	t.Run("context too large", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxContextChars = 10
		answering := &countingCompleter{reply: "x"}
		e := newTestEngine(t, cfg, WithAnsweringModel(answering))
		_, err := e.Ask(ctx, "Who?", "Alice founded Acme.")
		if !errors.Is(err, ErrDocumentTooLarge) {
			t.Errorf("error = %v, want ErrDocumentTooLarge", err)
		}
		if answering.calls.Load() != 0 {
			t.Error("backend should not be called for an oversized document")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		blocking := completerFunc(func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		e := newTestEngine(t, DefaultConfig(), WithAnsweringModel(blocking))
		_, err := e.Ask(cctx, "Who?", "Alice founded Acme.")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestClearAndExport(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, DefaultConfig())

	if _, err := e.CommitGraph(ctx, []graph.Triplet{
		{Subject: "Bob", Predicate: "WORKS_AT", Object: "Acme"},
		{Subject: "Alice", Predicate: "FOUNDED", Object: "Acme"},
	}); err != nil {
		t.Fatalf("CommitGraph: %v", err)
	}

	snap, err := e.ExportGraph(ctx)
	if err != nil {
		t.Fatalf("ExportGraph: %v", err)
	}
	names := make([]string, len(snap.Nodes))
	for i, n := range snap.Nodes {
		names[i] = n.Name
	}
	if strings.Join(names, ",") != "Acme,Alice,Bob" {
		t.Errorf("nodes = %v, want sorted Acme,Alice,Bob", names)
	}

	if err := e.ClearGraph(ctx); err != nil {
		t.Fatalf("ClearGraph: %v", err)
	}
	stats, _ := e.GraphStats(ctx)
	if stats != (store.Stats{}) {
		t.Errorf("stats after clear = %+v", stats)
	}
}

func TestNewRejectsBadProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Extraction.Provider = "carrier-pigeon"
	_, err := New(context.Background(), cfg, WithStore(store.NewMemory()))
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestDocumentText(t *testing.T) {
	extraction := &countingCompleter{reply: foundedReply}
	e := newTestEngine(t, DefaultConfig(), WithExtractionModel(extraction))

	text, err := e.DocumentText(context.Background(), "notes.md", []byte("# Title\nAlice founded Acme."))
	if err != nil {
		t.Fatalf("DocumentText: %v", err)
	}
	if !strings.Contains(text, "Alice founded Acme.") {
		t.Errorf("text = %q", text)
	}
	if extraction.calls.Load() != 0 {
		t.Error("DocumentText should not call the extraction backend")
	}

	if _, err := e.DocumentText(context.Background(), "slides.key", []byte("x")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}
