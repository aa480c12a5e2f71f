package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/docgraph/chunker"
)

// ErrAllChunksFailed is returned by Build when every chunk's backend call
// failed, which usually means the backend is unreachable or misconfigured.
var ErrAllChunksFailed = errors.New("graph: all chunks failed")

// defaultConcurrency is the default worker count for parallel extraction.
const defaultConcurrency = 4

// defaultChunkTimeout caps how long a single chunk extraction can take.
const defaultChunkTimeout = 90 * time.Second

// BuilderConfig tunes the extraction pipeline.
type BuilderConfig struct {
	Concurrency  int
	ChunkTimeout time.Duration
}

// BuildResult is the outcome of extracting triplets from one document.
type BuildResult struct {
	Triplets     []Triplet
	ChunkCount   int // chunks produced by the chunker
	FailedChunks int // chunks whose backend call failed
}

// Builder chunks a document and extracts triplets from every chunk.
type Builder struct {
	chunker      *chunker.Chunker
	extractor    *Extractor
	concurrency  int
	chunkTimeout time.Duration
}

// NewBuilder creates a builder. Zero config values take defaults.
func NewBuilder(c *chunker.Chunker, e *Extractor, cfg BuilderConfig) *Builder {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = defaultChunkTimeout
	}
	return &Builder{
		chunker:      c,
		extractor:    e,
		concurrency:  cfg.Concurrency,
		chunkTimeout: cfg.ChunkTimeout,
	}
}

// Build splits text into chunks and extracts triplets from each.
func (b *Builder) Build(ctx context.Context, text string) (*BuildResult, error) {
	return b.BuildChunks(ctx, b.chunker.Chunk(text))
}

// BuildChunks extracts triplets from chunks concurrently and returns them
// in chunk order. A chunk whose backend call fails contributes nothing;
// the build fails only when every non-blank chunk failed.
func (b *Builder) BuildChunks(ctx context.Context, chunks []string) (*BuildResult, error) {
	res := &BuildResult{Triplets: []Triplet{}, ChunkCount: len(chunks)}

	eligible := 0
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			eligible++
		}
	}
	if eligible == 0 {
		return res, nil
	}

	slog.Info("graph: extracting triplets", "chunks", len(chunks), "eligible", eligible,
		"concurrency", b.concurrency)

	var (
		perChunk   = make([][]Triplet, len(chunks))
		mu         sync.Mutex
		failed     int
		completed  int
		firstErr   error
		buildStart = time.Now()
	)

	var g errgroup.Group
	g.SetLimit(b.concurrency)

	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			slog.Debug("graph: skipping blank chunk", "chunk", i)
			continue
		}
		i, chunk := i, chunk
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			chunkCtx, cancel := context.WithTimeout(ctx, b.chunkTimeout)
			defer cancel()

			chunkStart := time.Now()
			triplets, err := b.extractor.Extract(chunkCtx, chunk)

			mu.Lock()
			defer mu.Unlock()
			completed++
			if err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				slog.Warn("graph: chunk failed",
					"chunk", i, "error", err,
					"elapsed", time.Since(chunkStart).Round(time.Millisecond))
				return nil
			}
			perChunk[i] = triplets
			slog.Debug("graph: chunk processed",
				"progress", fmt.Sprintf("%d/%d", completed, eligible),
				"chunk", i,
				"triplets", len(triplets),
				"elapsed", time.Since(chunkStart).Round(time.Millisecond),
				"total_elapsed", time.Since(buildStart).Round(time.Millisecond))
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.FailedChunks = failed
	if failed == eligible {
		return nil, fmt.Errorf("%w: %d of %d; first error: %w", ErrAllChunksFailed, failed, eligible, firstErr)
	}
	if failed > 0 {
		slog.Warn("graph: extraction completed with failures",
			"succeeded", eligible-failed, "failed", failed, "total", eligible)
	}

	res.Triplets = Aggregate(perChunk)
	slog.Info("graph: extraction done", "triplets", len(res.Triplets),
		"elapsed", time.Since(buildStart).Round(time.Millisecond))
	return res, nil
}
