package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brunobiangulo/docgraph/store"
)

// ErrMergeFailed is matched by every *MergeError.
var ErrMergeFailed = errors.New("graph: merge failed")

// Store is the graph persistence the merger and engine depend on.
type Store interface {
	// MergeTriplet creates the subject and object entities and the typed
	// relation between them if absent. All-or-nothing per call.
	MergeTriplet(ctx context.Context, subject, predicate, object string) error
	Stats(ctx context.Context) (store.Stats, error)
	Clear(ctx context.Context) error
	Snapshot(ctx context.Context) (*store.Snapshot, error)
	Close() error
}

// TripletError records one triplet that could not be merged.
type TripletError struct {
	Index   int     `json:"index"`
	Triplet Triplet `json:"triplet"`
	Err     error   `json:"-"`
}

// MergeError reports the triplets of a batch that failed. The rest of the
// batch was applied.
type MergeError struct {
	Total  int
	Failed []TripletError
}

func (e *MergeError) Error() string {
	if len(e.Failed) == 0 {
		return ErrMergeFailed.Error()
	}
	return fmt.Sprintf("graph: %d of %d triplets failed to merge; first (index %d): %v",
		len(e.Failed), e.Total, e.Failed[0].Index, e.Failed[0].Err)
}

func (e *MergeError) Unwrap() error { return ErrMergeFailed }

// Triplets returns the failed triplets so a caller can retry just those.
func (e *MergeError) Triplets() []Triplet {
	out := make([]Triplet, len(e.Failed))
	for i, f := range e.Failed {
		out[i] = f.Triplet
	}
	return out
}

// Merger writes triplets into a graph store idempotently.
type Merger struct {
	store Store
}

// NewMerger creates a merger over s.
func NewMerger(s Store) *Merger {
	return &Merger{store: s}
}

// Merge applies the fallback labels and merges one triplet.
func (m *Merger) Merge(ctx context.Context, t Triplet) error {
	n := t.Normalized()
	if err := m.store.MergeTriplet(ctx, n.Subject, n.Predicate, n.Object); err != nil {
		return fmt.Errorf("merging (%s)-[%s]->(%s): %w", n.Subject, n.Predicate, n.Object, err)
	}
	return nil
}

// MergeAll merges triplets in order and returns how many were applied.
// A failing triplet does not stop the batch; failures are returned together
// as a *MergeError. Cancellation stops the batch immediately.
func (m *Merger) MergeAll(ctx context.Context, triplets []Triplet) (int, error) {
	var failed []TripletError
	applied := 0

	for i, t := range triplets {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if err := m.Merge(ctx, t); err != nil {
			if ctx.Err() != nil {
				return applied, ctx.Err()
			}
			slog.Warn("graph: triplet merge failed", "index", i, "error", err)
			failed = append(failed, TripletError{Index: i, Triplet: t, Err: err})
			continue
		}
		applied++
	}

	if len(failed) > 0 {
		return applied, &MergeError{Total: len(triplets), Failed: failed}
	}
	return applied, nil
}
