package store

import (
	"context"
	"sync"
)

// Memory is an in-process graph backend. It is used by tests and by
// one-shot CLI runs that do not need persistence.
type Memory struct {
	mu    sync.Mutex
	nodes map[string]struct{}
	edges map[Edge]struct{}
}

// NewMemory returns an empty in-memory graph.
func NewMemory() *Memory {
	return &Memory{
		nodes: make(map[string]struct{}),
		edges: make(map[Edge]struct{}),
	}
}

func (m *Memory) MergeTriplet(ctx context.Context, subject, predicate, object string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[subject] = struct{}{}
	m.nodes[object] = struct{}{}
	m.edges[Edge{Source: subject, Type: predicate, Target: object}] = struct{}{}
	return nil
}

func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Nodes: int64(len(m.nodes)), Edges: int64(len(m.edges))}, nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = make(map[string]struct{})
	m.edges = make(map[Edge]struct{})
	return nil
}

func (m *Memory) Snapshot(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	snap := &Snapshot{
		Nodes: make([]Node, 0, len(m.nodes)),
		Edges: make([]Edge, 0, len(m.edges)),
	}
	for name := range m.nodes {
		snap.Nodes = append(snap.Nodes, Node{Name: name})
	}
	for e := range m.edges {
		snap.Edges = append(snap.Edges, e)
	}
	m.mu.Unlock()

	sortSnapshot(snap)
	return snap, nil
}

func (m *Memory) Close() error { return nil }
