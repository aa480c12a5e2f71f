package store

import (
	"context"
	"testing"
)

func TestMemoryBackend(t *testing.T) {
	runBackendSuite(t, func(t *testing.T) Backend { return NewMemory() })
}

func TestMemoryMergeHonoursCancellation(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.MergeTriplet(ctx, "a", "b", "c"); err == nil {
		t.Fatal("expected error on cancelled context")
	}
	st, _ := m.Stats(context.Background())
	if st.Nodes != 0 {
		t.Errorf("cancelled merge wrote %d nodes", st.Nodes)
	}
}
