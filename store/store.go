package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownBackend is returned by Open for an unrecognised backend name.
var ErrUnknownBackend = errors.New("store: unknown backend")

// Node is an entity vertex, keyed by name.
type Node struct {
	Name string `json:"name"`
}

// Edge is a directed relation between two entities. Type is the relation
// label; an edge is unique per (Source, Type, Target).
type Edge struct {
	Source string `json:"source"`
	Type   string `json:"type"`
	Target string `json:"target"`
}

// Stats holds graph cardinalities.
type Stats struct {
	Nodes int64 `json:"nodes"`
	Edges int64 `json:"edges"`
}

// Snapshot is a full copy of the graph, sorted for stable output.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Backend is implemented by every graph store in this package.
type Backend interface {
	// MergeTriplet ensures both entities and the relation between them
	// exist. It is atomic per call and idempotent.
	MergeTriplet(ctx context.Context, subject, predicate, object string) error
	Stats(ctx context.Context) (Stats, error)
	Clear(ctx context.Context) error
	Snapshot(ctx context.Context) (*Snapshot, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend  string `json:"backend" yaml:"backend"` // neo4j, sqlite, memory
	URI      string `json:"uri" yaml:"uri"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
	Path     string `json:"path" yaml:"path"` // sqlite file
}

// Open connects the configured backend.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "neo4j":
		return NewNeo4j(ctx, Neo4jConfig{
			URI:      cfg.URI,
			User:     cfg.User,
			Password: cfg.Password,
			Database: cfg.Database,
		})
	case "sqlite":
		return NewSQLite(cfg.Path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func sortSnapshot(s *Snapshot) {
	sort.Slice(s.Nodes, func(i, j int) bool { return s.Nodes[i].Name < s.Nodes[j].Name })
	sort.Slice(s.Edges, func(i, j int) bool {
		a, b := s.Edges[i], s.Edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Target < b.Target
	})
}
