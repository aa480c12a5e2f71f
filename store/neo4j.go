package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jConfig holds connection settings for a Neo4j server.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string // empty selects the server default
	// ConnectTimeout bounds driver socket connects and the initial
	// connectivity check. Zero means 10s.
	ConnectTimeout time.Duration
}

// Neo4j stores entities as (:Entity {name}) nodes joined by
// [:RELATION {type}] relationships.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4j connects to Neo4j, verifies connectivity and ensures the entity
// name constraint exists.
func NewNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4j, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	s := &Neo4j{driver: driver, database: cfg.Database}
	s.ensureSchema(ctx)
	return s, nil
}

// ensureSchema is best-effort: older servers or restricted users may
// refuse constraint DDL, and MERGE stays correct without it.
func (s *Neo4j) ensureSchema(ctx context.Context) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	q := `CREATE CONSTRAINT entity_name_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.name IS UNIQUE`
	res, err := session.Run(ctx, q, nil)
	if err == nil {
		_, err = res.Consume(ctx)
	}
	if err != nil {
		slog.Warn("store: neo4j schema init failed (continuing)", "error", err)
	}
}

func (s *Neo4j) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

const mergeTripletCypher = `
MERGE (s:Entity {name: $subject})
MERGE (o:Entity {name: $object})
MERGE (s)-[:RELATION {type: $predicate}]->(o)
`

// MergeTriplet runs the three MERGE clauses in one managed write
// transaction, which the driver retries on transient errors.
func (s *Neo4j) MergeTriplet(ctx context.Context, subject, predicate, object string) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, mergeTripletCypher, map[string]any{
			"subject":   subject,
			"predicate": predicate,
			"object":    object,
		})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("neo4j merge: %w", err)
	}
	return nil
}

func (s *Neo4j) Stats(ctx context.Context) (Stats, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			OPTIONAL MATCH (n:Entity)
			WITH count(n) AS nodes
			OPTIONAL MATCH (:Entity)-[r:RELATION]->(:Entity)
			RETURN nodes, count(r) AS edges
		`, nil)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		nodes, _ := rec.Get("nodes")
		edges, _ := rec.Get("edges")
		n, _ := nodes.(int64)
		e, _ := edges.(int64)
		return Stats{Nodes: n, Edges: e}, nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("neo4j stats: %w", err)
	}
	return out.(Stats), nil
}

// Clear detaches and deletes every Entity node. Other labels in the same
// database are left alone.
func (s *Neo4j) Clear(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:Entity) DETACH DELETE n`, nil)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("neo4j clear: %w", err)
	}
	return nil
}

func (s *Neo4j) Snapshot(ctx context.Context) (*Snapshot, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		snap := &Snapshot{Nodes: []Node{}, Edges: []Edge{}}

		res, err := tx.Run(ctx, `MATCH (n:Entity) RETURN n.name AS name`, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			name, _ := rec.Get("name")
			if str, ok := name.(string); ok {
				snap.Nodes = append(snap.Nodes, Node{Name: str})
			}
		}

		res, err = tx.Run(ctx, `
			MATCH (s:Entity)-[r:RELATION]->(o:Entity)
			RETURN s.name AS source, r.type AS type, o.name AS target
		`, nil)
		if err != nil {
			return nil, err
		}
		records, err = res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			src, _ := rec.Get("source")
			typ, _ := rec.Get("type")
			dst, _ := rec.Get("target")
			e := Edge{}
			e.Source, _ = src.(string)
			e.Type, _ = typ.(string)
			e.Target, _ = dst.(string)
			snap.Edges = append(snap.Edges, e)
		}
		return snap, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j snapshot: %w", err)
	}

	snap := out.(*Snapshot)
	sortSnapshot(snap)
	return snap, nil
}

// Close releases the driver's connection pool.
func (s *Neo4j) Close() error {
	return s.driver.Close(context.Background())
}
