package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a file-backed graph store for single-node deployments.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a graph database at dbPath and applies
// pending migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	// _txlock=immediate takes the write lock at BEGIN so concurrent merges
	// queue on busy_timeout instead of failing on lock upgrade.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLite{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// MergeTriplet upserts both entities and the relation in one transaction.
func (s *SQLite) MergeTriplet(ctx context.Context, subject, predicate, object string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		srcID, err := upsertEntity(ctx, tx, subject)
		if err != nil {
			return fmt.Errorf("merging entity %q: %w", subject, err)
		}
		dstID, err := upsertEntity(ctx, tx, object)
		if err != nil {
			return fmt.Errorf("merging entity %q: %w", object, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO relations (source_id, target_id, type)
			VALUES (?, ?, ?)
			ON CONFLICT(source_id, type, target_id) DO NOTHING
		`, srcID, dstID, predicate)
		if err != nil {
			return fmt.Errorf("merging relation %q: %w", predicate, err)
		}
		return nil
	})
}

func upsertEntity(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO entities (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name); err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM entities WHERE name = ?", name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM entities), (SELECT COUNT(*) FROM relations)
	`).Scan(&st.Nodes, &st.Edges)
	if err != nil {
		return Stats{}, fmt.Errorf("counting graph: %w", err)
	}
	return st, nil
}

// Clear removes every entity and relation.
func (s *SQLite) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM relations"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM entities")
		return err
	})
}

func (s *SQLite) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Nodes: []Node{}, Edges: []Edge{}}

	rows, err := s.db.QueryContext(ctx, "SELECT name FROM entities ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.Name); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Nodes = append(snap.Nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT src.name, r.type, dst.name
		FROM relations r
		JOIN entities src ON src.id = r.source_id
		JOIN entities dst ON dst.id = r.target_id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing relations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Source, &e.Type, &e.Target); err != nil {
			return nil, err
		}
		snap.Edges = append(snap.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortSnapshot(snap)
	return snap, nil
}

func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
