package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	// Store drivers. The orchestrator itself is dialect-agnostic beyond the
	// placeholder style and the introspection query.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder style and introspection queries.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	default:
		return "sqlite"
	}
}

// Store is a migration target: a database handle plus the ordered step
// catalog that should exist in it.
type Store struct {
	db      *sql.DB
	dialect Dialect
	steps   []Step
}

// Open connects to the store identified by rawURL. postgres:// and
// postgresql:// target a networked store via lib/pq; sqlite://path or a bare
// filesystem path target an embedded store.
func Open(rawURL string) (*Store, error) {
	var db *sql.DB
	var dialect Dialect
	var err error

	switch {
	case strings.HasPrefix(rawURL, "postgres://"), strings.HasPrefix(rawURL, "postgresql://"):
		dialect = DialectPostgres
		db, err = sql.Open("postgres", rawURL)
	case strings.HasPrefix(rawURL, "sqlite://"):
		dialect = DialectSQLite
		db, err = sql.Open("sqlite", strings.TrimPrefix(rawURL, "sqlite://"))
	default:
		dialect = DialectSQLite
		db, err = sql.Open("sqlite", rawURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open migration store: %w", err)
	}
	if dialect == DialectSQLite {
		// modernc's driver is not safe for concurrent writers on one file.
		db.SetMaxOpenConns(1)
	}
	return NewStore(db, dialect, Catalog()), nil
}

// NewStore wraps an existing database handle. Steps are kept in ascending
// ID order regardless of the order given.
func NewStore(db *sql.DB, dialect Dialect, steps []Step) *Store {
	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &Store{db: db, dialect: dialect, steps: sorted}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders for the postgres dialect.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
