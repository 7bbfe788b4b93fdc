package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/onestopradio/stationctl/internal/logging"
)

// trackingTable records which steps have been applied.
const trackingTable = "schema_migrations"

// State describes how far along the store is.
type State int

const (
	// StateUninitialized: no tracking metadata exists yet.
	StateUninitialized State = iota
	// StateTracked: tracking exists but no step has been applied.
	StateTracked
	// StateStale: some but not all steps have been applied.
	StateStale
	// StateUpToDate: every catalog step is applied.
	StateUpToDate
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateTracked:
		return "tracked"
	case StateStale:
		return "stale"
	case StateUpToDate:
		return "up-to-date"
	default:
		return "unknown"
	}
}

// StepError reports a failed migration step. It is fatal: remaining steps
// are not attempted.
type StepError struct {
	ID  int64
	Err error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("migration step %d failed: %v", e.ID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Applied describes one step executed (or stamped) by Upgrade.
type Applied struct {
	ID          int64
	Description string
	Stamped     bool // recorded as applied without executing (schema adoption)
	Duration    time.Duration
}

// Current reports the store's migration state without modifying it.
func (s *Store) Current(ctx context.Context) (State, error) {
	tracked, err := s.hasTrackingTable(ctx)
	if err != nil {
		return StateUninitialized, err
	}
	if !tracked {
		return StateUninitialized, nil
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return StateUninitialized, err
	}
	switch {
	case len(applied) == 0:
		return StateTracked, nil
	case s.allApplied(applied):
		return StateUpToDate, nil
	default:
		return StateStale, nil
	}
}

// Upgrade brings the store up to date. An absent tracking table is created
// first; if the store already carries schema tables, every catalog step is
// stamped as the baseline instead of being replayed. Unapplied steps then run
// in ascending ID order, each inside its own transaction. A failing step
// aborts the remainder and returns a *StepError alongside the steps that did
// complete. Calling Upgrade on an up-to-date store is a no-op.
func (s *Store) Upgrade(ctx context.Context) ([]Applied, error) {
	adopted, err := s.ensureTracking(ctx)
	if err != nil {
		return nil, err
	}
	if len(adopted) > 0 {
		return adopted, nil
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var out []Applied
	for _, step := range s.steps {
		if applied[step.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("upgrade cancelled: %w", err)
		}

		start := time.Now()
		if err := s.applyStep(ctx, step); err != nil {
			return out, &StepError{ID: step.ID, Err: err}
		}
		logging.Info("applied migration step", "id", step.ID, "description", step.Description)
		out = append(out, Applied{
			ID:          step.ID,
			Description: step.Description,
			Duration:    time.Since(start),
		})
	}
	return out, nil
}

// applyStep runs one step atomically: all statements plus the tracking row
// commit together or not at all.
func (s *Store) applyStep(ctx context.Context, step Step) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range step.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement failed: %w", err)
		}
	}
	if err := s.recordApplied(ctx, tx, step); err != nil {
		return err
	}
	return tx.Commit()
}

// ensureTracking creates the tracking table when absent. When the store
// already holds schema tables the whole catalog is stamped as applied:
// an existing schema is adopted, never replayed.
func (s *Store) ensureTracking(ctx context.Context) ([]Applied, error) {
	tracked, err := s.hasTrackingTable(ctx)
	if err != nil {
		return nil, err
	}
	if tracked {
		return nil, nil
	}

	tables, err := s.Tables(ctx)
	if err != nil {
		return nil, err
	}

	create := fmt.Sprintf(`CREATE TABLE %s (
		version BIGINT PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL
	)`, trackingTable)
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("failed to create tracking table: %w", err)
	}

	if len(tables) == 0 {
		return nil, nil
	}

	logging.Info("adopting existing schema without replay", "tables", len(tables))
	var stamped []Applied
	for _, step := range s.steps {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return stamped, fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := s.recordApplied(ctx, tx, step); err != nil {
			_ = tx.Rollback()
			return stamped, err
		}
		if err := tx.Commit(); err != nil {
			return stamped, err
		}
		stamped = append(stamped, Applied{ID: step.ID, Description: step.Description, Stamped: true})
	}
	return stamped, nil
}

func (s *Store) recordApplied(ctx context.Context, tx *sql.Tx, step Step) error {
	insert := s.rebind(fmt.Sprintf(
		"INSERT INTO %s (version, description, applied_at) VALUES (?, ?, ?)", trackingTable))
	if _, err := tx.ExecContext(ctx, insert, step.ID, step.Description, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record step %d: %w", step.ID, err)
	}
	return nil
}

// appliedVersions returns the set of step IDs already recorded.
func (s *Store) appliedVersions(ctx context.Context) (map[int64]bool, error) {
	query := fmt.Sprintf("SELECT version FROM %s ORDER BY version", trackingTable)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracking table: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (s *Store) allApplied(applied map[int64]bool) bool {
	for _, step := range s.steps {
		if !applied[step.ID] {
			return false
		}
	}
	return true
}

// hasTrackingTable reports whether migration metadata exists.
func (s *Store) hasTrackingTable(ctx context.Context) (bool, error) {
	tables, err := s.allTables(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range tables {
		if t == trackingTable {
			return true, nil
		}
	}
	return false, nil
}

// Tables lists the store's schema tables, excluding migration metadata.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	all, err := s.allTables(ctx)
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(all))
	for _, t := range all {
		if t != trackingTable {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

func (s *Store) allTables(ctx context.Context) ([]string, error) {
	var query string
	switch s.dialect {
	case DialectPostgres:
		query = "SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename"
	default:
		query = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}
