package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName     = "sqlite"
	maxAttempts    = 5
	defaultProject = "default"
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open creates or opens the history database at path. busyTimeout bounds how
// long sqlite waits on a locked database before reporting busy.
func Open(ctx context.Context, path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}
	// busy_timeout + WAL reduce lock conflicts while watch mode records runs.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// SaveRun upserts run under project. Two runs with the same timestamp and
// snapshot hash collapse into one row.
func (s *Store) SaveRun(ctx context.Context, project string, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	project = projectKey(project)
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}
	if run.SchemaVersion == 0 {
		run.SchemaVersion = SchemaVersion
	}
	if run.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported run schema version %d", run.SchemaVersion)
	}

	query := `
INSERT INTO runs (
  project_key, schema_version, ts_utc, snapshot_hash, node_count, edge_count,
  error_count, warning_count, cycle_count, orphan_count, proposed_edge_count,
  intermediate_count, critical_path_length, critical_path_weight, max_depth
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(project_key, ts_utc, snapshot_hash) DO UPDATE SET
  schema_version=excluded.schema_version,
  node_count=excluded.node_count,
  edge_count=excluded.edge_count,
  error_count=excluded.error_count,
  warning_count=excluded.warning_count,
  cycle_count=excluded.cycle_count,
  orphan_count=excluded.orphan_count,
  proposed_edge_count=excluded.proposed_edge_count,
  intermediate_count=excluded.intermediate_count,
  critical_path_length=excluded.critical_path_length,
  critical_path_weight=excluded.critical_path_weight,
  max_depth=excluded.max_depth
`
	return s.withRetry(ctx, "save run", func() error {
		_, err := s.db.ExecContext(ctx,
			query,
			project,
			run.SchemaVersion,
			run.Timestamp.UTC().Format(time.RFC3339Nano),
			run.SnapshotHash,
			run.NodeCount,
			run.EdgeCount,
			run.ErrorCount,
			run.WarningCount,
			run.CycleCount,
			run.OrphanCount,
			run.ProposedEdgeCount,
			run.IntermediateCount,
			run.CriticalPathLength,
			run.CriticalPathWeight,
			run.MaxDepth,
		)
		return err
	})
}

// LoadRuns returns the runs of project at or after since, oldest first. A zero
// since loads everything.
func (s *Store) LoadRuns(ctx context.Context, project string, since time.Time) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT
  schema_version, ts_utc, snapshot_hash, node_count, edge_count, error_count,
  warning_count, cycle_count, orphan_count, proposed_edge_count, intermediate_count,
  critical_path_length, critical_path_weight, max_depth
FROM runs
WHERE project_key = ?`
	args := []any{projectKey(project)}
	if !since.IsZero() {
		query += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY ts_utc ASC, snapshot_hash ASC"

	var rows *sql.Rows
	err := s.withRetry(ctx, "load runs", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			tsRaw string
			run   Run
		)
		if err := rows.Scan(
			&run.SchemaVersion,
			&tsRaw,
			&run.SnapshotHash,
			&run.NodeCount,
			&run.EdgeCount,
			&run.ErrorCount,
			&run.WarningCount,
			&run.CycleCount,
			&run.OrphanCount,
			&run.ProposedEdgeCount,
			&run.IntermediateCount,
			&run.CriticalPathLength,
			&run.CriticalPathWeight,
			&run.MaxDepth,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
		}
		run.Timestamp = ts.UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(time.Duration(attempt*25) * time.Millisecond):
		}
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func projectKey(project string) string {
	project = strings.TrimSpace(project)
	if project == "" {
		return defaultProject
	}
	return project
}
