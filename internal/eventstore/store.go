package eventstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/themekit/internal/ferrors"
)

// BuildRecord is one completed build as stored in history.
type BuildRecord struct {
	ID         string        `json:"id"`
	Domain     string        `json:"domain"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Store persists the build history in SQLite.
// Use ":memory:" as the path for an ephemeral session-scoped store.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, ferrors.WrapError(err, ferrors.CategoryEventStore, "create history directory").
					WithContext("dir", dir).Build()
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryEventStore, "open history database").
			WithContext("path", path).Build()
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryEventStore, "initialize history schema").Build()
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_finished_at ON builds(finished_at);
	CREATE INDEX IF NOT EXISTS idx_builds_domain ON builds(domain);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records one completed build.
func (s *Store) Append(ctx context.Context, rec BuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO builds (build_id, domain, status, error, duration_ms, finished_at) VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Domain, rec.Status, rec.Error, rec.Duration.Milliseconds(), rec.FinishedAt.Unix(),
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryEventStore, "insert build record").Build()
	}
	return nil
}

// Recent returns the most recent builds, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT build_id, domain, status, error, duration_ms, finished_at FROM builds ORDER BY seq DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryEventStore, "query build records").Build()
	}
	defer rows.Close()

	var records []BuildRecord
	for rows.Next() {
		var rec BuildRecord
		var errText sql.NullString
		var durationMS, finishedUnix int64
		if err := rows.Scan(&rec.ID, &rec.Domain, &rec.Status, &errText, &durationMS, &finishedUnix); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryEventStore, "scan build record").Build()
		}
		rec.Error = errText.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.FinishedAt = time.Unix(finishedUnix, 0)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryEventStore, "iterate build records").Build()
	}
	return records, nil
}

// Prune deletes records older than the cutoff and returns the number removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM builds WHERE finished_at < ?", olderThan.Unix())
	if err != nil {
		return 0, ferrors.WrapError(err, ferrors.CategoryEventStore, "prune build records").Build()
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ferrors.WrapError(err, ferrors.CategoryEventStore, "count pruned records").Build()
	}
	return n, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
