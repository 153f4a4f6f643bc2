// Package trackcache persists track conversion inputs in SQLite so that
// unchanged tracks are reused across builds.
package trackcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pelitrack/go-pelitrack"
	"github.com/pelitrack/go-pelitrack/internal/fileutil"
)

// Dir and FileName locate the cache below the output directory.
const (
	Dir      = ".pelitrack"
	FileName = "cache.db"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS tracks (
	slug          TEXT PRIMARY KEY,
	source_hash   TEXT NOT NULL,
	settings_hash TEXT NOT NULL,
	location      TEXT NOT NULL,
	updated_at    TEXT NOT NULL
)`

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store is a pelitrack.TrackCache backed by SQLite. It is safe for
// concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

var _ pelitrack.TrackCache = (*Store)(nil)

// Path returns the cache database path for an output directory.
func Path(outputDir string) string {
	return filepath.Join(outputDir, Dir, FileName)
}

// Open creates or opens the cache database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), fileutil.DirPermissions); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in force.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Lookup returns the entry stored for slug.
func (s *Store) Lookup(ctx context.Context, slug string) (pelitrack.CacheEntry, bool, error) {
	var (
		entry   pelitrack.CacheEntry
		updated string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT slug, source_hash, settings_hash, location, updated_at FROM tracks WHERE slug = ?`, slug)
	err := row.Scan(&entry.Slug, &entry.SourceHash, &entry.SettingsHash, &entry.Location, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return pelitrack.CacheEntry{}, false, nil
	}
	if err != nil {
		return pelitrack.CacheEntry{}, false, fmt.Errorf("lookup %s: %w", slug, err)
	}
	if t, parseErr := time.Parse(time.RFC3339Nano, updated); parseErr == nil {
		entry.UpdatedAt = t
	}
	return entry, true, nil
}

// Store inserts or replaces the entry for entry.Slug.
func (s *Store) Store(ctx context.Context, entry pelitrack.CacheEntry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO tracks (slug, source_hash, settings_hash, location, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(slug) DO UPDATE SET
			   source_hash = excluded.source_hash,
			   settings_hash = excluded.settings_hash,
			   location = excluded.location,
			   updated_at = excluded.updated_at`,
			entry.Slug, entry.SourceHash, entry.SettingsHash, entry.Location,
			entry.UpdatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("store %s: %w", entry.Slug, err)
		}
		return nil
	})
}

// Prune removes entries whose slug is not in keep and returns how many
// were removed. Articles deleted since the last build lose their entry.
func (s *Store) Prune(ctx context.Context, keep []string) (int, error) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, slug := range keep {
		keepSet[slug] = struct{}{}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT slug FROM tracks`)
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}
	var stale []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("list entries: %w", err)
		}
		if _, ok := keepSet[slug]; !ok {
			stale = append(stale, slug)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, slug := range stale {
		err := retryOnBusy(ctx, func() error {
			_, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE slug = ?`, slug)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("prune %s: %w", slug, err)
		}
	}
	return len(stale), nil
}

// Count returns the number of cached tracks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tracks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy retries op with exponential backoff while SQLite reports busy.
func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
