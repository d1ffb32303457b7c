package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"recsync/internal/config"
)

// Store is a persistent key/value cache backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one stored key/value pair.
type Entry struct {
	Key   string
	Value string
}

// Open initializes or connects to the cache database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.StateDir, "cache.db"))
}

// OpenPath opens a cache database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS cache_entries (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL,
            updated_at TEXT NOT NULL
        )`,
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Put stores or replaces a single entry.
func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO cache_entries (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key,
		value,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Get fetches a single entry. The second return reports presence.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM cache_entries WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Delete removes a single entry. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// ListPrefix returns all entries under a logical path prefix, ordered by key.
func (s *Store) ListPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT key, value FROM cache_entries WHERE key LIKE ? ESCAPE '\' ORDER BY key`,
		likePattern(prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("list prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.Key, &entry.Value); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountPrefix returns how many entries live under a logical path prefix.
func (s *Store) CountPrefix(ctx context.Context, prefix string) (int, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM cache_entries WHERE key LIKE ? ESCAPE '\'`,
		likePattern(prefix),
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count prefix %q: %w", prefix, err)
	}
	return count, nil
}

// DeletePrefix removes every entry under a logical path prefix and reports
// how many entries were removed.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`,
		likePattern(prefix),
	)
	if err != nil {
		return 0, fmt.Errorf("delete prefix %q: %w", prefix, err)
	}
	return res.RowsAffected()
}

// likePattern escapes LIKE metacharacters so prefixes containing % or _
// match literally.
func likePattern(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}
