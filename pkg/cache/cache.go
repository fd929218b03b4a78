// Package cache keeps downloaded package archives in a local SQLite database
// so repeated runs do not hit the network.
package cache

import (
	"context"
	"crypto/sha512"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS packages (
		id         TEXT NOT NULL,
		version    TEXT NOT NULL,
		sha512     TEXT NOT NULL,
		data       BLOB NOT NULL,
		fetched_at TEXT NOT NULL,
		PRIMARY KEY (id, version)
	)`,
}

// Store is a package archive cache.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path and applies migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
		path += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// A single connection keeps :memory: databases alive and serializes writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate brings the schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > schemaVersion {
		return fmt.Errorf("cache schema version %d is newer than supported version %d", current, schemaVersion)
	}
	for i := current; i < len(migrations); i++ {
		if _, err := s.db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("apply cache migration %d: %w", i+1, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the cached archive for id and version. Entries whose content no
// longer matches the stored hash are dropped and reported as misses.
func (s *Store) Get(ctx context.Context, id, version string) ([]byte, bool, error) {
	var sum string
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT sha512, data FROM packages WHERE id = ? AND version = ?`,
		key(id), key(version)).Scan(&sum, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached %s %s: %w", id, version, err)
	}

	if digest(data) != sum {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM packages WHERE id = ? AND version = ?`, key(id), key(version)); err != nil {
			return nil, false, fmt.Errorf("evict corrupt %s %s: %w", id, version, err)
		}
		return nil, false, nil
	}
	return data, true, nil
}

// Put stores an archive, replacing any previous entry.
func (s *Store) Put(ctx context.Context, id, version string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO packages (id, version, sha512, data, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			sha512 = excluded.sha512,
			data = excluded.data,
			fetched_at = excluded.fetched_at
	`, key(id), key(version), digest(data), data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("cache %s %s: %w", id, version, err)
	}
	return nil
}

// Len returns the number of cached archives.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cached packages: %w", err)
	}
	return n, nil
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func digest(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:])
}
