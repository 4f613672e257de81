package builder

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store is the SQLite compile cache. It caches whole generated units keyed
// by project hash, and the wire descriptor of every compiled class keyed by
// (class name, source hash), so embedders can inspect a class without
// recompiling its template.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenStore opens (and if needed creates) the cache database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS units (
			hash   TEXT PRIMARY KEY,
			source TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS classes (
			name       TEXT NOT NULL,
			hash       TEXT NOT NULL,
			descriptor BLOB NOT NULL,
			PRIMARY KEY (name, hash)
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating cache tables: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// PutUnit caches a generated source unit under the project hash.
func (s *Store) PutUnit(hash, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO units (hash, source) VALUES (?, ?)",
		hash, source,
	)
	if err != nil {
		return fmt.Errorf("caching unit: %w", err)
	}
	return nil
}

// GetUnit returns the cached source for a project hash, or ok=false on a
// cache miss.
func (s *Store) GetUnit(hash string) (source string, ok bool, err error) {
	err = s.db.QueryRow("SELECT source FROM units WHERE hash = ?", hash).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying unit: %w", err)
	}
	return source, true, nil
}

// PutClass stores the wire descriptor of a compiled class under its source
// hash.
func (s *Store) PutClass(name, hash string, descriptor []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO classes (name, hash, descriptor) VALUES (?, ?, ?)",
		name, hash, descriptor,
	)
	if err != nil {
		return fmt.Errorf("caching class %s: %w", name, err)
	}
	return nil
}

// GetClass returns the stored descriptor for (name, hash), or ok=false on a
// cache miss.
func (s *Store) GetClass(name, hash string) (descriptor []byte, ok bool, err error) {
	err = s.db.QueryRow(
		"SELECT descriptor FROM classes WHERE name = ? AND hash = ?",
		name, hash,
	).Scan(&descriptor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying class %s: %w", name, err)
	}
	return descriptor, true, nil
}
