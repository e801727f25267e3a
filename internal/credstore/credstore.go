// Package credstore persists opaque credential blobs (the exported
// cookie jar) across runs in a local SQLite database.
package credstore

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates no blob is stored under the requested key.
var ErrNotFound = errors.New("credstore: blob not found")

// CookieKey is the key the CLI stores the exported cookie jar under.
const CookieKey = "cookies"

// Store is a key/blob table in a SQLite file.
type Store struct {
	db *sql.DB
}

// Open creates or opens the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("credstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS blobs (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("credstore: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns the blob stored under key, or ErrNotFound.
func (s *Store) Load(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("credstore: load %s: %w", key, err)
	}
	return value, nil
}

// Save stores the blob under key, replacing any previous value.
func (s *Store) Save(key string, blob []byte) error {
	_, err := s.db.Exec(`INSERT INTO blobs (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, blob)
	if err != nil {
		return fmt.Errorf("credstore: save %s: %w", key, err)
	}
	return nil
}

// Delete removes the blob under key. Missing keys are not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM blobs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("credstore: delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
