// Package cache persists LLM generations in SQLite so repeated runs over
// unchanged sources do not re-issue identical prompts.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"unitgen/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS generations (
	key        TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	response   TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store is a prompt/response cache backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open creates or opens the cache database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	logging.Get(logging.CategoryCache).Info("cache opened: %s", path)
	return &Store{db: db}, nil
}

// Key derives the cache key for a (model, prompt) pair.
func Key(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

// Get looks up a cached response. The second return value reports a hit.
func (s *Store) Get(model, prompt string) (string, bool, error) {
	var response string
	err := s.db.QueryRow(
		"SELECT response FROM generations WHERE key = ?", Key(model, prompt),
	).Scan(&response)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache lookup failed: %w", err)
	}

	logging.Get(logging.CategoryCache).Debug("cache hit for model %s", model)
	return response, true, nil
}

// Put stores a response, replacing any previous entry for the same key.
func (s *Store) Put(model, prompt, response string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO generations (key, model, response) VALUES (?, ?, ?)",
		Key(model, prompt), model, response,
	)
	if err != nil {
		return fmt.Errorf("cache store failed: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
