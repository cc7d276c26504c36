package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/radiorecorder/allday/internal/domain"
)

//go:embed schema.sql
var schema string

// Store caches upstream bodies in SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the cached body of rawURL if it is younger than maxAge
func (s *Store) Lookup(rawURL string, maxAge time.Duration) ([]byte, bool, error) {
	var body []byte
	var fetchedAt time.Time
	err := s.db.QueryRow(
		"SELECT body, fetched_at FROM fetches WHERE url = ?",
		rawURL,
	).Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup fetch: %w", err)
	}

	if s.now().Sub(fetchedAt) > maxAge {
		return nil, false, nil
	}
	return body, true, nil
}

// Save stores body as the latest fetch of rawURL
func (s *Store) Save(rawURL string, body []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO fetches (id, url, body, fetched_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at
	`, uuid.New().String(), rawURL, body, s.now().UTC())
	if err != nil {
		return fmt.Errorf("save fetch: %w", err)
	}
	return nil
}

// List returns cached fetches, most recent first
func (s *Store) List(limit int) ([]domain.CachedFetch, error) {
	rows, err := s.db.Query(
		"SELECT id, url, length(body), fetched_at FROM fetches ORDER BY fetched_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list fetches: %w", err)
	}
	defer rows.Close()

	var fetches []domain.CachedFetch
	for rows.Next() {
		var f domain.CachedFetch
		if err := rows.Scan(&f.ID, &f.URL, &f.Size, &f.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan fetch: %w", err)
		}
		fetches = append(fetches, f)
	}

	return fetches, rows.Err()
}

// Purge deletes fetches older than maxAge and returns how many were removed
func (s *Store) Purge(maxAge time.Duration) (int64, error) {
	res, err := s.db.Exec(
		"DELETE FROM fetches WHERE fetched_at < ?",
		s.now().Add(-maxAge).UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge fetches: %w", err)
	}
	return res.RowsAffected()
}
