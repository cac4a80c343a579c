package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists entries to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if needed) the database at path.
// Use ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS beacons (
			minion_id TEXT NOT NULL,
			name TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (minion_id, name)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_beacons_minion_id
		ON beacons(minion_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(minionID, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	// New entries go to the end; overwrites keep their sequence.
	_, err := s.db.Exec(`
		INSERT INTO beacons (minion_id, name, sequence, timestamp, data)
		VALUES (
			?, ?,
			COALESCE((SELECT MAX(sequence) FROM beacons WHERE minion_id = ?), 0) + 1,
			?, ?
		)
		ON CONFLICT(minion_id, name) DO UPDATE SET
			timestamp = excluded.timestamp,
			data = excluded.data
	`, minionID, name, minionID, time.Now().UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return fmt.Errorf("save beacon: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(minionID, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRow(`
		SELECT data FROM beacons
		WHERE minion_id = ? AND name = ?
	`, minionID, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load beacon: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *SQLiteStore) List(minionID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT name, sequence, timestamp, LENGTH(data)
		FROM beacons
		WHERE minion_id = ?
		ORDER BY sequence
	`, minionID)
	if err != nil {
		return nil, fmt.Errorf("list beacons: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		var info Info
		var timestamp string
		if err := rows.Scan(&info.Name, &info.Sequence, &timestamp, &info.Size); err != nil {
			return nil, fmt.Errorf("scan beacon info: %w", err)
		}
		info.MinionID = minionID
		info.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate beacons: %w", err)
	}
	return infos, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(minionID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`
		DELETE FROM beacons
		WHERE minion_id = ? AND name = ?
	`, minionID, name); err != nil {
		return fmt.Errorf("delete beacon: %w", err)
	}
	return nil
}

// DeleteAll implements Store.
func (s *SQLiteStore) DeleteAll(minionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM beacons WHERE minion_id = ?`, minionID); err != nil {
		return fmt.Errorf("delete minion beacons: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
