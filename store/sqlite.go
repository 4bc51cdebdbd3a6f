package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db    *sql.DB
	mutex sync.Mutex
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	store := &SQLite{
		db: db,
	}

	if err := store.initializeTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing tables: %w", err)
	}

	return store, nil
}

func (s *SQLite) initializeTables() error {
	_, err := s.db.Exec(`
        CREATE TABLE IF NOT EXISTS session (
            id TEXT NOT NULL PRIMARY KEY,
            created_at INTEGER NOT NULL,
            expires_at INTEGER NOT NULL,
            data TEXT NOT NULL
        )
    `)
	if err != nil {
		return fmt.Errorf("error creating session table: %w", err)
	}

	_, err = s.db.Exec(`
        CREATE INDEX IF NOT EXISTS session_expires_at_index ON session(expires_at)
    `)
	if err != nil {
		return fmt.Errorf("error creating expires_at index: %w", err)
	}

	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var (
		createdAt int64
		expiresAt int64
		data      string
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT created_at, expires_at, data
        FROM session
        WHERE id = ?
    `, id).Scan(&createdAt, &expiresAt, &data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting session: %w", err)
	}

	rec := &Record{
		ID:        id,
		CreatedAt: time.Unix(createdAt, 0),
		ExpiresAt: time.Unix(expiresAt, 0),
		Values:    map[string]string{},
	}
	if err := json.Unmarshal([]byte(data), &rec.Values); err != nil {
		return nil, fmt.Errorf("error decoding session data: %w", err)
	}
	return rec, nil
}

func (s *SQLite) Set(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("error encoding session data: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	query := `
        INSERT INTO session (id, created_at, expires_at, data)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET expires_at = excluded.expires_at, data = excluded.data
    `
	_, err = s.db.ExecContext(ctx, query, rec.ID, rec.CreatedAt.Unix(), rec.ExpiresAt.Unix(), string(data))
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes records past their expiry. Loading already rejects
// them; this only reclaims space.
func (s *SQLite) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	result, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE expires_at <= ?", now.Unix())
	if err != nil {
		return 0, fmt.Errorf("error deleting expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error getting rows affected: %w", err)
	}
	return n, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
