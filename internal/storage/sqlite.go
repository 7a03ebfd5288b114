package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"bookingbot/internal/models"
)

// SQLiteStore keeps reservations in a local SQLite database. A unique index
// on (date, time) gives an atomic conditional append: a concurrent booking of
// the same slot fails with ErrConflict instead of silently double-booking.
type SQLiteStore struct {
	conn *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Single writer avoids SQLITE_BUSY beyond the busy_timeout.
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.conn.Exec(`
CREATE TABLE IF NOT EXISTS reservations (
	id           TEXT PRIMARY KEY,
	date         TEXT NOT NULL,
	time         TEXT NOT NULL,
	service      TEXT NOT NULL,
	client_name  TEXT NOT NULL,
	contact      TEXT NOT NULL,
	requester_id INTEGER NOT NULL,
	created_at   DATETIME NOT NULL,
	UNIQUE(date, time)
)`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Append inserts a reservation and returns its assigned id. Returns
// ErrConflict when the (date, time) slot is already taken.
func (s *SQLiteStore) Append(ctx context.Context, r models.Reservation) (string, error) {
	id := uuid.NewString()
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO reservations (id, date, time, service, client_name, contact, requester_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Date, r.Time, r.Service, r.ClientName, r.ContactDigits, r.RequesterID, createdAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return "", ErrConflict
		}
		return "", fmt.Errorf("failed to insert reservation: %w", err)
	}
	return id, nil
}

// ListAll returns every reservation in insertion order.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]models.Reservation, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, date, time, service, client_name, contact, requester_id, created_at
		FROM reservations
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		var r models.Reservation
		if err := rows.Scan(&r.ID, &r.Date, &r.Time, &r.Service, &r.ClientName,
			&r.ContactDigits, &r.RequesterID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reservations: %w", err)
	}
	return out, nil
}

// DeleteByID removes the reservation with the given id. Returns ErrNotFound
// if it was never there or is already gone.
func (s *SQLiteStore) DeleteByID(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
