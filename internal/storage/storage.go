// Package storage holds the narrow contract over the durable reservation
// store and its SQLite and Google Sheets implementations. No business logic
// lives here: callers get append, list and delete-by-id, nothing else.
package storage

import (
	"context"
	"errors"

	"bookingbot/internal/models"
)

var (
	// ErrNotFound is returned by DeleteByID when no record has the given id.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned by Append when the backend enforces slot
	// uniqueness and another record already holds the same (date, time).
	// Backends without a uniqueness constraint never return it.
	ErrConflict = errors.New("slot already reserved")
)

// Store is the reservation record store. Implementations assign the record id
// on append and must honor the caller's context deadline on every call.
type Store interface {
	Append(ctx context.Context, r models.Reservation) (string, error)
	ListAll(ctx context.Context) ([]models.Reservation, error)
	DeleteByID(ctx context.Context, id string) error
}
