// Package booking computes free slots and commits reservations. The store is
// re-read on every query: it is the source of truth shared by all users and
// possibly other processes, so no availability view is ever cached.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bookingbot/internal/catalog"
	"bookingbot/internal/models"
	"bookingbot/internal/storage"
)

var (
	// ErrOutOfHorizon rejects dates the catalog does not currently offer.
	ErrOutOfHorizon = errors.New("date is outside the booking horizon")

	// ErrSlotTaken means the requested (date, time) was reserved by someone
	// else between availability display and commit.
	ErrSlotTaken = errors.New("slot is already taken")

	// ErrStoreUnavailable wraps transient store failures. The turn fails,
	// nothing is retried silently.
	ErrStoreUnavailable = errors.New("reservation store unavailable")

	ErrUnknownService = errors.New("unknown service")
	ErrInvalidTime    = errors.New("time is not on the slot grid")
	ErrEmptyName      = errors.New("name must not be empty")
	ErrInvalidPhone   = errors.New("phone number is invalid")
)

// Candidate is a booking request as collected by the dialogue, before
// validation.
type Candidate struct {
	Service     string
	Date        string
	Time        string
	Name        string
	Phone       string
	RequesterID int64
}

// Engine validates bookings against the catalog and the live reservation set.
type Engine struct {
	catalog *catalog.Catalog
	store   storage.Store
	timeout time.Duration
	log     zerolog.Logger
}

// New creates an engine. timeout bounds every store call.
func New(cat *catalog.Catalog, store storage.Store, timeout time.Duration, log zerolog.Logger) *Engine {
	return &Engine{catalog: cat, store: store, timeout: timeout, log: log}
}

// AvailableSlots returns the free time labels for date in grid order by
// subtracting reservations for that date (any service) from the slot grid.
// Store failures propagate: callers on the booking path must refuse to book.
func (e *Engine) AvailableSlots(ctx context.Context, date string) ([]string, error) {
	grid := e.catalog.SlotGrid(date)
	if grid == nil {
		return nil, ErrOutOfHorizon
	}

	all, err := e.listAll(ctx)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool)
	for _, r := range all {
		if r.Date == date {
			taken[r.Time] = true
		}
	}

	var free []string
	for _, t := range grid {
		if !taken[t] {
			free = append(free, t)
		}
	}
	return free, nil
}

// AvailableSlotsDisplay is the read-path variant: if the store is down it
// logs and falls back to the full grid so the menu still renders. The commit
// path re-checks with AvailableSlots and will refuse instead.
func (e *Engine) AvailableSlotsDisplay(ctx context.Context, date string) ([]string, error) {
	free, err := e.AvailableSlots(ctx, date)
	if errors.Is(err, ErrStoreUnavailable) {
		e.log.Warn().Err(err).Str("date", date).Msg("Store unreachable, showing unfiltered grid")
		return e.catalog.SlotGrid(date), nil
	}
	return free, err
}

// Create validates the candidate, re-checks availability against the live
// store and commits the reservation. Returns the stored reservation with its
// assigned id.
func (e *Engine) Create(ctx context.Context, c Candidate) (models.Reservation, error) {
	if _, ok := e.catalog.ServiceByID(c.Service); !ok {
		return models.Reservation{}, ErrUnknownService
	}
	if !e.catalog.InHorizon(c.Date) {
		return models.Reservation{}, ErrOutOfHorizon
	}
	if !e.catalog.InGrid(c.Date, c.Time) {
		return models.Reservation{}, ErrInvalidTime
	}
	if strings.TrimSpace(c.Name) == "" {
		return models.Reservation{}, ErrEmptyName
	}
	digits := models.NormalizePhone(c.Phone)
	if len(digits) < models.MinPhoneDigits {
		return models.Reservation{}, ErrInvalidPhone
	}

	// Fresh re-check right before commit. This narrows the race window but
	// cannot close it; the SQLite backend additionally rejects duplicates
	// with a unique constraint, the Sheets backend does not.
	free, err := e.AvailableSlots(ctx, c.Date)
	if err != nil {
		return models.Reservation{}, err
	}
	if !contains(free, c.Time) {
		return models.Reservation{}, ErrSlotTaken
	}

	r := models.Reservation{
		Date:          c.Date,
		Time:          c.Time,
		Service:       c.Service,
		ClientName:    strings.TrimSpace(c.Name),
		ContactDigits: digits,
		RequesterID:   c.RequesterID,
		CreatedAt:     time.Now(),
	}

	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	id, err := e.store.Append(callCtx, r)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return models.Reservation{}, ErrSlotTaken
		}
		return models.Reservation{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	r.ID = id

	e.log.Info().
		Str("id", id).
		Str("date", r.Date).
		Str("time", r.Time).
		Str("service", r.Service).
		Msg("Reservation committed")
	return r, nil
}

// FindByPhone returns all reservations owned by the phone number, in store
// row order. Both sides are normalized to bare digits before comparison.
func (e *Engine) FindByPhone(ctx context.Context, phone string) ([]models.Reservation, error) {
	digits := models.NormalizePhone(phone)
	if len(digits) < models.MinPhoneDigits {
		return nil, ErrInvalidPhone
	}

	all, err := e.listAll(ctx)
	if err != nil {
		return nil, err
	}

	var matches []models.Reservation
	for _, r := range all {
		if models.NormalizePhone(r.ContactDigits) == digits {
			matches = append(matches, r)
		}
	}
	return matches, nil
}

// Cancel deletes the reservation with the given id. storage.ErrNotFound
// passes through: the record being gone already is a normal outcome.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	err := e.store.DeleteByID(callCtx, id)
	if err == nil {
		e.log.Info().Str("id", id).Msg("Reservation cancelled")
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (e *Engine) listAll(ctx context.Context) ([]models.Reservation, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	all, err := e.store.ListAll(callCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return all, nil
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
