// Package reminder notifies clients shortly before their visit, keeping the
// promise made in the booking confirmation message.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bookingbot/internal/models"
	"bookingbot/internal/storage"
)

// Notifier delivers a reminder to a chat. Satisfied by telegram.Service.
type Notifier interface {
	SendText(chatID int64, text string) error
}

// Worker periodically scans the store and reminds upcoming visitors once.
type Worker struct {
	store    storage.Store
	notifier Notifier
	lead     time.Duration
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger

	sent map[string]bool
}

// New creates a worker that reminds lead ahead of the slot, checking every
// interval. loc is the business timezone the slot labels are written in.
func New(store storage.Store, notifier Notifier, lead, interval time.Duration, loc *time.Location, log zerolog.Logger) *Worker {
	return &Worker{
		store:    store,
		notifier: notifier,
		lead:     lead,
		interval: interval,
		loc:      loc,
		now:      time.Now,
		log:      log,
		sent:     make(map[string]bool),
	}
}

// Run ticks until ctx is cancelled. Send failures are logged and retried on
// the next tick.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	listCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	all, err := w.store.ListAll(listCtx)
	cancel()
	if err != nil {
		w.log.Warn().Err(err).Msg("Reminder scan failed")
		return
	}

	now := w.now()
	for _, r := range all {
		if w.sent[r.ID] {
			continue
		}
		start, err := w.slotStart(r)
		if err != nil {
			w.log.Debug().Err(err).Str("id", r.ID).Msg("Skipping record with unparseable slot")
			continue
		}
		if start.Before(now) || start.Sub(now) > w.lead {
			continue
		}
		text := fmt.Sprintf("⏰ Reminder: your %s appointment is today at %s. See you soon!", r.Service, r.Time)
		if err := w.notifier.SendText(r.RequesterID, text); err != nil {
			w.log.Warn().Err(err).Str("id", r.ID).Msg("Reminder delivery failed, will retry")
			continue
		}
		w.sent[r.ID] = true
		w.log.Info().Str("id", r.ID).Str("time", r.Time).Msg("Reminder sent")
	}

	w.prune(all)
}

func (w *Worker) slotStart(r models.Reservation) (time.Time, error) {
	return time.ParseInLocation(models.DateLayout+" 15:04", r.Date+" "+r.Time, w.loc)
}

// prune drops sent markers for reservations that are no longer in the store
// (past rows purged, bookings cancelled), keeping the map bounded.
func (w *Worker) prune(all []models.Reservation) {
	if len(w.sent) == 0 {
		return
	}
	live := make(map[string]bool, len(all))
	for _, r := range all {
		live[r.ID] = true
	}
	for id := range w.sent {
		if !live[id] {
			delete(w.sent, id)
		}
	}
}
