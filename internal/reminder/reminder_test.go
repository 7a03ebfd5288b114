package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"bookingbot/internal/models"
	"bookingbot/internal/storage"
)

type memStore struct {
	mu      sync.Mutex
	records []models.Reservation
	fail    error
}

func (m *memStore) Append(_ context.Context, r models.Reservation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return r.ID, nil
}

func (m *memStore) ListAll(_ context.Context) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	out := make([]models.Reservation, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *memStore) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []int64
	fail error
}

func (f *fakeNotifier) SendText(chatID int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, chatID)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testWorker(store *memStore, n *fakeNotifier, now time.Time) *Worker {
	w := New(store, n, time.Hour, time.Minute, time.UTC, zerolog.Nop())
	w.now = func() time.Time { return now }
	return w
}

func reservation(id, date, timeLabel string, chatID int64) models.Reservation {
	return models.Reservation{
		ID: id, Date: date, Time: timeLabel,
		Service: "haircut", ClientName: "Anna",
		ContactDigits: "375291234567", RequesterID: chatID,
	}
}

func TestTick_SendsWithinLeadWindow(t *testing.T) {
	now := time.Date(2026, 1, 9, 9, 30, 0, 0, time.UTC)
	store := &memStore{records: []models.Reservation{
		reservation("soon", "2026-01-09", "10:00", 1),  // 30 min ahead
		reservation("later", "2026-01-09", "14:00", 2), // beyond the lead
		reservation("past", "2026-01-09", "09:00", 3),  // already started
		reservation("other-day", "2026-01-12", "10:00", 4),
	}}
	n := &fakeNotifier{}
	w := testWorker(store, n, now)

	w.tick(context.Background())

	if n.count() != 1 {
		t.Fatalf("expected 1 reminder, got %d (%v)", n.count(), n.sent)
	}
	if n.sent[0] != 1 {
		t.Errorf("reminder went to chat %d, want 1", n.sent[0])
	}
}

func TestTick_SendsOnlyOnce(t *testing.T) {
	now := time.Date(2026, 1, 9, 9, 30, 0, 0, time.UTC)
	store := &memStore{records: []models.Reservation{
		reservation("soon", "2026-01-09", "10:00", 1),
	}}
	n := &fakeNotifier{}
	w := testWorker(store, n, now)

	w.tick(context.Background())
	w.tick(context.Background())
	w.tick(context.Background())

	if n.count() != 1 {
		t.Fatalf("expected exactly 1 reminder across ticks, got %d", n.count())
	}
}

func TestTick_RetriesAfterSendFailure(t *testing.T) {
	now := time.Date(2026, 1, 9, 9, 30, 0, 0, time.UTC)
	store := &memStore{records: []models.Reservation{
		reservation("soon", "2026-01-09", "10:00", 1),
	}}
	n := &fakeNotifier{fail: errors.New("telegram down")}
	w := testWorker(store, n, now)

	w.tick(context.Background())
	if n.count() != 0 {
		t.Fatal("send should have failed")
	}

	n.mu.Lock()
	n.fail = nil
	n.mu.Unlock()
	w.tick(context.Background())
	if n.count() != 1 {
		t.Fatalf("expected reminder after recovery, got %d", n.count())
	}
}

func TestTick_StoreOutageIsQuiet(t *testing.T) {
	now := time.Date(2026, 1, 9, 9, 30, 0, 0, time.UTC)
	store := &memStore{fail: errors.New("network down")}
	n := &fakeNotifier{}
	w := testWorker(store, n, now)

	w.tick(context.Background())
	if n.count() != 0 {
		t.Fatalf("expected no reminders during outage, got %d", n.count())
	}
}

func TestPrune_DropsCancelledMarkers(t *testing.T) {
	now := time.Date(2026, 1, 9, 9, 30, 0, 0, time.UTC)
	store := &memStore{records: []models.Reservation{
		reservation("soon", "2026-01-09", "10:00", 1),
	}}
	n := &fakeNotifier{}
	w := testWorker(store, n, now)

	w.tick(context.Background())
	if !w.sent["soon"] {
		t.Fatal("expected sent marker")
	}

	if err := store.DeleteByID(context.Background(), "soon"); err != nil {
		t.Fatal(err)
	}
	w.tick(context.Background())
	if w.sent["soon"] {
		t.Error("expected marker pruned after the record vanished")
	}
}
