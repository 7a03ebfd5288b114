// Package session tracks per-user conversation state. Sessions live only in
// memory: a restart loses dialogue progress but never committed reservations.
package session

import (
	"sync"

	"bookingbot/internal/models"
)

// State is the dialogue step a user is currently on.
type State int

const (
	StateIdle State = iota
	StateChoosingService
	StateChoosingDate
	StateChoosingTime
	StateEnteringName
	StateEnteringPhone
	StateCancelAwaitingPhone
	StateCancelAwaitingSelection
)

// Session is one user's dialogue progress: current state plus whatever
// booking fields have been collected so far.
type Session struct {
	UserID int64
	State  State

	// Partial booking, filled in step by step.
	Service string
	Date    string
	Time    string
	Name    string

	// Reservations offered for cancellation while in
	// StateCancelAwaitingSelection.
	CancelCandidates []models.Reservation

	mu sync.Mutex
}

// ResetBooking clears partial booking data and the cancel candidates, keeping
// the session itself.
func (s *Session) ResetBooking() {
	s.Service = ""
	s.Date = ""
	s.Time = ""
	s.Name = ""
	s.CancelCandidates = nil
}

// Store holds all live sessions keyed by chat user id.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Get returns the session for userID, creating an idle one on first touch.
func (st *Store) Get(userID int64) *Session {
	st.mu.RLock()
	s, ok := st.sessions[userID]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok = st.sessions[userID]; ok {
		return s
	}
	s = &Session{UserID: userID, State: StateIdle}
	st.sessions[userID] = s
	return s
}

// Lock serializes turns for one user: the transport handles each inbound
// event in its own goroutine, but at most one turn per user runs at a time.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-user turn lock.
func (s *Session) Unlock() { s.mu.Unlock() }
