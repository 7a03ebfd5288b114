// Package dialog drives the booking conversation. The machine is transport
// agnostic: it consumes user events and produces replies with optional choice
// sets, leaving delivery to the Telegram layer.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"bookingbot/internal/booking"
	"bookingbot/internal/catalog"
	"bookingbot/internal/models"
	"bookingbot/internal/session"
	"bookingbot/internal/storage"
)

// RestartCommand forces any session back to the service menu.
const RestartCommand = "/start"

// EventKind distinguishes free text from a pressed choice button.
type EventKind int

const (
	EventText EventKind = iota
	EventChoice
)

// Event is one inbound user turn.
type Event struct {
	UserID  int64
	Kind    EventKind
	Payload string
}

// Option is one labeled choice offered to the user. Data comes back verbatim
// as a choice event payload.
type Option struct {
	Label string
	Data  string
}

// Reply is the outbound prompt for a turn.
type Reply struct {
	Text    string
	Options []Option
}

// Machine looks up the user's session, validates the event against the
// current state, calls into the booking engine and produces the next prompt.
type Machine struct {
	catalog  *catalog.Catalog
	engine   *booking.Engine
	sessions *session.Store
	log      zerolog.Logger
}

// New creates a dialogue machine.
func New(cat *catalog.Catalog, engine *booking.Engine, sessions *session.Store, log zerolog.Logger) *Machine {
	return &Machine{catalog: cat, engine: engine, sessions: sessions, log: log}
}

// HandleEvent runs one conversation turn. Turns for the same user are
// serialized on the session lock; different users proceed independently.
func (m *Machine) HandleEvent(ctx context.Context, ev Event) Reply {
	s := m.sessions.Get(ev.UserID)
	s.Lock()
	defer s.Unlock()

	if ev.Kind == EventText && isRestart(ev.Payload) {
		return m.restart(s)
	}

	switch s.State {
	case session.StateIdle:
		return Reply{Text: "👋 Hi! Send /start to book an appointment or manage an existing one."}
	case session.StateChoosingService:
		return m.onChoosingService(s, ev)
	case session.StateChoosingDate:
		return m.onChoosingDate(ctx, s, ev)
	case session.StateChoosingTime:
		return m.onChoosingTime(ctx, s, ev)
	case session.StateEnteringName:
		return m.onEnteringName(s, ev)
	case session.StateEnteringPhone:
		return m.onEnteringPhone(ctx, s, ev)
	case session.StateCancelAwaitingPhone:
		return m.onCancelAwaitingPhone(ctx, s, ev)
	case session.StateCancelAwaitingSelection:
		return m.onCancelAwaitingSelection(ctx, s, ev)
	default:
		m.log.Error().Int64("user", s.UserID).Int("state", int(s.State)).Msg("Unknown session state, resetting")
		return m.restart(s)
	}
}

func isRestart(text string) bool {
	t := strings.TrimSpace(text)
	return t == RestartCommand || strings.HasPrefix(t, RestartCommand+"@")
}

// restart discards any partial booking and re-renders the service menu.
func (m *Machine) restart(s *session.Session) Reply {
	s.ResetBooking()
	s.State = session.StateChoosingService
	return m.serviceMenu()
}

func (m *Machine) serviceMenu() Reply {
	var opts []Option
	for _, svc := range m.catalog.Services() {
		opts = append(opts, Option{Label: "✂️ " + svc.Label, Data: "service:" + svc.ID})
	}
	opts = append(opts, Option{Label: "🗑 Cancel my booking", Data: "cancel:start"})
	return Reply{
		Text:    "👋 Hi! I can book you an appointment.\n\nPlease choose a service:",
		Options: opts,
	}
}

func (m *Machine) dateMenu(s *session.Session) Reply {
	svc, _ := m.catalog.ServiceByID(s.Service)
	var opts []Option
	for _, d := range m.catalog.Dates() {
		opts = append(opts, Option{Label: d, Data: "date:" + d})
	}
	opts = append(opts, Option{Label: "↩️ Back", Data: "back:service"})
	return Reply{
		Text:    fmt.Sprintf("📆 You picked: %s\n\nChoose a date:", svc.Label),
		Options: opts,
	}
}

func (m *Machine) timeMenu(date string, free []string) Reply {
	var opts []Option
	for _, t := range free {
		opts = append(opts, Option{Label: "⏰ " + t, Data: "time:" + t})
	}
	opts = append(opts, Option{Label: "↩️ Back", Data: "back:date"})
	return Reply{
		Text:    fmt.Sprintf("🕗 Date: %s\nChoose a time:", date),
		Options: opts,
	}
}

func (m *Machine) onChoosingService(s *session.Session, ev Event) Reply {
	if ev.Kind == EventChoice {
		prefix, value := splitChoice(ev.Payload)
		switch prefix {
		case "service":
			if _, ok := m.catalog.ServiceByID(value); !ok {
				return withNote(m.serviceMenu(), "❌ Unknown service, please pick one from the list.")
			}
			s.Service = value
			s.State = session.StateChoosingDate
			return m.dateMenu(s)
		case "cancel":
			if value == "start" {
				s.State = session.StateCancelAwaitingPhone
				return Reply{Text: "📞 Send the phone number you booked with, e.g. +375291234567."}
			}
		}
	}
	return withNote(m.serviceMenu(), "Please pick a service from the list.")
}

func (m *Machine) onChoosingDate(ctx context.Context, s *session.Session, ev Event) Reply {
	if ev.Kind == EventChoice {
		prefix, value := splitChoice(ev.Payload)
		switch prefix {
		case "back":
			s.State = session.StateChoosingService
			return m.serviceMenu()
		case "date":
			if !m.catalog.InHorizon(value) {
				return withNote(m.dateMenu(s), "❌ That date is not available, please pick another.")
			}
			free, err := m.engine.AvailableSlotsDisplay(ctx, value)
			if err != nil {
				return withNote(m.dateMenu(s), "❌ That date is not available, please pick another.")
			}
			if len(free) == 0 {
				return withNote(m.dateMenu(s), "😔 No free slots on "+value+", please pick another date.")
			}
			s.Date = value
			s.State = session.StateChoosingTime
			return m.timeMenu(value, free)
		}
	}
	return withNote(m.dateMenu(s), "Please pick a date from the list.")
}

func (m *Machine) onChoosingTime(ctx context.Context, s *session.Session, ev Event) Reply {
	if ev.Kind == EventChoice {
		prefix, value := splitChoice(ev.Payload)
		switch prefix {
		case "back":
			s.State = session.StateChoosingDate
			return m.dateMenu(s)
		case "time":
			// Time may have passed or a concurrent booking may have landed
			// since the date step, so validate against a fresh snapshot.
			free, err := m.engine.AvailableSlots(ctx, s.Date)
			if err != nil {
				return m.transientFailure(s, err)
			}
			if !containsSlot(free, value) {
				return withNote(m.timeMenu(s.Date, free), "⚠️ That time was just taken, please pick another.")
			}
			s.Time = value
			s.State = session.StateEnteringName
			return Reply{Text: "🙋 What is your name?"}
		}
	}
	free, err := m.engine.AvailableSlotsDisplay(ctx, s.Date)
	if err != nil {
		return m.transientFailure(s, err)
	}
	return withNote(m.timeMenu(s.Date, free), "Please pick a time from the list.")
}

func (m *Machine) onEnteringName(s *session.Session, ev Event) Reply {
	name := strings.TrimSpace(ev.Payload)
	if ev.Kind != EventText || name == "" {
		return Reply{Text: "❌ Please send your name as plain text."}
	}
	s.Name = name
	s.State = session.StateEnteringPhone
	return Reply{Text: "📞 And your phone number, e.g. +375291234567:"}
}

func (m *Machine) onEnteringPhone(ctx context.Context, s *session.Session, ev Event) Reply {
	if ev.Kind != EventText || !models.ValidPhone(ev.Payload) {
		return Reply{Text: "❌ That does not look like a phone number.\nPlease use a format like +375291234567."}
	}

	r, err := m.engine.Create(ctx, booking.Candidate{
		Service:     s.Service,
		Date:        s.Date,
		Time:        s.Time,
		Name:        s.Name,
		Phone:       ev.Payload,
		RequesterID: s.UserID,
	})
	switch {
	case err == nil:
		svc, _ := m.catalog.ServiceByID(r.Service)
		s.ResetBooking()
		s.State = session.StateIdle
		return Reply{Text: fmt.Sprintf(
			"✅ You are booked!\n\n📅 Date: %s\n🕗 Time: %s\n💇 Service: %s\n📞 Phone: +%s\n\n💬 I will send a reminder an hour before your visit!",
			r.Date, r.Time, svc.Label, r.ContactDigits,
		)}
	case errors.Is(err, booking.ErrSlotTaken):
		// Someone grabbed the slot between selection and commit: send the
		// user back to pick a time from a fresh list.
		s.Time = ""
		s.State = session.StateChoosingTime
		free, ferr := m.engine.AvailableSlotsDisplay(ctx, s.Date)
		if ferr != nil {
			return m.transientFailure(s, ferr)
		}
		return withNote(m.timeMenu(s.Date, free), "⚠️ Sorry, that time was just taken. Please pick another:")
	case errors.Is(err, booking.ErrStoreUnavailable):
		// Partial success cannot be ruled out at the commit step, so the
		// session resets instead of inviting a retry that might double-book.
		m.log.Error().Err(err).Int64("user", s.UserID).Msg("Commit failed")
		s.ResetBooking()
		s.State = session.StateIdle
		return Reply{Text: "❌ Could not save your booking. Please try again later with /start."}
	default:
		m.log.Error().Err(err).Int64("user", s.UserID).Msg("Booking rejected")
		s.ResetBooking()
		s.State = session.StateIdle
		return Reply{Text: "❌ Something went wrong. Please start over with /start."}
	}
}

func (m *Machine) onCancelAwaitingPhone(ctx context.Context, s *session.Session, ev Event) Reply {
	if ev.Kind != EventText || !models.ValidPhone(ev.Payload) {
		return Reply{Text: "❌ That does not look like a phone number.\nPlease use a format like +375291234567."}
	}

	matches, err := m.engine.FindByPhone(ctx, ev.Payload)
	if err != nil {
		return m.transientFailure(s, err)
	}
	if len(matches) == 0 {
		s.State = session.StateIdle
		return Reply{Text: "🤷 No active reservations for that number.\nSend /start to make one."}
	}

	s.CancelCandidates = matches
	s.State = session.StateCancelAwaitingSelection
	return m.cancelMenu(matches)
}

func (m *Machine) cancelMenu(matches []models.Reservation) Reply {
	var opts []Option
	for _, r := range matches {
		svc, _ := m.catalog.ServiceByID(r.Service)
		label := fmt.Sprintf("%s %s — %s", r.Date, r.Time, svc.Label)
		if svc.Label == "" {
			label = fmt.Sprintf("%s %s — %s", r.Date, r.Time, r.Service)
		}
		opts = append(opts, Option{Label: label, Data: "cancel:" + r.ID})
	}
	return Reply{Text: "🗑 Which booking would you like to cancel?", Options: opts}
}

func (m *Machine) onCancelAwaitingSelection(ctx context.Context, s *session.Session, ev Event) Reply {
	if ev.Kind == EventChoice {
		prefix, id := splitChoice(ev.Payload)
		if prefix == "cancel" && findCandidate(s, id) != nil {
			err := m.engine.Cancel(ctx, id)
			switch {
			case err == nil:
				s.ResetBooking()
				s.State = session.StateIdle
				return Reply{Text: "✅ Your booking is cancelled. Send /start to book again."}
			case errors.Is(err, storage.ErrNotFound):
				// Already gone, e.g. cancelled from another device. Normal.
				s.ResetBooking()
				s.State = session.StateIdle
				return Reply{Text: "ℹ️ That booking was already cancelled."}
			default:
				return m.transientFailure(s, err)
			}
		}
	}
	return withNote(m.cancelMenu(s.CancelCandidates), "Please pick a booking from the list.")
}

// transientFailure reports a store outage without touching the session state,
// so the user can retry the same step later.
func (m *Machine) transientFailure(s *session.Session, err error) Reply {
	m.log.Warn().Err(err).Int64("user", s.UserID).Msg("Turn failed on store call")
	return Reply{Text: "⏳ The booking service is temporarily unavailable. Please try again in a minute."}
}

// findCandidate only matches ids that were offered to this user in this
// cancellation flow; arbitrary ids in callback data are ignored.
func findCandidate(s *session.Session, id string) *models.Reservation {
	for i := range s.CancelCandidates {
		if s.CancelCandidates[i].ID == id {
			return &s.CancelCandidates[i]
		}
	}
	return nil
}

func withNote(r Reply, note string) Reply {
	r.Text = note + "\n\n" + r.Text
	return r
}

func splitChoice(payload string) (prefix, value string) {
	parts := strings.SplitN(payload, ":", 2)
	if len(parts) != 2 {
		return payload, ""
	}
	return parts[0], parts[1]
}

func containsSlot(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
