package models

import (
	"strings"
	"time"
)

// DateLayout is the wire format for reservation dates everywhere in the bot.
const DateLayout = "2006-01-02"

// MinPhoneDigits is the shortest phone number accepted after normalization.
const MinPhoneDigits = 9

// Service is a bookable catalog entry
type Service struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// Reservation is one committed booking: a (date, time) slot held by a client.
type Reservation struct {
	ID            string    `json:"id"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Service       string    `json:"service"`
	ClientName    string    `json:"client_name"`
	ContactDigits string    `json:"contact_digits"`
	RequesterID   int64     `json:"requester_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// NormalizePhone reduces a phone number to bare digits, dropping +, spaces,
// dashes, parentheses and anything else that is not 0-9.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// ValidPhone reports whether the input normalizes to an acceptable number.
func ValidPhone(phone string) bool {
	return len(NormalizePhone(phone)) >= MinPhoneDigits
}
