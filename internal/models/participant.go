package models

import (
	"time"
)

// ParticipantStatus values for participants.status
const (
	ParticipantActive   = "active"
	ParticipantInactive = "inactive"
)

// Participant is an event attendee with a cashless wallet. The balance
// column is the single mutable counter; it is only ever written through
// the ledger service.
type Participant struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Balance      float64   `json:"balance" db:"balance"`
	EventID      string    `json:"event_id" db:"event_id"`
	IdentityCode string    `json:"identity_code" db:"identity_code"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
