package models

import (
	"time"
)

// Operation types for settlements. "vente" is the wire value used by
// the agent terminals for a point-of-sale debit.
const (
	TypeSale     = "vente"
	TypeRecharge = "recharge"
	TypeRefund   = "refund"
)

// Transaction statuses.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

// TransactionRecord is the append-only journal entry for a settled
// operation. Only the status of a pending mobile-money record is ever
// updated after creation, exactly once.
type TransactionRecord struct {
	ID            string    `json:"id" db:"id"`
	Type          string    `json:"type" db:"type"`
	Amount        float64   `json:"amount" db:"amount"`
	ParticipantID string    `json:"participant_id" db:"participant_id"`
	ProductID     *string   `json:"product_id,omitempty" db:"product_id"`
	Quantity      *int      `json:"quantity,omitempty" db:"quantity"`
	AgentID       string    `json:"agent_id,omitempty" db:"agent_id"`
	BalanceBefore float64   `json:"balance_before" db:"balance_before"`
	BalanceAfter  float64   `json:"balance_after" db:"balance_after"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	// Reference links a recharge back to the mobile-money payment that
	// produced it, making the credit detectable on reconciliation.
	Reference string `json:"reference,omitempty" db:"reference"`
}

// SettlementRequest is the tagged operation request consumed from the
// agent terminals. Exactly one of ParticipantID/QRCode must be set.
type SettlementRequest struct {
	Type          string  `json:"type" validate:"required,oneof=vente recharge refund"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	ParticipantID string  `json:"participantId,omitempty"`
	QRCode        string  `json:"qrCode,omitempty"`
	ProductID     string  `json:"productId,omitempty"`
	Quantity      int     `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	// Reference is set internally by the mobile-money reconciler, never
	// accepted from the wire.
	Reference string `json:"-"`
}

// SettlementResponse is the success payload returned to the terminal.
type SettlementResponse struct {
	ID          string              `json:"id"`
	Type        string              `json:"type"`
	Amount      float64             `json:"amount"`
	NewBalance  float64             `json:"newBalance"`
	Participant ParticipantSnapshot `json:"participant"`
}

// ParticipantSnapshot is the subset of participant state echoed back
// after a settlement.
type ParticipantSnapshot struct {
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}
