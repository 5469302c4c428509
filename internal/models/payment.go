package models

import (
	"time"
)

// Mobile money operators supported by the eBilling provider.
const (
	OperatorAirtel = "airtelmoney"
	OperatorMoov   = "moovmoney4"
)

// PendingPayment statuses. The pending→confirmed transition happens at
// most once; that gate is what prevents double-crediting.
const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentFailed    = "failed"
)

// PendingPayment is the stored half of a two-phase mobile-money top-up:
// created on initiate, finalized on confirm.
type PendingPayment struct {
	ID            string     `json:"id" db:"id"`
	ParticipantID string     `json:"participant_id" db:"participant_id"`
	EventID       string     `json:"event_id" db:"event_id"`
	Reference     string     `json:"reference" db:"reference"`
	BillID        string     `json:"bill_id" db:"bill_id"`
	Amount        float64    `json:"amount" db:"amount"`
	Msisdn        string     `json:"msisdn" db:"msisdn"`
	PaymentSystem string     `json:"payment_system" db:"payment_system"`
	Status        string     `json:"status" db:"status"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
	// CreditedTx is set when the recharge credit has been journaled.
	// A confirmed payment with a null CreditedTx is the crash window
	// the reconciliation sweep repairs.
	CreditedTx *string `json:"credited_tx,omitempty" db:"credited_tx"`
}

// InitiatePaymentRequest is the wire request for starting a mobile
// money top-up.
type InitiatePaymentRequest struct {
	Msisdn        string  `json:"msisdn" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gte=100"`
	Email         string  `json:"email" validate:"required,email"`
	Firstname     string  `json:"firstname" validate:"required"`
	Lastname      string  `json:"lastname" validate:"required"`
	PaymentSystem string  `json:"payment_system" validate:"required,oneof=airtelmoney moovmoney4"`
	ParticipantID string  `json:"participantId" validate:"required"`
	EventID       string  `json:"eventId" validate:"required"`
}
