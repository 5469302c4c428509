package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
)

// balanceTolerance absorbs floating accumulation noise when the
// verification re-read is compared against the computed balance.
const balanceTolerance = 0.01

// LedgerService owns the single mutable balance counter per
// participant. The backing store offers no multi-document transaction
// on this path, so every mutation is read -> compute -> write ->
// re-read verify; callers compensate on failure.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// Balance returns the current wallet balance.
func (s *LedgerService) Balance(ctx context.Context, participantID string) (float64, error) {
	var balance float64
	err := s.db.QueryRowContext(ctx, `
		SELECT balance FROM participants WHERE id = $1
	`, participantID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrParticipantNotFound
		}
		return 0, fmt.Errorf("balance read failed: %w", err)
	}
	return balance, nil
}

// ApplyDelta mutates the balance by a signed amount and returns the
// before/after pair. Debits that would take the balance below zero fail
// with ErrInsufficientFunds and perform no write. A verification
// mismatch after the write is ErrWriteVerification; the caller must
// abort and compensate the enclosing settlement.
func (s *LedgerService) ApplyDelta(ctx context.Context, participantID string, delta float64) (float64, float64, error) {
	before, err := s.Balance(ctx, participantID)
	if err != nil {
		return 0, 0, err
	}

	after := before + delta
	if after < -balanceTolerance {
		return before, before, ErrInsufficientFunds
	}
	if after < 0 {
		// Boundary debit landed within tolerance of zero.
		after = 0
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE participants SET balance = $1, updated_at = NOW() WHERE id = $2
	`, after, participantID)
	if err != nil {
		return before, before, fmt.Errorf("balance write failed: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return before, before, ErrParticipantNotFound
	}

	verified, err := s.Balance(ctx, participantID)
	if err != nil {
		return before, after, fmt.Errorf("balance verification read failed: %w", err)
	}
	if math.Abs(verified-after) > balanceTolerance {
		log.Printf("[LEDGER] Write verification mismatch for participant %s: expected %.2f, read %.2f",
			participantID, after, verified)
		return before, after, ErrWriteVerification
	}

	return before, after, nil
}
