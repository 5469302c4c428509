package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/festpay/backend/internal/models"
)

// JournalService is the append-only record of every settled operation.
// Records are never mutated after creation, except the status of a
// pending mobile-money record being finalized exactly once.
type JournalService struct {
	db *sql.DB
}

func NewJournalService(db *sql.DB) *JournalService {
	return &JournalService{db: db}
}

// Append inserts a new transaction record, assigning an ID and
// timestamp if not already set.
func (s *JournalService) Append(ctx context.Context, rec *models.TransactionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, type, amount, participant_id, product_id, quantity, agent_id, balance_before, balance_after, status, created_at, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, rec.ID, rec.Type, rec.Amount, rec.ParticipantID, rec.ProductID, rec.Quantity,
		rec.AgentID, rec.BalanceBefore, rec.BalanceAfter, rec.Status, rec.CreatedAt,
		sql.NullString{String: rec.Reference, Valid: rec.Reference != ""})
	if err != nil {
		return fmt.Errorf("journal append failed: %w", err)
	}
	return nil
}

// FinalizePending moves a pending record to its terminal status. The
// status guard makes the transition single-shot.
func (s *JournalService) FinalizePending(ctx context.Context, txID, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET status = $1 WHERE id = $2 AND status = 'pending'
	`, status, txID)
	if err != nil {
		return fmt.Errorf("journal finalize failed: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("transaction %s is not pending", txID)
	}
	return nil
}

// GetByID fetches a single journal record.
func (s *JournalService) GetByID(ctx context.Context, txID string) (*models.TransactionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, amount, participant_id, product_id, quantity, agent_id, balance_before, balance_after, status, created_at, reference
		FROM transactions
		WHERE id = $1
	`, txID)

	rec, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("journal read failed: %w", err)
	}
	return rec, nil
}

// FindByReference looks up the journal record carrying the given
// payment reference. Used by reconciliation to detect a credit that was
// journaled but never marked on the payment.
func (s *JournalService) FindByReference(ctx context.Context, reference string) (*models.TransactionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, amount, participant_id, product_id, quantity, agent_id, balance_before, balance_after, status, created_at, reference
		FROM transactions
		WHERE reference = $1
	`, reference)

	rec, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("journal reference lookup failed: %w", err)
	}
	return rec, nil
}

// ListByParticipant returns the most recent records for a participant.
func (s *JournalService) ListByParticipant(ctx context.Context, participantID string, limit int) ([]models.TransactionRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, amount, participant_id, product_id, quantity, agent_id, balance_before, balance_after, status, created_at, reference
		FROM transactions
		WHERE participant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, participantID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal list failed: %w", err)
	}
	defer rows.Close()

	records := []models.TransactionRecord{}
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("journal list scan failed: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	var productID sql.NullString
	var quantity sql.NullInt64
	var agentID sql.NullString
	var reference sql.NullString

	err := row.Scan(&rec.ID, &rec.Type, &rec.Amount, &rec.ParticipantID, &productID,
		&quantity, &agentID, &rec.BalanceBefore, &rec.BalanceAfter, &rec.Status, &rec.CreatedAt, &reference)
	if err != nil {
		return nil, err
	}

	if reference.Valid {
		rec.Reference = reference.String
	}

	if productID.Valid {
		rec.ProductID = &productID.String
	}
	if quantity.Valid {
		q := int(quantity.Int64)
		rec.Quantity = &q
	}
	if agentID.Valid {
		rec.AgentID = agentID.String
	}
	return &rec, nil
}
