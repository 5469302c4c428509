package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/festpay/backend/internal/config"
	"github.com/festpay/backend/internal/models"
)

// mobileMoneyAgent is the agent recorded on journal entries produced by
// confirmed mobile-money top-ups.
const mobileMoneyAgent = "mobile-money"

// MobilePaymentService runs the two-phase mobile-money top-up:
// initiate creates a payment push at the provider and stores a pending
// payment; confirm transitions it exactly once and feeds a recharge
// into the settlement engine.
type MobilePaymentService struct {
	db         *sql.DB
	provider   EBillingClient
	settlement *SettlementService
	journal    *JournalService
	cfg        *config.MobileMoneyConfig
	airtelRe   *regexp.Regexp
	moovRe     *regexp.Regexp
}

func NewMobilePaymentService(db *sql.DB, provider EBillingClient, settlement *SettlementService,
	journal *JournalService, cfg *config.MobileMoneyConfig) *MobilePaymentService {
	return &MobilePaymentService{
		db:         db,
		provider:   provider,
		settlement: settlement,
		journal:    journal,
		cfg:        cfg,
		airtelRe:   regexp.MustCompile(cfg.AirtelPattern),
		moovRe:     regexp.MustCompile(cfg.MoovPattern),
	}
}

func (s *MobilePaymentService) validateMsisdn(msisdn, paymentSystem string) error {
	switch paymentSystem {
	case models.OperatorAirtel:
		if !s.airtelRe.MatchString(msisdn) {
			return ErrInvalidMsisdn
		}
	case models.OperatorMoov:
		if !s.moovRe.MatchString(msisdn) {
			return ErrInvalidMsisdn
		}
	default:
		return fmt.Errorf("%w: unknown payment system %q", ErrInvalidRequest, paymentSystem)
	}
	return nil
}

// Initiate validates the request, registers the payment push with the
// provider and persists the pending payment. No balance mutation
// happens here, and nothing is written before the provider accepts.
func (s *MobilePaymentService) Initiate(ctx context.Context, req *models.InitiatePaymentRequest) (*models.PendingPayment, error) {
	if req.Amount < s.cfg.MinAmount {
		return nil, fmt.Errorf("%w: amount below operator minimum %.0f", ErrInvalidRequest, s.cfg.MinAmount)
	}
	if err := s.validateMsisdn(req.Msisdn, req.PaymentSystem); err != nil {
		return nil, err
	}

	reference := fmt.Sprintf("%s-%s", s.cfg.ReferencePrefix, uuid.New().String())

	bill, err := s.provider.CreateBill(ctx, &BillRequest{
		Amount:        req.Amount,
		Reference:     reference,
		Msisdn:        req.Msisdn,
		Email:         req.Email,
		Firstname:     req.Firstname,
		Lastname:      req.Lastname,
		PaymentSystem: req.PaymentSystem,
		Description:   "Wallet top-up",
	})
	if err != nil {
		return nil, err
	}

	payment := &models.PendingPayment{
		ID:            uuid.New().String(),
		ParticipantID: req.ParticipantID,
		EventID:       req.EventID,
		Reference:     reference,
		BillID:        bill.BillID,
		Amount:        req.Amount,
		Msisdn:        req.Msisdn,
		PaymentSystem: req.PaymentSystem,
		Status:        models.PaymentPending,
		CreatedAt:     time.Now(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payments
		(id, participant_id, event_id, reference, bill_id, amount, msisdn, payment_system, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, payment.ID, payment.ParticipantID, payment.EventID, payment.Reference, payment.BillID,
		payment.Amount, payment.Msisdn, payment.PaymentSystem, payment.Status, payment.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store pending payment: %w", err)
	}

	log.Printf("[MOBILE_PAYMENT] Initiated %s bill %s for participant %s amount %.0f",
		payment.PaymentSystem, payment.BillID, payment.ParticipantID, payment.Amount)
	return payment, nil
}

// Get fetches a stored payment.
func (s *MobilePaymentService) Get(ctx context.Context, paymentID string) (*models.PendingPayment, error) {
	var p models.PendingPayment
	var confirmedAt sql.NullTime
	var creditedTx sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, participant_id, event_id, reference, bill_id, amount, msisdn, payment_system, status, created_at, confirmed_at, credited_tx
		FROM payments
		WHERE id = $1
	`, paymentID).Scan(&p.ID, &p.ParticipantID, &p.EventID, &p.Reference, &p.BillID, &p.Amount,
		&p.Msisdn, &p.PaymentSystem, &p.Status, &p.CreatedAt, &confirmedAt, &creditedTx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment read failed: %w", err)
	}

	if confirmedAt.Valid {
		p.ConfirmedAt = &confirmedAt.Time
	}
	if creditedTx.Valid {
		p.CreditedTx = &creditedTx.String
	}
	return &p, nil
}

// Confirm settles a pending payment at most once. The stored status is
// the idempotency gate: a payment already confirmed returns
// ErrAlreadyConfirmed with no further writes, however often the caller
// retries. The pending->confirmed transition is written BEFORE the
// wallet credit; a crash between the two leaves a confirmed-uncredited
// payment, which ReconcileUncredited detects and repairs. The opposite
// order would double-credit on retry.
func (s *MobilePaymentService) Confirm(ctx context.Context, paymentID string) (*models.TransactionRecord, error) {
	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case models.PaymentConfirmed:
		return nil, ErrAlreadyConfirmed
	case models.PaymentFailed:
		return nil, fmt.Errorf("payment %s already failed", paymentID)
	}

	status, err := s.provider.GetBillStatus(ctx, payment.BillID)
	if err != nil {
		if errors.Is(err, ErrBillRejected) {
			// Definitive provider answer: the bill will never settle.
			s.markFailed(ctx, paymentID)
			return nil, err
		}
		if errors.Is(err, ErrProviderUnavailable) {
			// The payer may simply not have approved yet; do not fail
			// the flow on a provider timeout.
			return nil, ErrStillPending
		}
		return nil, err
	}
	if status.State != billSettledState {
		return nil, ErrStillPending
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = 'confirmed', confirmed_at = NOW() WHERE id = $1 AND status = 'pending'
	`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("confirm transition failed: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// A concurrent confirm won the gate.
		return nil, ErrAlreadyConfirmed
	}

	rec, err := s.credit(ctx, payment)
	if err != nil {
		log.Printf("[MOBILE_PAYMENT] Payment %s confirmed but credit failed, awaiting reconciliation: %v", paymentID, err)
		return nil, err
	}
	return rec, nil
}

// markFailed moves a pending payment to failed, best effort; the status
// guard keeps a concurrent confirm from being overwritten.
func (s *MobilePaymentService) markFailed(ctx context.Context, paymentID string) {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = 'failed' WHERE id = $1 AND status = 'pending'
	`, paymentID); err != nil {
		log.Printf("[MOBILE_PAYMENT] Failed to mark payment %s failed: %v", paymentID, err)
	}
}

func (s *MobilePaymentService) credit(ctx context.Context, payment *models.PendingPayment) (*models.TransactionRecord, error) {
	res, err := s.settlement.Settle(ctx, mobileMoneyAgent, &models.SettlementRequest{
		Type:          models.TypeRecharge,
		Amount:        payment.Amount,
		ParticipantID: payment.ParticipantID,
		Reference:     payment.Reference,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE payments SET credited_tx = $1 WHERE id = $2
	`, res.Record.ID, payment.ID); err != nil {
		log.Printf("[MOBILE_PAYMENT] Failed to mark payment %s credited with tx %s: %v", payment.ID, res.Record.ID, err)
	}

	return res.Record, nil
}

// ReconcileUncredited sweeps payments stuck in the crash window between
// confirm-mark and wallet credit, and re-runs the credit path for each.
// A recharge already journaled under the payment's reference means the
// credit itself landed and only the credited_tx mark was lost, so the
// sweep re-links the record instead of crediting again.
// Returns the number of payments repaired.
func (s *MobilePaymentService) ReconcileUncredited(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, participant_id, event_id, reference, bill_id, amount, msisdn, payment_system, status, created_at
		FROM payments
		WHERE status = 'confirmed' AND credited_tx IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("reconciliation scan failed: %w", err)
	}
	defer rows.Close()

	var stuck []models.PendingPayment
	for rows.Next() {
		var p models.PendingPayment
		if err := rows.Scan(&p.ID, &p.ParticipantID, &p.EventID, &p.Reference, &p.BillID,
			&p.Amount, &p.Msisdn, &p.PaymentSystem, &p.Status, &p.CreatedAt); err != nil {
			return 0, fmt.Errorf("reconciliation scan failed: %w", err)
		}
		stuck = append(stuck, p)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reconciliation scan failed: %w", err)
	}

	repaired := 0
	for i := range stuck {
		payment := &stuck[i]

		rec, err := s.journal.FindByReference(ctx, payment.Reference)
		switch {
		case err == nil:
			if _, err := s.db.ExecContext(ctx, `
				UPDATE payments SET credited_tx = $1 WHERE id = $2
			`, rec.ID, payment.ID); err != nil {
				log.Printf("[MOBILE_PAYMENT] Reconciliation relink failed for payment %s tx %s: %v", payment.ID, rec.ID, err)
				continue
			}
			log.Printf("[MOBILE_PAYMENT] Reconciliation relinked payment %s to existing tx %s", payment.ID, rec.ID)
		case errors.Is(err, ErrTransactionNotFound):
			if _, err := s.credit(ctx, payment); err != nil {
				log.Printf("[MOBILE_PAYMENT] Reconciliation credit failed for payment %s: %v", payment.ID, err)
				continue
			}
		default:
			log.Printf("[MOBILE_PAYMENT] Reconciliation lookup failed for payment %s: %v", payment.ID, err)
			continue
		}
		repaired++
	}
	return repaired, nil
}
