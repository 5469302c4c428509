package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"

	"github.com/festpay/backend/internal/models"
)

// operationSign maps an operation type to the sign of its balance
// delta. A refund debits the wallet: cash is handed back to the
// participant, so value leaves the digital balance.
var operationSign = map[string]float64{
	models.TypeSale:     -1,
	models.TypeRefund:   -1,
	models.TypeRecharge: +1,
}

// Forward steps of a settlement attempt. Compensation only ever
// reverses a strict prefix of completed steps, newest first.
type settlementState int

const (
	stateStarted settlementState = iota
	stateBalanceApplied
	stateStockApplied
	stateJournaled
)

// SettlementResult pairs the journaled record with the participant it
// applied to, balance already refreshed.
type SettlementResult struct {
	Record      *models.TransactionRecord
	Participant *models.Participant
}

// SettlementService orchestrates identity resolution, the balance
// ledger, the stock counter and the journal into one logical operation
// per request. There is no multi-document transaction underneath:
// consistency comes from strict step ordering, verification reads and
// backward compensation.
type SettlementService struct {
	identity *IdentityService
	ledger   *LedgerService
	stock    *StockService
	journal  *JournalService
	locker   Locker
	redis    *redis.Client
}

func NewSettlementService(identity *IdentityService, ledger *LedgerService, stock *StockService,
	journal *JournalService, locker Locker, redisClient *redis.Client) *SettlementService {
	return &SettlementService{
		identity: identity,
		ledger:   ledger,
		stock:    stock,
		journal:  journal,
		locker:   locker,
		redis:    redisClient,
	}
}

// Settle durably applies a sale, recharge or refund. Balance mutation
// always precedes stock mutation, which always precedes the journal
// append. The whole sequence runs under a per-participant lock so two
// agents scanning the same wallet cannot interleave.
func (s *SettlementService) Settle(ctx context.Context, agentID string, req *models.SettlementRequest) (*SettlementResult, error) {
	sign, ok := operationSign[req.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown operation type %q", ErrInvalidRequest, req.Type)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if (req.ParticipantID == "") == (req.QRCode == "") {
		return nil, fmt.Errorf("%w: exactly one of participantId and qrCode must be set", ErrInvalidRequest)
	}

	var participant *models.Participant
	var err error
	if req.QRCode != "" {
		participant, err = s.identity.Resolve(ctx, req.QRCode)
	} else {
		participant, err = s.identity.LookupByID(ctx, req.ParticipantID)
	}
	if err != nil {
		return nil, err
	}

	var rec *models.TransactionRecord
	err = s.locker.WithLock(ctx, "lock:participant:"+participant.ID, func(ctx context.Context) error {
		var settleErr error
		rec, settleErr = s.settleLocked(ctx, agentID, participant, req, sign)
		return settleErr
	})
	if err != nil {
		return nil, err
	}

	participant.Balance = rec.BalanceAfter
	s.queueAudit(rec)

	return &SettlementResult{Record: rec, Participant: participant}, nil
}

func (s *SettlementService) settleLocked(ctx context.Context, agentID string,
	participant *models.Participant, req *models.SettlementRequest, sign float64) (*models.TransactionRecord, error) {

	delta := sign * req.Amount
	state := stateStarted

	before, after, err := s.ledger.ApplyDelta(ctx, participant.ID, delta)
	if err != nil {
		// Nothing written yet, nothing to compensate.
		return nil, err
	}
	state = stateBalanceApplied

	quantity := 0
	if req.Type == models.TypeSale && req.ProductID != "" {
		quantity = req.Quantity
		if quantity < 1 {
			quantity = 1
		}
		if _, err := s.stock.Decrement(ctx, req.ProductID, quantity); err != nil {
			return nil, s.compensate(ctx, state, participant.ID, delta, req.ProductID, quantity, err)
		}
		state = stateStockApplied
	}

	rec := &models.TransactionRecord{
		Type:          req.Type,
		Amount:        req.Amount,
		ParticipantID: participant.ID,
		AgentID:       agentID,
		BalanceBefore: before,
		BalanceAfter:  after,
		Status:        models.StatusCompleted,
		Reference:     req.Reference,
	}
	if quantity > 0 {
		productID := req.ProductID
		rec.ProductID = &productID
		rec.Quantity = &quantity
	}

	if err := s.journal.Append(ctx, rec); err != nil {
		return nil, s.compensate(ctx, state, participant.ID, delta, req.ProductID, quantity, err)
	}

	return rec, nil
}

// compensate reverses completed forward steps in reverse order. A
// failed compensating write means the ledger may be inconsistent; that
// is escalated as ErrInconsistent with full state logged, never
// swallowed.
func (s *SettlementService) compensate(ctx context.Context, state settlementState,
	participantID string, delta float64, productID string, quantity int, cause error) error {

	if state >= stateStockApplied {
		if err := s.stock.Restore(ctx, productID, quantity); err != nil {
			log.Printf("[SETTLEMENT] UNRECOVERABLE: stock restore failed for product %s qty %d participant %s delta %.2f, cause=%v, restore=%v",
				productID, quantity, participantID, delta, cause, err)
			return fmt.Errorf("%w: stock restore failed after %v: %v", ErrInconsistent, cause, err)
		}
	}

	if state >= stateBalanceApplied {
		if _, _, err := s.ledger.ApplyDelta(ctx, participantID, -delta); err != nil {
			log.Printf("[SETTLEMENT] UNRECOVERABLE: balance reversal of %.2f failed for participant %s, cause=%v, reversal=%v",
				-delta, participantID, cause, err)
			return fmt.Errorf("%w: balance reversal failed after %v: %v", ErrInconsistent, cause, err)
		}
	}

	return cause
}

// queueAudit pushes the settled record onto the Redis audit queue,
// best effort, after the journal append.
func (s *SettlementService) queueAudit(rec *models.TransactionRecord) {
	if s.redis == nil {
		return
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.redis.RPush(context.Background(), "settlement_audit", data).Err(); err != nil {
		log.Printf("[SETTLEMENT] Failed to queue audit record %s: %v", rec.ID, err)
	}
}
