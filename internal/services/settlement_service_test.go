package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/festpay/backend/internal/models"
)

func newTestSettlementService(db *sql.DB) *SettlementService {
	return NewSettlementService(
		NewIdentityService(db),
		NewLedgerService(db),
		NewStockService(db),
		NewJournalService(db),
		NewLocalLocker(),
		nil,
	)
}

func expectParticipantLookup(mock sqlmock.Sqlmock, id string, balance float64) {
	mock.ExpectQuery("SELECT id, name, email, balance, event_id, identity_code, status FROM participants WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "balance", "event_id", "identity_code", "status"}).
			AddRow(id, "Awa Diop", "awa@example.com", balance, "ev1", "FEST-001", "active"))
}

func expectBalanceMutation(mock sqlmock.Sqlmock, id string, before, after float64) {
	mock.ExpectQuery("SELECT balance FROM participants WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(before))
	mock.ExpectExec("UPDATE participants SET balance").
		WithArgs(after, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT balance FROM participants WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(after))
}

func TestSettlementService_Settle(t *testing.T) {
	ctx := context.Background()

	t.Run("sale debits balance, decrements stock and journals", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestSettlementService(db)

		expectParticipantLookup(mock, "p1", 10000)
		expectBalanceMutation(mock, "p1", 10000, 6000)
		mock.ExpectQuery("UPDATE products").
			WithArgs(2, "prod1").
			WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(3))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := service.Settle(ctx, "agent1", &models.SettlementRequest{
			Type:          models.TypeSale,
			Amount:        4000,
			ParticipantID: "p1",
			ProductID:     "prod1",
			Quantity:      2,
		})
		assert.NoError(t, err)
		assert.Equal(t, 10000.0, result.Record.BalanceBefore)
		assert.Equal(t, 6000.0, result.Record.BalanceAfter)
		assert.Equal(t, 6000.0, result.Participant.Balance)
		assert.Equal(t, "agent1", result.Record.AgentID)
		assert.Equal(t, models.StatusCompleted, result.Record.Status)
		assert.NotNil(t, result.Record.Quantity)
		assert.Equal(t, 2, *result.Record.Quantity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sale without product skips the stock counter", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestSettlementService(db)

		expectParticipantLookup(mock, "p1", 10000)
		expectBalanceMutation(mock, "p1", 10000, 8500)
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := service.Settle(ctx, "agent1", &models.SettlementRequest{
			Type:          models.TypeSale,
			Amount:        1500,
			ParticipantID: "p1",
		})
		assert.NoError(t, err)
		assert.Nil(t, result.Record.ProductID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("recharge credits the wallet", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestSettlementService(db)

		expectParticipantLookup(mock, "p1", 1000)
		expectBalanceMutation(mock, "p1", 1000, 6000)
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := service.Settle(ctx, "agent1", &models.SettlementRequest{
			Type:          models.TypeRecharge,
			Amount:        5000,
			ParticipantID: "p1",
		})
		assert.NoError(t, err)
		assert.Equal(t, 6000.0, result.Record.BalanceAfter)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refund debits the wallet to zero", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestSettlementService(db)

		expectParticipantLookup(mock, "p1", 3000)
		expectBalanceMutation(mock, "p1", 3000, 0)
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := service.Settle(ctx, "agent1", &models.SettlementRequest{
			Type:          models.TypeRefund,
			Amount:        3000,
			ParticipantID: "p1",
		})
		assert.NoError(t, err)
		assert.Equal(t, 0.0, result.Record.BalanceAfter)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds writes nothing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestSettlementService(db)

		expectParticipantLookup(mock, "p1", 1000)
		mock.ExpectQuery("SELECT balance FROM participants WHERE id").
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(1000.0))

		_, err = service.Settle(ctx, "agent1", &models.SettlementRequest{
			Type:          models.TypeSale,
			Amount:        5000,
			ParticipantID: "p1",
		})
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stock shortage reverses the balance debit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestSettlementService(db)

		expectParticipantLookup(mock, "p1", 10000)
		expectBalanceMutation(mock, "p1", 10000, 6000)
		mock.ExpectQuery("UPDATE products").
			WithArgs(1, "prod1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT stock FROM products WHERE id").
			WithArgs("prod1").
			WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(0))
		// Compensating credit puts the 4000 back.
		expectBalanceMutation(mock, "p1", 6000, 10000)

		_, err = service.Settle(ctx, "agent1", &models.SettlementRequest{
			Type:          models.TypeSale,
			Amount:        4000,
			ParticipantID: "p1",
			ProductID:     "prod1",
		})
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("journal failure reverses stock and balance", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestSettlementService(db)

		expectParticipantLookup(mock, "p1", 10000)
		expectBalanceMutation(mock, "p1", 10000, 6000)
		mock.ExpectQuery("UPDATE products").
			WithArgs(1, "prod1").
			WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(4))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnError(errors.New("disk full"))
		mock.ExpectExec(`UPDATE products SET stock = stock \+`).
			WithArgs(1, "prod1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectBalanceMutation(mock, "p1", 6000, 10000)

		_, err = service.Settle(ctx, "agent1", &models.SettlementRequest{
			Type:          models.TypeSale,
			Amount:        4000,
			ParticipantID: "p1",
			ProductID:     "prod1",
		})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrInconsistent)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed compensation escalates to inconsistency", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestSettlementService(db)

		expectParticipantLookup(mock, "p1", 10000)
		expectBalanceMutation(mock, "p1", 10000, 6000)
		mock.ExpectQuery("UPDATE products").
			WithArgs(1, "prod1").
			WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(4))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnError(errors.New("disk full"))
		mock.ExpectExec(`UPDATE products SET stock = stock \+`).
			WithArgs(1, "prod1").
			WillReturnError(errors.New("connection lost"))

		_, err = service.Settle(ctx, "agent1", &models.SettlementRequest{
			Type:          models.TypeSale,
			Amount:        4000,
			ParticipantID: "p1",
			ProductID:     "prod1",
		})
		assert.ErrorIs(t, err, ErrInconsistent)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("resolves by scanned code when no id given", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestSettlementService(db)

		mock.ExpectQuery("SELECT id, name, email, balance, event_id, identity_code, status FROM participants WHERE identity_code").
			WithArgs("FEST-001").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "balance", "event_id", "identity_code", "status"}).
				AddRow("p1", "Awa Diop", "awa@example.com", 10000.0, "ev1", "FEST-001", "active"))
		expectBalanceMutation(mock, "p1", 10000, 8500)
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := service.Settle(ctx, "agent1", &models.SettlementRequest{
			Type:   models.TypeSale,
			Amount: 1500,
			QRCode: "FEST-001",
		})
		assert.NoError(t, err)
		assert.Equal(t, "p1", result.Participant.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects invalid requests before touching storage", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := newTestSettlementService(db)

		invalid := []*models.SettlementRequest{
			{Type: "transfer", Amount: 1000, ParticipantID: "p1"},
			{Type: models.TypeSale, Amount: 0, ParticipantID: "p1"},
			{Type: models.TypeSale, Amount: -50, ParticipantID: "p1"},
			{Type: models.TypeSale, Amount: 1000},
			{Type: models.TypeSale, Amount: 1000, ParticipantID: "p1", QRCode: "FEST-001"},
		}
		for _, req := range invalid {
			_, err := service.Settle(ctx, "agent1", req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
