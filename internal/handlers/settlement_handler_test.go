package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/festpay/backend/internal/middleware"
	"github.com/festpay/backend/internal/models"
	"github.com/festpay/backend/internal/services"
)

func newSettlementTestHandler(db *sql.DB) *SettlementHandler {
	service := services.NewSettlementService(
		services.NewIdentityService(db),
		services.NewLedgerService(db),
		services.NewStockService(db),
		services.NewJournalService(db),
		services.NewLocalLocker(),
		nil,
	)
	return NewSettlementHandler(service)
}

func settlementRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/settlements", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	ctx := context.WithValue(req.Context(), middleware.AgentIDKey, "agent1")
	return req.WithContext(ctx)
}

func TestSettlementHandler_CreateSettlement(t *testing.T) {
	t.Run("settles a sale and echoes the new balance", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		handler := newSettlementTestHandler(db)

		mock.ExpectQuery("SELECT id, name, email, balance, event_id, identity_code, status FROM participants WHERE id").
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "balance", "event_id", "identity_code", "status"}).
				AddRow("p1", "Awa Diop", "awa@example.com", 10000.0, "ev1", "FEST-001", "active"))
		mock.ExpectQuery("SELECT balance FROM participants WHERE id").
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(10000.0))
		mock.ExpectExec("UPDATE participants SET balance").
			WithArgs(6000.0, "p1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT balance FROM participants WHERE id").
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(6000.0))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		handler.CreateSettlement(w, settlementRequest(t, `{"type":"vente","amount":4000,"participantId":"p1"}`))

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp models.SettlementResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, models.TypeSale, resp.Type)
		assert.Equal(t, 6000.0, resp.NewBalance)
		assert.Equal(t, "Awa Diop", resp.Participant.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing agent context is unauthorized", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		handler := newSettlementTestHandler(db)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/settlements",
			bytes.NewBufferString(`{"type":"vente","amount":4000,"participantId":"p1"}`))
		w := httptest.NewRecorder()
		handler.CreateSettlement(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		handler := newSettlementTestHandler(db)

		w := httptest.NewRecorder()
		handler.CreateSettlement(w, settlementRequest(t, `{"type":`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		handler := newSettlementTestHandler(db)

		w := httptest.NewRecorder()
		handler.CreateSettlement(w, settlementRequest(t,
			`{"type":"vente","amount":4000,"participantId":"p1","discount":10}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("trailing data after the object is rejected", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		handler := newSettlementTestHandler(db)

		w := httptest.NewRecorder()
		handler.CreateSettlement(w, settlementRequest(t,
			`{"type":"vente","amount":4000,"participantId":"p1"}{"amount":1}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation failure reports field details", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		handler := newSettlementTestHandler(db)

		w := httptest.NewRecorder()
		handler.CreateSettlement(w, settlementRequest(t, `{"type":"transfer","amount":4000,"participantId":"p1"}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp services.ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp.Details, "Type")
	})

	t.Run("insufficient funds maps to unprocessable entity", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		handler := newSettlementTestHandler(db)

		mock.ExpectQuery("SELECT id, name, email, balance, event_id, identity_code, status FROM participants WHERE id").
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "balance", "event_id", "identity_code", "status"}).
				AddRow("p1", "Awa Diop", "awa@example.com", 1000.0, "ev1", "FEST-001", "active"))
		mock.ExpectQuery("SELECT balance FROM participants WHERE id").
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(1000.0))

		w := httptest.NewRecorder()
		handler.CreateSettlement(w, settlementRequest(t, `{"type":"vente","amount":5000,"participantId":"p1"}`))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var resp services.ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp.Error, "balance")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
