package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/festpay/backend/internal/services"
)

type TransactionHandler struct {
	journal  *services.JournalService
	identity *services.IdentityService
	ledger   *services.LedgerService
}

func NewTransactionHandler(journal *services.JournalService, identity *services.IdentityService,
	ledger *services.LedgerService) *TransactionHandler {
	return &TransactionHandler{journal: journal, identity: identity, ledger: ledger}
}

// GetTransaction retrieves a journal record by ID
// @Summary Get transaction by ID
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.TransactionRecord
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{txId} [get]
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txId")

	rec, err := h.journal.GetByID(r.Context(), txID)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// ListTransactions lists a participant's journal records
// @Summary List transactions for a participant
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param participantId query string true "Participant ID"
// @Param limit query int false "Max records (default 50)"
// @Success 200 {object} object{transactions=[]models.TransactionRecord,count=int}
// @Router /transactions [get]
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participantId")
	if participantID == "" {
		services.SendErrorResponse(w, "participantId is required", http.StatusBadRequest, nil)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	records, err := h.journal.ListByParticipant(r.Context(), participantID, limit)
	if err != nil {
		services.SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": records,
		"count":        len(records),
	})
}

// BalanceEnquiry resolves a scanned code and returns the wallet state
// @Summary Balance enquiry by wallet code
// @Tags participants
// @Produce json
// @Security BearerAuth
// @Param code query string true "Scanned or typed wallet code"
// @Success 200 {object} object{responseCode=string,name=string,balance=number}
// @Failure 404 {object} services.ErrorResponse
// @Router /participants/balance-enquiry [get]
func (h *TransactionHandler) BalanceEnquiry(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")

	participant, err := h.identity.Resolve(r.Context(), code)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	balance, err := h.ledger.Balance(r.Context(), participant.ID)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"responseCode": "00",
		"name":         participant.Name,
		"balance":      balance,
	})
}
