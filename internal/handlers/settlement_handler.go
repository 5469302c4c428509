package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/festpay/backend/internal/middleware"
	"github.com/festpay/backend/internal/models"
	"github.com/festpay/backend/internal/services"
)

type SettlementHandler struct {
	service   *services.SettlementService
	validator *services.ValidationHelper
}

func NewSettlementHandler(service *services.SettlementService) *SettlementHandler {
	return &SettlementHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// CreateSettlement settles a sale, recharge or refund
// @Summary Settle an operation
// @Description Apply a sale, recharge or refund to a participant's wallet
// @Tags settlements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SettlementRequest true "Settlement request"
// @Success 201 {object} models.SettlementResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /settlements [post]
func (h *SettlementHandler) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.AgentID(r)
	if agentID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req models.SettlementRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.Settle(r.Context(), agentID, &req)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.SettlementResponse{
		ID:         result.Record.ID,
		Type:       result.Record.Type,
		Amount:     result.Record.Amount,
		NewBalance: result.Record.BalanceAfter,
		Participant: models.ParticipantSnapshot{
			Name:    result.Participant.Name,
			Balance: result.Participant.Balance,
		},
	})
}
