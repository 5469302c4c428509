package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/festpay/backend/internal/services"
)

type PayoutHandler struct {
	service   *services.PayoutService
	validator *services.ValidationHelper
}

func NewPayoutHandler(service *services.PayoutService) *PayoutHandler {
	return &PayoutHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// ExportPayout exports completed sales as ISO 20022 credit transfers
// @Summary Export organizer payout documents
// @Description Convert an event's completed sales into pacs.008 XML documents
// @Tags payouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.PayoutExportRequest true "Payout export request"
// @Success 200 {object} object{documents=[]string,count=int}
// @Failure 400 {object} services.ErrorResponse
// @Router /payouts/export [post]
func (h *PayoutHandler) ExportPayout(w http.ResponseWriter, r *http.Request) {
	var req services.PayoutExportRequest

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

	docs, err := h.service.ExportEvent(r.Context(), &req)
	if err != nil {
		services.SendErrorResponse(w, "Payout export failed", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}
