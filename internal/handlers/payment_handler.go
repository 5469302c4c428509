package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/festpay/backend/internal/models"
	"github.com/festpay/backend/internal/services"
)

type PaymentHandler struct {
	service   *services.MobilePaymentService
	validator *services.ValidationHelper
}

func NewPaymentHandler(service *services.MobilePaymentService) *PaymentHandler {
	return &PaymentHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// InitiatePayment starts a mobile money top-up
// @Summary Initiate a mobile money payment
// @Description Register a payment push with the mobile money operator
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.InitiatePaymentRequest true "Payment request"
// @Success 201 {object} models.PendingPayment
// @Failure 400 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /payments/initiate [post]
func (h *PaymentHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req models.InitiatePaymentRequest

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

	payment, err := h.service.Initiate(r.Context(), &req)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(payment)
}

// ConfirmPayment finalizes a mobile money top-up
// @Summary Confirm a mobile money payment
// @Description Check the bill at the operator and credit the wallet exactly once
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param paymentId path string true "Payment ID"
// @Success 200 {object} object{status=string,transaction=models.TransactionRecord}
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /payments/{paymentId}/confirm [post]
func (h *PaymentHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	rec, err := h.service.Confirm(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, services.ErrStillPending) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]any{
				"status":  models.PaymentPending,
				"message": "Payment not yet approved by the payer",
			})
			return
		}
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      models.PaymentConfirmed,
		"transaction": rec,
	})
}

// GetPayment fetches a stored payment
// @Summary Get a payment by ID
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param paymentId path string true "Payment ID"
// @Success 200 {object} models.PendingPayment
// @Failure 404 {object} services.ErrorResponse
// @Router /payments/{paymentId} [get]
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	payment, err := h.service.Get(r.Context(), paymentID)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payment)
}
