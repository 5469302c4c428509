package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/festpay/backend/internal/services"
)

type QRHandler struct {
	walletQR  *services.WalletQRService
	identity  *services.IdentityService
	validator *services.ValidationHelper
}

func NewQRHandler(walletQR *services.WalletQRService, identity *services.IdentityService) *QRHandler {
	return &QRHandler{
		walletQR:  walletQR,
		identity:  identity,
		validator: services.NewValidationHelper(),
	}
}

type generateQRRequest struct {
	ParticipantID string `json:"participantId" validate:"required"`
}

type processQRRequest struct {
	QRData string `json:"qrData" validate:"required"`
}

// GenerateQR renders a one-time wallet QR code
// @Summary Generate a wallet QR code
// @Description Produce a short-lived one-time QR token for a participant's wallet
// @Tags qr
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body generateQRRequest true "QR generation request"
// @Success 201 {object} object{token=string,qrImage=string}
// @Failure 404 {object} services.ErrorResponse
// @Router /qr/generate [post]
func (h *QRHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	var req generateQRRequest

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

	token, image, err := h.walletQR.Generate(r.Context(), req.ParticipantID)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"token":   token,
		"qrImage": image,
	})
}

// ProcessQR resolves a scanned wallet QR token
// @Summary Resolve a scanned QR token
// @Description Consume a one-time token and return the wallet it points at
// @Tags qr
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body processQRRequest true "Scanned QR payload"
// @Success 200 {object} object{participantId=string,name=string,balance=number}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /qr/process [post]
func (h *QRHandler) ProcessQR(w http.ResponseWriter, r *http.Request) {
	var req processQRRequest

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

	identityCode, err := h.walletQR.ResolveScan(r.Context(), req.QRData)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	participant, err := h.identity.Resolve(r.Context(), identityCode)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"participantId": participant.ID,
		"name":          participant.Name,
		"balance":       participant.Balance,
	})
}
