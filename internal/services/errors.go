package services

import (
	"errors"
	"net/http"
)

// Business outcomes of the settlement engine. Insufficient funds/stock
// and not-found are expected results, recovered into user-facing
// messages; verification and inconsistency errors are hard failures.
var (
	ErrInvalidCode         = errors.New("invalid identity code")
	ErrInvalidRequest      = errors.New("invalid settlement request")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrWriteVerification   = errors.New("balance write verification failed")
	ErrInconsistent        = errors.New("unrecoverable ledger inconsistency")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrBillRejected        = errors.New("bill rejected by provider")
	ErrQRUnavailable       = errors.New("wallet QR service unavailable")
	ErrInvalidMsisdn       = errors.New("msisdn does not match operator pattern")
	ErrStillPending        = errors.New("payment still pending")
	ErrAlreadyConfirmed    = errors.New("payment already confirmed")
)

// StatusForError maps a settlement-engine error to an HTTP status code.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidMsisdn):
		return http.StatusBadRequest
	case errors.Is(err, ErrParticipantNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrPaymentNotFound),
		errors.Is(err, ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrBillRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrAlreadyConfirmed):
		return http.StatusConflict
	case errors.Is(err, ErrStillPending):
		return http.StatusAccepted
	case errors.Is(err, ErrProviderUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrQRUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// MessageForError returns the user-visible message for an error.
// Insufficient funds/stock get actionable messages; inconsistency tells
// the operator to stop retrying; everything else is retry-safe generic.
func MessageForError(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "Insufficient wallet balance for this operation"
	case errors.Is(err, ErrInsufficientStock):
		return "Not enough stock for this product"
	case errors.Is(err, ErrParticipantNotFound):
		return "No active participant matches this code"
	case errors.Is(err, ErrProductNotFound):
		return "Product not found"
	case errors.Is(err, ErrPaymentNotFound):
		return "Payment not found"
	case errors.Is(err, ErrTransactionNotFound):
		return "Transaction not found"
	case errors.Is(err, ErrBillRejected):
		return "Payment was rejected by the mobile money operator"
	case errors.Is(err, ErrQRUnavailable):
		return "QR codes are temporarily unavailable, use the printed wallet code"
	case errors.Is(err, ErrInvalidCode):
		return "Scanned code is empty or unreadable"
	case errors.Is(err, ErrInvalidMsisdn):
		return "Phone number does not match the selected operator"
	case errors.Is(err, ErrAlreadyConfirmed):
		return "Payment was already confirmed"
	case errors.Is(err, ErrStillPending):
		return "Payment not settled yet, try again shortly"
	case errors.Is(err, ErrInconsistent):
		return "Operation left the ledger in an inconsistent state, contact support before retrying"
	default:
		return "Operation failed, it is safe to retry"
	}
}
