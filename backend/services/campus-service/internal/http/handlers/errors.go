package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"campuswallet/backend/services/campus-service/internal/service"
)

// statusFor maps service errors onto HTTP status codes and client messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusBadRequest, "Insufficient wallet balance"
	case errors.Is(err, service.ErrInvalidAmount):
		return http.StatusBadRequest, "amount must be a positive number"
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, clientMessage(err)
	case errors.Is(err, service.ErrInactiveStudent):
		return http.StatusBadRequest, "student is inactive"
	case errors.Is(err, service.ErrStudentNotFound):
		return http.StatusNotFound, "student not found"
	case errors.Is(err, service.ErrItemNotFound):
		return http.StatusNotFound, "item not found"
	case errors.Is(err, service.ErrTransactionNotFound):
		return http.StatusNotFound, "transaction not found"
	case errors.Is(err, service.ErrOutOfStock):
		return http.StatusConflict, "item out of stock"
	case errors.Is(err, service.ErrStaleApproval):
		return http.StatusConflict, "transaction is not pending"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, clientMessage(err)
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid signature"
	case errors.Is(err, service.ErrRFIDMismatch):
		return http.StatusForbidden, "rfid does not belong to student"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNoScan):
		return http.StatusNotFound, "no card scanned"
	case errors.Is(err, service.ErrPaymentUnavailable):
		return http.StatusServiceUnavailable, "payment gateway unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// clientMessage flattens a joined or wrapped validation error into one line.
func clientMessage(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", ": ")
}

func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
	}
	writeError(w, status, msg)
}
