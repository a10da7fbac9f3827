package handlers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/http/middleware"
	"campuswallet/backend/services/campus-service/internal/service"
)

// SignatureHeader carries the webhook HMAC.
const SignatureHeader = "X-Razorpay-Signature"

// PaymentHandlers serves wallet top-ups through the payment gateway.
type PaymentHandlers struct {
	payments *service.PaymentService
	logger   *zap.Logger
}

// NewPaymentHandlers returns handler.
func NewPaymentHandlers(payments *service.PaymentService, logger *zap.Logger) *PaymentHandlers {
	return &PaymentHandlers{payments: payments, logger: logger}
}

// AddMoney handles POST /wallet/add.
func (h *PaymentHandlers) AddMoney(w http.ResponseWriter, r *http.Request) {
	studentID, ok := middleware.StudentIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	var req struct {
		Amount money.Amount `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "create payment order", err)
		return
	}
	order, err := h.payments.CreateOrder(r.Context(), studentID, req.Amount)
	if err != nil {
		writeServiceError(w, h.logger, "create payment order", err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// Webhook handles POST /wallet/webhook. The signature covers the raw body, so it is read
// before any decoding. Retries of an already credited payment answer 200.
func (h *PaymentHandlers) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	result, err := h.payments.HandleWebhook(r.Context(), body, r.Header.Get(SignatureHeader))
	if err != nil {
		writeServiceError(w, h.logger, "payment webhook", err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Verify handles POST /wallet/verify.
func (h *PaymentHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	studentID, ok := middleware.StudentIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	var req service.VerifyInput
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "verify payment", err)
		return
	}
	result, err := h.payments.Verify(r.Context(), studentID, req)
	if err != nil {
		writeServiceError(w, h.logger, "verify payment", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
