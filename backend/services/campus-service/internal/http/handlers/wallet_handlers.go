package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/http/middleware"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/service"
)

const walletHistoryLimit = 50

// WalletHandlers serves balances and admin adjustments.
type WalletHandlers struct {
	wallet *service.WalletService
	logger *zap.Logger
}

// NewWalletHandlers returns handler.
func NewWalletHandlers(wallet *service.WalletService, logger *zap.Logger) *WalletHandlers {
	return &WalletHandlers{wallet: wallet, logger: logger}
}

type adjustRequest struct {
	StudentID string       `json:"studentId"`
	Amount    money.Amount `json:"amount"`
}

type walletView struct {
	StudentID string                     `json:"studentId"`
	Balance   money.Amount               `json:"balance"`
	History   []models.WalletTransaction `json:"history"`
}

// Deposit handles POST /admin/wallet/deposit.
func (h *WalletHandlers) Deposit(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "deposit", err)
		return
	}
	if req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "studentId is required")
		return
	}
	result, err := h.wallet.Deposit(r.Context(), req.StudentID, req.Amount)
	if err != nil {
		writeServiceError(w, h.logger, "deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Withdraw handles POST /admin/wallet/withdraw.
func (h *WalletHandlers) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "withdraw", err)
		return
	}
	if req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "studentId is required")
		return
	}
	result, err := h.wallet.Withdraw(r.Context(), req.StudentID, req.Amount)
	if err != nil {
		writeServiceError(w, h.logger, "withdraw", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Student handles GET /admin/wallet/{studentId}.
func (h *WalletHandlers) Student(w http.ResponseWriter, r *http.Request) {
	h.writeWallet(w, r, r.PathValue("studentId"))
}

// Mine handles GET /wallet for the calling student.
func (h *WalletHandlers) Mine(w http.ResponseWriter, r *http.Request) {
	studentID, ok := middleware.StudentIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	h.writeWallet(w, r, studentID)
}

func (h *WalletHandlers) writeWallet(w http.ResponseWriter, r *http.Request, studentID string) {
	limit, err := queryInt(r, "limit", walletHistoryLimit)
	if err != nil {
		writeServiceError(w, h.logger, "wallet", err)
		return
	}
	balance, err := h.wallet.Balance(r.Context(), studentID)
	if err != nil {
		writeServiceError(w, h.logger, "wallet", err)
		return
	}
	history, err := h.wallet.History(r.Context(), studentID, limit)
	if err != nil {
		writeServiceError(w, h.logger, "wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, walletView{StudentID: studentID, Balance: balance, History: history})
}

// Reconcile handles GET /admin/wallet/reconcile. It lists wallets whose balance differs
// from their ledger, or checks one wallet when studentId is given.
func (h *WalletHandlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	if studentID := r.URL.Query().Get("studentId"); studentID != "" {
		rec, err := h.wallet.Reconcile(r.Context(), studentID)
		if err != nil {
			writeServiceError(w, h.logger, "reconcile", err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}
	drifted, err := h.wallet.ReconcileAll(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "reconcile", err)
		return
	}
	if drifted == nil {
		drifted = []service.Reconciliation{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"drifted": drifted})
}
