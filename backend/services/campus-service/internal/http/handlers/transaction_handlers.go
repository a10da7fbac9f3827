package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/http/middleware"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/service"
)

const defaultListLimit = 200

// TransactionHandlers serves transaction records and checkout.
type TransactionHandlers struct {
	transactions *service.TransactionService
	wallet       *service.WalletService
	commerce     *service.CommerceService
	logger       *zap.Logger
}

// NewTransactionHandlers returns handler.
func NewTransactionHandlers(transactions *service.TransactionService, wallet *service.WalletService, commerce *service.CommerceService, logger *zap.Logger) *TransactionHandlers {
	return &TransactionHandlers{transactions: transactions, wallet: wallet, commerce: commerce, logger: logger}
}

// studentRef names a student by id, roll number or card.
type studentRef struct {
	StudentID string `json:"studentId"`
	RollNo    string `json:"rollNo"`
	RFIDUID   string `json:"rfid_uid"`
}

func (h *TransactionHandlers) resolve(r *http.Request, ref studentRef) (string, error) {
	if id := strings.TrimSpace(ref.StudentID); id != "" {
		return id, nil
	}
	lookup := service.StudentLookup{RollNo: strings.TrimSpace(ref.RollNo), RFIDUID: strings.TrimSpace(ref.RFIDUID)}
	if lookup.Empty() {
		return "", invalid("studentId, rollNo or rfid_uid is required")
	}
	student, err := h.commerce.ResolveStudent(r.Context(), lookup)
	if err != nil {
		return "", err
	}
	return student.ID, nil
}

type createTransactionRequest struct {
	studentRef
	ItemID    string        `json:"itemId"`
	Module    models.Module `json:"module"`
	Action    models.Action `json:"action"`
	Amount    *money.Amount `json:"amount"`
	Status    models.Status `json:"status"`
	Notes     string        `json:"notes"`
	DueDate   *time.Time    `json:"dueDate"`
	ReceiptID string        `json:"receiptId"`
}

type updateTransactionRequest struct {
	Status *models.Status `json:"status"`
	Notes  *string        `json:"notes"`
}

type checkoutRequest struct {
	studentRef
	Module    models.Module          `json:"module"`
	Items     []service.CheckoutLine `json:"items"`
	ReceiptID string                 `json:"receiptId"`
	Notes     string                 `json:"notes"`
}

// List handles GET /transactions. Students only see their own records.
func (h *TransactionHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		writeServiceError(w, h.logger, "list transactions", err)
		return
	}
	filter := models.TransactionFilter{
		StudentID: strings.TrimSpace(q.Get("studentId")),
		Module:    models.Module(strings.TrimSpace(q.Get("module"))),
		Status:    models.Status(strings.TrimSpace(q.Get("status"))),
		Action:    models.Action(strings.TrimSpace(q.Get("action"))),
		ReceiptID: strings.TrimSpace(q.Get("receiptId")),
		Limit:     limit,
	}
	if studentID, ok := middleware.StudentIDFromContext(r.Context()); ok {
		filter.StudentID = studentID
	}

	txs, err := h.transactions.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": txs})
}

// Get handles GET /transactions/{id}.
func (h *TransactionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.transactions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "get transaction", err)
		return
	}
	if studentID, ok := middleware.StudentIDFromContext(r.Context()); ok && tx.StudentID != studentID {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// Create handles POST /transactions.
func (h *TransactionHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "create transaction", err)
		return
	}
	studentID, err := h.resolve(r, req.studentRef)
	if err != nil {
		writeServiceError(w, h.logger, "create transaction", err)
		return
	}
	tx, err := h.transactions.Create(r.Context(), service.CreateTransactionInput{
		StudentID: studentID,
		ItemID:    strings.TrimSpace(req.ItemID),
		Module:    req.Module,
		Action:    req.Action,
		Amount:    req.Amount,
		Status:    req.Status,
		Notes:     req.Notes,
		DueDate:   req.DueDate,
		ReceiptID: strings.TrimSpace(req.ReceiptID),
	})
	if err != nil {
		writeServiceError(w, h.logger, "create transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// Checkout handles POST /transactions/checkout.
func (h *TransactionHandlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "checkout", err)
		return
	}
	studentID, err := h.resolve(r, req.studentRef)
	if err != nil {
		writeServiceError(w, h.logger, "checkout", err)
		return
	}
	result, err := h.wallet.Checkout(r.Context(), service.CheckoutInput{
		StudentID: studentID,
		Module:    req.Module,
		Lines:     req.Items,
		ReceiptID: strings.TrimSpace(req.ReceiptID),
		Notes:     req.Notes,
	})
	if err != nil {
		writeServiceError(w, h.logger, "checkout", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Update handles PUT /transactions/{id}.
func (h *TransactionHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req updateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "update transaction", err)
		return
	}
	tx, err := h.transactions.Update(r.Context(), r.PathValue("id"), service.UpdateTransactionInput{
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		writeServiceError(w, h.logger, "update transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// Delete handles DELETE /transactions/{id}.
func (h *TransactionHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.transactions.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, "delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
