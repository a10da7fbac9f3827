package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"campuswallet/backend/services/campus-service/internal/http/middleware"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/service"
)

// CommerceHandlers serves read-only module views.
type CommerceHandlers struct {
	commerce *service.CommerceService
	logger   *zap.Logger
}

// NewCommerceHandlers returns handler.
func NewCommerceHandlers(commerce *service.CommerceService, logger *zap.Logger) *CommerceHandlers {
	return &CommerceHandlers{commerce: commerce, logger: logger}
}

// subject returns the student the request is about: the caller for student tokens,
// otherwise the one named in the query. ok is false when an admin named nobody.
func (h *CommerceHandlers) subject(r *http.Request) (string, bool, error) {
	if studentID, ok := middleware.StudentIDFromContext(r.Context()); ok {
		return studentID, true, nil
	}
	lookup := lookupFromQuery(r)
	if lookup.Empty() {
		return "", false, nil
	}
	student, err := h.commerce.ResolveStudent(r.Context(), lookup)
	if err != nil {
		return "", false, err
	}
	return student.ID, true, nil
}

// ActiveBorrows handles GET /library/active. Admins without a student filter get every
// open borrow.
func (h *CommerceHandlers) ActiveBorrows(w http.ResponseWriter, r *http.Request) {
	studentID, ok, err := h.subject(r)
	if err != nil {
		writeServiceError(w, h.logger, "active borrows", err)
		return
	}
	var borrows []models.ActiveBorrow
	if ok {
		borrows, err = h.commerce.ActiveBorrows(r.Context(), studentID)
	} else {
		borrows, err = h.commerce.ActiveBorrowsAll(r.Context())
	}
	if err != nil {
		writeServiceError(w, h.logger, "active borrows", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"active": borrows})
}

// History returns GET /{module}/history for one module.
func (h *CommerceHandlers) History(module models.Module) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, ok, err := h.subject(r)
		if err != nil {
			writeServiceError(w, h.logger, "commerce history", err)
			return
		}
		if !ok {
			writeError(w, http.StatusBadRequest, "studentId, rollNo or rfid_uid is required")
			return
		}
		history, err := h.commerce.History(r.Context(), module, studentID)
		if err != nil {
			writeServiceError(w, h.logger, "commerce history", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"module": module, "transactions": history})
	}
}

// HistoryAll returns GET /{module}/history-all for one module.
func (h *CommerceHandlers) HistoryAll(module models.Module) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, err := h.commerce.HistoryAll(r.Context(), module)
		if err != nil {
			writeServiceError(w, h.logger, "commerce history", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"module": module, "transactions": history})
	}
}
