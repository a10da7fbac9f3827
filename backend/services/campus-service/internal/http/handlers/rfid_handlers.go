package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/service"
)

// RFIDHandlers serves card readers and the approval queue.
type RFIDHandlers struct {
	scans  *service.ScanService
	logger *zap.Logger
}

// NewRFIDHandlers returns handler.
func NewRFIDHandlers(scans *service.ScanService, logger *zap.Logger) *RFIDHandlers {
	return &RFIDHandlers{scans: scans, logger: logger}
}

type scanRequest struct {
	RFIDUID  string        `json:"rfid_uid"`
	DeviceID string        `json:"deviceId"`
	Module   models.Module `json:"module"`
	Action   models.Action `json:"action"`
	ItemID   string        `json:"itemId"`
	Notes    string        `json:"notes"`
}

// Scan handles POST /rfid/scan.
func (h *RFIDHandlers) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "rfid scan", err)
		return
	}
	result, err := h.scans.Scan(r.Context(), service.ScanInput{
		RFIDUID:  req.RFIDUID,
		DeviceID: strings.TrimSpace(req.DeviceID),
		Module:   req.Module,
		Action:   req.Action,
		ItemID:   strings.TrimSpace(req.ItemID),
		Notes:    req.Notes,
	})
	if err != nil {
		writeServiceError(w, h.logger, "rfid scan", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Current handles GET /rfid/current.
func (h *RFIDHandlers) Current(w http.ResponseWriter, r *http.Request) {
	record, err := h.scans.Current(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "current scan", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// Pending handles GET /rfid/pending.
func (h *RFIDHandlers) Pending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.scans.Pending(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "pending transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": pending})
}

// Approve handles POST /rfid/approve/{id}.
func (h *RFIDHandlers) Approve(w http.ResponseWriter, r *http.Request) {
	tx, err := h.scans.Approve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "approve transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// Reject handles POST /rfid/reject/{id}.
func (h *RFIDHandlers) Reject(w http.ResponseWriter, r *http.Request) {
	tx, err := h.scans.Reject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "reject transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}
