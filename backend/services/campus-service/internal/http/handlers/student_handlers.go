package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/repository"
	"campuswallet/backend/services/campus-service/internal/service"
)

const maxBulkRows = 500

// StudentHandlers serves student administration.
type StudentHandlers struct {
	students *service.StudentService
	commerce *service.CommerceService
	logger   *zap.Logger
}

// NewStudentHandlers returns handler.
func NewStudentHandlers(students *service.StudentService, commerce *service.CommerceService, logger *zap.Logger) *StudentHandlers {
	return &StudentHandlers{students: students, commerce: commerce, logger: logger}
}

type createStudentRequest struct {
	Name           string          `json:"name"`
	RollNo         string          `json:"rollNo"`
	Email          string          `json:"email"`
	RFIDUID        string          `json:"rfid_uid"`
	LegacyRFID     string          `json:"rfidNumber"`
	Modules        []models.Module `json:"modules"`
	Password       string          `json:"password"`
	InitialBalance money.Amount    `json:"walletBalance"`
}

func (req createStudentRequest) toInput() service.CreateStudentInput {
	return service.CreateStudentInput{
		Name:           req.Name,
		RollNo:         req.RollNo,
		Email:          req.Email,
		RFIDUID:        req.RFIDUID,
		LegacyRFID:     req.LegacyRFID,
		Modules:        req.Modules,
		Password:       req.Password,
		InitialBalance: req.InitialBalance,
	}
}

// updateStudentRequest deliberately has no balance field.
type updateStudentRequest struct {
	Name       *string         `json:"name"`
	RollNo     *string         `json:"rollNo"`
	Email      *string         `json:"email"`
	RFIDUID    *string         `json:"rfid_uid"`
	LegacyRFID *string         `json:"rfidNumber"`
	Modules    []models.Module `json:"modules"`
	Active     *bool           `json:"active"`
}

// Create handles POST /students.
func (h *StudentHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "create student", err)
		return
	}
	student, err := h.students.Create(r.Context(), req.toInput())
	if err != nil {
		writeServiceError(w, h.logger, "create student", err)
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

// BulkCreate handles POST /students/bulk. Each row succeeds or fails on its own.
func (h *StudentHandlers) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Students []createStudentRequest `json:"students"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "bulk create students", err)
		return
	}
	if len(req.Students) == 0 {
		writeError(w, http.StatusBadRequest, "students must not be empty")
		return
	}
	if len(req.Students) > maxBulkRows {
		writeError(w, http.StatusBadRequest, "too many students in one request")
		return
	}

	rows := make([]service.CreateStudentInput, len(req.Students))
	for i, s := range req.Students {
		rows[i] = s.toInput()
	}
	results := h.students.BulkCreate(r.Context(), rows)

	created := 0
	for _, res := range results {
		if res.Error == "" {
			created++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"created": created,
		"failed":  len(results) - created,
		"results": results,
	})
}

// List handles GET /students?module=&activeOnly=.
func (h *StudentHandlers) List(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := queryBool(r, "activeOnly")
	if err != nil {
		writeServiceError(w, h.logger, "list students", err)
		return
	}
	filter := repository.StudentFilter{
		ActiveOnly: activeOnly,
		Module:     models.Module(strings.TrimSpace(r.URL.Query().Get("module"))),
	}
	if filter.Module != "" && !filter.Module.Valid() {
		writeError(w, http.StatusBadRequest, "unknown module")
		return
	}
	students, err := h.students.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "list students", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"students": students})
}

// Get handles GET /students/{id}.
func (h *StudentHandlers) Get(w http.ResponseWriter, r *http.Request) {
	student, err := h.students.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "get student", err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

// Find handles GET /students/find?rollNo=|rfid_uid=|studentId=|rfidNumber=.
func (h *StudentHandlers) Find(w http.ResponseWriter, r *http.Request) {
	lookup := lookupFromQuery(r)
	if lookup.Empty() {
		writeError(w, http.StatusBadRequest, "rollNo or rfid_uid is required")
		return
	}
	student, err := h.commerce.ResolveStudent(r.Context(), lookup)
	if err != nil {
		writeServiceError(w, h.logger, "find student", err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

// Update handles PUT /students/{id}.
func (h *StudentHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req updateStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "update student", err)
		return
	}
	student, err := h.students.Update(r.Context(), r.PathValue("id"), service.UpdateStudentInput{
		Name:       req.Name,
		RollNo:     req.RollNo,
		Email:      req.Email,
		RFIDUID:    req.RFIDUID,
		LegacyRFID: req.LegacyRFID,
		Modules:    req.Modules,
		Active:     req.Active,
	})
	if err != nil {
		writeServiceError(w, h.logger, "update student", err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

// Deactivate handles DELETE /students/{id}. Students are never hard-deleted since the
// ledger references them.
func (h *StudentHandlers) Deactivate(w http.ResponseWriter, r *http.Request) {
	student, err := h.students.Deactivate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "deactivate student", err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func lookupFromQuery(r *http.Request) service.StudentLookup {
	q := r.URL.Query()
	return service.StudentLookup{
		StudentID:  strings.TrimSpace(q.Get("studentId")),
		RollNo:     strings.TrimSpace(q.Get("rollNo")),
		RFIDUID:    strings.TrimSpace(q.Get("rfid_uid")),
		LegacyRFID: strings.TrimSpace(q.Get("rfidNumber")),
	}
}
