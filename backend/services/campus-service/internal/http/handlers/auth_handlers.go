package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"campuswallet/backend/services/campus-service/internal/http/middleware"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/service"
)

// AuthHandlers serves login and profile endpoints.
type AuthHandlers struct {
	auth     *service.AuthService
	students *service.StudentService
	logger   *zap.Logger
}

// NewAuthHandlers returns handler.
func NewAuthHandlers(auth *service.AuthService, students *service.StudentService, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{auth: auth, students: students, logger: logger}
}

type tokenResponse struct {
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	Role      string          `json:"role"`
	Admin     *models.Admin   `json:"admin,omitempty"`
	Student   *models.Student `json:"student,omitempty"`
}

// Login handles POST /auth/login for operators.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "admin login", err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	token, admin, err := h.auth.LoginAdmin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, "admin login", err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, TokenType: "Bearer", Role: models.RoleAdmin, Admin: admin})
}

// StudentLogin handles POST /auth/student/login.
func (h *AuthHandlers) StudentLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RollNo   string `json:"rollNo"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "student login", err)
		return
	}
	if strings.TrimSpace(req.RollNo) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "rollNo and password are required")
		return
	}

	token, student, err := h.auth.LoginStudent(r.Context(), req.RollNo, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, "student login", err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, TokenType: "Bearer", Role: models.RoleStudent, Student: student})
}

// Me handles GET /me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if claims.IsAdmin() {
		writeJSON(w, http.StatusOK, map[string]string{"id": claims.Subject, "role": claims.Role})
		return
	}
	student, err := h.students.Get(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, h.logger, "load profile", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"role": claims.Role, "student": student})
}

// SetStudentPassword handles PUT /students/{id}/password.
func (h *AuthHandlers) SetStudentPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, "set password", err)
		return
	}
	if err := h.auth.SetStudentPassword(r.Context(), r.PathValue("id"), req.Password); err != nil {
		writeServiceError(w, h.logger, "set password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
