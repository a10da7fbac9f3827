package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/service"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthAndRoles(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	adminToken, err := tokens.GenerateToken("admin-1", models.RoleAdmin)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	studentToken, err := tokens.GenerateToken("student-1", models.RoleStudent)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		seen = claims.Subject
		w.WriteHeader(http.StatusOK)
	}), Auth(tokens), RequireRole(models.RoleAdmin))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"student on admin route", "Bearer " + studentToken, http.StatusForbidden},
		{"admin", "Bearer " + adminToken, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if rec := serve(h, req); rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
	if seen != "admin-1" {
		t.Fatalf("expected claims in context, got subject %q", seen)
	}
}

func TestStudentIDFromContext(t *testing.T) {
	ctx := WithClaims(httptest.NewRequest(http.MethodGet, "/", nil).Context(), &service.Claims{Role: models.RoleStudent})
	if _, ok := StudentIDFromContext(ctx); ok {
		t.Fatalf("empty subject must not resolve")
	}
	claims := &service.Claims{Role: models.RoleStudent}
	claims.Subject = "s1"
	if id, ok := StudentIDFromContext(WithClaims(ctx, claims)); !ok || id != "s1" {
		t.Fatalf("expected s1, got %q %v", id, ok)
	}
}

func TestDeviceKey(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	adminToken, _ := tokens.GenerateToken("admin-1", models.RoleAdmin)
	studentToken, _ := tokens.GenerateToken("student-1", models.RoleStudent)
	h := DeviceKey("reader-key", tokens)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/rfid/scan", nil)
	req.Header.Set(DeviceKeyHeader, "reader-key")
	if rec := serve(h, req); rec.Code != http.StatusOK {
		t.Fatalf("device key: expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/rfid/scan", nil)
	req.Header.Set(DeviceKeyHeader, "wrong")
	if rec := serve(h, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/rfid/scan", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	if rec := serve(h, req); rec.Code != http.StatusOK {
		t.Fatalf("admin token: expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/rfid/scan", nil)
	req.Header.Set("Authorization", "Bearer "+studentToken)
	if rec := serve(h, req); rec.Code != http.StatusForbidden {
		t.Fatalf("student token: expected 403, got %d", rec.Code)
	}

	open := DeviceKey("", tokens)(http.HandlerFunc(okHandler))
	req = httptest.NewRequest(http.MethodPost, "/rfid/scan", nil)
	req.Header.Set(DeviceKeyHeader, "")
	if rec := serve(open, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unset key must not admit anonymous readers, got %d", rec.Code)
	}
}

func TestRecoveryAndLogging(t *testing.T) {
	logger := zap.NewNop()
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), Recovery(logger), RequestLogger(logger))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	teapot := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), Recovery(logger), RequestLogger(logger))
	if rec := serve(teapot, httptest.NewRequest(http.MethodGet, "/", nil)); rec.Code != http.StatusTeapot {
		t.Fatalf("status must pass through, got %d", rec.Code)
	}
}
