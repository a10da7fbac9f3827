package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"campuswallet/backend/services/campus-service/internal/config"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.HTTP.Port = "0"
	cfg.Storage.Driver = config.DriverMemory
	cfg.JWT.Secret = "test-secret"
	cfg.Admin.Email = "ops@campus.test"
	cfg.Admin.Password = "ops-password"
	cfg.Password.BcryptCost = 4
	cfg.Reconcile.IntervalSeconds = 0
	return cfg
}

func TestNewWiresMemoryStack(t *testing.T) {
	application, err := New(context.Background(), memoryConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer application.Close()

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}

	body := bytes.NewBufferString(`{"email":"ops@campus.test","password":"ops-password"}`)
	rec = httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("bootstrap admin login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/wallet/webhook", bytes.NewBufferString(`{}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("webhook without secret: expected 503, got %d", rec.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	application, err := New(context.Background(), memoryConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}
