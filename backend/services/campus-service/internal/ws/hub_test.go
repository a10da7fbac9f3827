package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"campuswallet/backend/services/campus-service/internal/events"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/service"
)

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func dial(t *testing.T, serverURL, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return frame.Type
}

func TestHubScopesEventsByAudience(t *testing.T) {
	tokens := service.NewTokenService("ws-secret", time.Hour)
	hub := NewHub(zap.NewNop())
	server := NewServer(hub, tokens, time.Second, time.Minute, zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	adminToken, err := tokens.GenerateToken("admin-1", models.RoleAdmin)
	if err != nil {
		t.Fatalf("admin token: %v", err)
	}
	studentToken, err := tokens.GenerateToken("student-1", models.RoleStudent)
	if err != nil {
		t.Fatalf("student token: %v", err)
	}

	admin := dial(t, ts.URL, adminToken)
	student := dial(t, ts.URL, studentToken)
	waitFor(t, 2*time.Second, func() bool { return hub.Len() == 2 })

	ctx := context.Background()
	hub.Publish(ctx, events.Event{Type: events.WalletUpdated, StudentID: "student-2"})
	hub.Publish(ctx, events.Event{Type: events.ItemNew})
	hub.Publish(ctx, events.Event{Type: events.TransactionNew, StudentID: "student-1"})

	for _, want := range []string{events.WalletUpdated, events.ItemNew, events.TransactionNew} {
		if got := readType(t, admin); got != want {
			t.Fatalf("admin: expected %s, got %s", want, got)
		}
	}
	// The other student's wallet update is filtered out.
	for _, want := range []string{events.ItemNew, events.TransactionNew} {
		if got := readType(t, student); got != want {
			t.Fatalf("student: expected %s, got %s", want, got)
		}
	}

	student.Close()
	waitFor(t, 2*time.Second, func() bool { return hub.Len() == 1 })
}

func TestServerRejectsMissingOrBadToken(t *testing.T) {
	tokens := service.NewTokenService("ws-secret", time.Hour)
	server := NewServer(NewHub(zap.NewNop()), tokens, time.Second, time.Minute, zap.NewNop())

	for _, target := range []string{"/ws", "/ws?token=garbage"} {
		rec := httptest.NewRecorder()
		server.HandleWS(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", target, rec.Code)
		}
	}
}
