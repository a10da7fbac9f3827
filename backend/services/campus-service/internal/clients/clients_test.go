package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/events"
)

func TestRazorpayCreateAndFetchOrder(t *testing.T) {
	var created map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/orders", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_key" || pass != "rzp_secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"id":"order_1","amount":25050,"currency":"INR","receipt":"r1","status":"created","notes":{"studentId":"s1"}}`))
	})
	mux.HandleFunc("GET /v1/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "order_1" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR"}}`))
			return
		}
		w.Write([]byte(`{"id":"order_1","amount":25050,"currency":"INR","status":"paid","notes":{"studentId":"s1","rfid_uid":"U1"}}`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client, err := NewRazorpayClient(ts.URL, "rzp_key", "rzp_secret", "", ts.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	order, err := client.CreateOrder(context.Background(), money.Amount(25050), "r1", map[string]string{"studentId": "s1"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "order_1" || order.Amount != money.Amount(25050) || order.KeyID != "rzp_key" {
		t.Fatalf("unexpected order %+v", order)
	}
	if created["amount"] != float64(25050) || created["currency"] != "INR" {
		t.Fatalf("expected amount in paise and default currency, got %+v", created)
	}

	fetched, err := client.FetchOrder(context.Background(), "order_1")
	if err != nil {
		t.Fatalf("fetch order: %v", err)
	}
	if fetched.Notes["rfid_uid"] != "U1" || fetched.Status != "paid" {
		t.Fatalf("unexpected fetched order %+v", fetched)
	}

	_, err = client.FetchOrder(context.Background(), "order_2")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusNotFound {
		t.Fatalf("expected StatusError 404, got %v", err)
	}

	if _, err := NewRazorpayClient(ts.URL, "", "", "", nil); err == nil {
		t.Fatalf("expected error without keys")
	}
}

func TestNotifyClientPostsSelectedEvents(t *testing.T) {
	received := make(chan NotifyRequest, 4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req NotifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			received <- req
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewNotifyClient(ts.URL, []string{events.ItemNew}, zap.NewNop())
	client.Publish(context.Background(), events.Event{Type: events.WalletUpdated})
	client.Publish(context.Background(), events.Event{Type: events.ItemNew, Payload: map[string]string{"name": "Atlas"}})

	req := <-received
	if req.Type != events.ItemNew {
		t.Fatalf("expected item:new, got %s", req.Type)
	}
	select {
	case extra := <-received:
		t.Fatalf("unexpected forwarded event %+v", extra)
	default:
	}

	disabled := NewNotifyClient("", []string{events.ItemNew}, zap.NewNop())
	if err := disabled.Notify(context.Background(), events.Event{Type: events.ItemNew}); err != nil {
		t.Fatalf("disabled client must be a no-op, got %v", err)
	}
}
