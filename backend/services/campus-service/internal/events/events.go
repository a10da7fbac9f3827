// Package events defines the notifications the campus service fans out to observers.
// Events are invalidation hints: clients re-fetch state over HTTP and nothing is replayed.
package events

import (
	"context"
	"encoding/json"

	"campuswallet/backend/libs/money"
)

// Event types.
const (
	WalletUpdated     = "wallet:updated"
	TransactionNew    = "transaction:new"
	TransactionUpdate = "transaction:update"
	TransactionDelete = "transaction:delete"
	RFIDPending       = "rfid:pending"
	RFIDApproved      = "rfid:approved"
	ItemNew           = "item:new"
)

// Event is one fan-out message.
type Event struct {
	Type string `json:"type"`
	// StudentID scopes delivery; empty means admin-only audience.
	StudentID string `json:"studentId,omitempty"`
	Payload   any    `json:"payload"`
}

// Marshal encodes the event as a websocket/redis frame.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Implementations must not block the caller on slow
// consumers and must swallow their own failures.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event)

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	f(ctx, event)
}

// Nop drops every event.
var Nop Publisher = PublisherFunc(func(context.Context, Event) {})

// Fanout publishes every event to all of its publishers.
type Fanout []Publisher

// Publish forwards event to each publisher in order.
func (f Fanout) Publish(ctx context.Context, event Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}

// WalletPayload is the body of wallet:updated.
type WalletPayload struct {
	StudentID string       `json:"studentId"`
	Balance   money.Amount `json:"balance"`
}
