package clients

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"campuswallet/backend/services/campus-service/internal/events"
)

// NotifyClient forwards selected events to an external bridge, such as a chat bot relay.
// Delivery is best-effort and never blocks the caller.
type NotifyClient struct {
	base    *BaseClient
	enabled bool
	types   map[string]bool
	timeout time.Duration
	logger  *zap.Logger
}

// NotifyRequest is the body posted to the bridge.
type NotifyRequest struct {
	Type      string    `json:"type"`
	StudentID string    `json:"studentId,omitempty"`
	Payload   any       `json:"payload"`
	SentAt    time.Time `json:"sentAt"`
}

// NewNotifyClient returns a bridge client. An empty URL disables it.
func NewNotifyClient(baseURL string, types []string, logger *zap.Logger) *NotifyClient {
	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	return &NotifyClient{
		base:    NewBaseClient(baseURL, NewDefaultHTTPClient(5*time.Second)),
		enabled: baseURL != "",
		types:   wanted,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Publish posts the event in the background when its type is selected.
func (c *NotifyClient) Publish(_ context.Context, event events.Event) {
	if !c.enabled || !c.types[event.Type] {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.Notify(ctx, event); err != nil {
			c.logger.Warn("notify bridge request failed", zap.String("type", event.Type), zap.Error(err))
		}
	}()
}

// Notify posts one event synchronously.
func (c *NotifyClient) Notify(ctx context.Context, event events.Event) error {
	if !c.enabled {
		c.logger.Debug("notify bridge disabled, skipping event")
		return nil
	}
	return c.base.DoJSON(ctx, http.MethodPost, "/notify", NotifyRequest{
		Type:      event.Type,
		StudentID: event.StudentID,
		Payload:   event.Payload,
		SentAt:    time.Now().UTC(),
	}, nil)
}
