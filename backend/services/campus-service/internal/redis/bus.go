package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"campuswallet/backend/services/campus-service/internal/events"
)

const (
	outboxSize     = 256
	publishTimeout = 2 * time.Second
)

// Bus shares events between service instances over a redis channel. Local subscribers
// get every event immediately; remote events are relayed into the local publisher.
// Outgoing messages are queued and sent by Run, so Publish never waits on redis.
type Bus struct {
	client  *redis.Client
	channel string
	origin  string
	local   events.Publisher
	outbox  chan outgoing
	logger  *zap.Logger
}

type outgoing struct {
	eventType string
	data      []byte
}

type envelope struct {
	Origin string       `json:"origin"`
	Event  events.Event `json:"event"`
}

type remoteEnvelope struct {
	Origin string `json:"origin"`
	Event  struct {
		Type      string          `json:"type"`
		StudentID string          `json:"studentId"`
		Payload   json.RawMessage `json:"payload"`
	} `json:"event"`
}

// NewBus returns a bus publishing to channel.
func NewBus(client *redis.Client, channel string, local events.Publisher, logger *zap.Logger) *Bus {
	if channel == "" {
		channel = "campus:events"
	}
	return &Bus{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		local:   local,
		outbox:  make(chan outgoing, outboxSize),
		logger:  logger,
	}
}

// Publish delivers locally and queues the event for the other instances.
// When the queue is full the remote copy is dropped and logged.
func (b *Bus) Publish(ctx context.Context, event events.Event) {
	b.local.Publish(ctx, event)

	data, err := encodeEnvelope(b.origin, event)
	if err != nil {
		b.logger.Warn("event encode failed", zap.String("type", event.Type), zap.Error(err))
		return
	}
	select {
	case b.outbox <- outgoing{eventType: event.Type, data: data}:
	default:
		b.logger.Warn("event outbox full, dropping remote copy", zap.String("type", event.Type))
	}
}

// Run sends queued events and relays events published by other instances.
// It returns once ctx is cancelled and the sender has stopped.
func (b *Bus) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.send(ctx)
	}()

	err := b.relay(ctx)
	if err != nil && ctx.Err() == nil {
		b.logger.Error("event relay stopped", zap.String("channel", b.channel), zap.Error(err))
	}
	wg.Wait()
	return err
}

func (b *Bus) send(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.outbox:
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := b.client.Publish(pubCtx, b.channel, msg.data).Err()
			cancel()
			if err != nil && ctx.Err() == nil {
				b.logger.Warn("event publish failed", zap.String("type", msg.eventType), zap.Error(err))
			}
		}
	}
}

func (b *Bus) relay(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("event bus subscribed", zap.String("channel", b.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("redis: event subscription closed")
			}
			event, remote, err := decodeEnvelope(b.origin, []byte(msg.Payload))
			if err != nil {
				b.logger.Warn("event decode failed", zap.Error(err))
				continue
			}
			if remote {
				b.local.Publish(ctx, event)
			}
		}
	}
}

func encodeEnvelope(origin string, event events.Event) ([]byte, error) {
	return json.Marshal(envelope{Origin: origin, Event: event})
}

// decodeEnvelope reports remote=false for events this instance published itself.
func decodeEnvelope(origin string, data []byte) (events.Event, bool, error) {
	var env remoteEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.Event{}, false, err
	}
	if env.Event.Type == "" {
		return events.Event{}, false, errors.New("redis: event without type")
	}
	event := events.Event{
		Type:      env.Event.Type,
		StudentID: env.Event.StudentID,
		Payload:   env.Event.Payload,
	}
	return event, env.Origin != origin, nil
}
