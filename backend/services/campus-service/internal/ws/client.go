package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"campuswallet/backend/services/campus-service/internal/events"
	"campuswallet/backend/services/campus-service/internal/models"
)

const (
	readLimit   = 4096
	pongTimeout = 60 * time.Second
	sendBuffer  = 32
)

// Client is one dashboard or student app connected for live updates.
type Client struct {
	subject      string
	role         string
	ws           *websocket.Conn
	send         chan []byte
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	onClose      func(*Client)
}

// NewClient wraps an upgraded connection.
func NewClient(subject, role string, ws *websocket.Conn, writeTimeout, pingInterval time.Duration, logger *zap.Logger, onClose func(*Client)) *Client {
	return &Client{
		subject:      subject,
		role:         role,
		ws:           ws,
		send:         make(chan []byte, sendBuffer),
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		onClose:      onClose,
	}
}

// Accepts reports whether the client may see event. Admins see everything, students see
// events about themselves and catalog announcements.
func (c *Client) Accepts(event events.Event) bool {
	if c.role == models.RoleAdmin {
		return true
	}
	if event.Type == events.ItemNew {
		return true
	}
	return event.StudentID != "" && event.StudentID == c.subject
}

// Start runs the pumps until the peer goes away or ctx ends.
func (c *Client) Start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

// Clients only listen; anything they send is discarded.
func (c *Client) readPump(ctx context.Context) {
	defer c.cleanup()
	c.ws.SetReadLimit(readLimit)
	c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.logger.Debug("client read closed", zap.String("subject", c.subject), zap.Error(err))
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send enqueues a frame. Slow clients lose frames rather than stalling the hub.
func (c *Client) Send(frame []byte) {
	select {
	case c.send <- frame:
	default:
		c.logger.Warn("dropping event frame, buffer full", zap.String("subject", c.subject))
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

// cleanup unregisters before closing send so the hub never writes to a closed channel.
func (c *Client) cleanup() {
	if c.onClose != nil {
		c.onClose(c)
	}
	close(c.send)
	_ = c.ws.Close()
}
