package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	writeTimeout = 10 * time.Second
	// readTimeout is reset by every pong; keepalive must fire well inside it.
	readTimeout       = 60 * time.Second
	keepaliveInterval = readTimeout * 9 / 10

	maxInboundBytes = 4 << 10
	outboxSize      = 64
)

var upgrader = websocket.Upgrader{
	// HTTP CORS allows every origin as well
	CheckOrigin:     func(*http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client is one progress subscriber
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	outbox chan []byte
	logger *zap.Logger
}

// HandleWebSocket upgrades c and subscribes it under the client_id query
// parameter, or a fresh uuid when none is given.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	id := c.QueryParam("client_id")
	if id == "" {
		id = uuid.NewString()
	}
	client := &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		logger: logger.With(zap.String("clientID", id)),
	}

	// The greeting goes first, ahead of any published event.
	if greeting, err := json.Marshal(CreateConnectedMessage(id)); err == nil {
		client.outbox <- greeting
	}
	select {
	case hub.joins <- client:
	case <-hub.done:
		conn.Close()
		return nil
	}

	go client.writeLoop()
	go client.readLoop()
	return nil
}

func (c *Client) readLoop() {
	defer func() {
		select {
		case c.hub.leaves <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundBytes)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
	extend("")
	c.conn.SetPongHandler(extend)

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			c.logger.Warn("Ignoring non-text frame", zap.Int("type", kind))
			continue
		}
		c.handle(data)
	}
}

func (c *Client) writeLoop() {
	keepalive := time.NewTicker(keepaliveInterval)
	defer func() {
		keepalive.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, open := <-c.outbox:
			if !open {
				c.write(websocket.CloseMessage, nil)
				return
			}
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}
		case <-keepalive.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(kind int, payload []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(kind, payload)
}

// handle answers application pings; anything else invalid gets an error frame
func (c *Client) handle(data []byte) {
	msg, err := c.hub.validator.ValidateMessage(data)
	if err != nil {
		c.logger.Warn("Rejected client message", zap.Error(err))
		c.reply(CreateErrorMessage("invalid_message", "Message rejected", err.Error()))
		return
	}
	if ping, ok := msg.(*PingMessage); ok {
		c.reply(CreatePongMessage(ping.Data))
	}
}

func (c *Client) reply(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}
	c.hub.deliver(c.id, payload)
}
