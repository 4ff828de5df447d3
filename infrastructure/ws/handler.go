// Package ws exposes the live connection endpoint. Each connection gets
// a read loop for client frames and a write loop draining the broker
// queue; the two never share a lock.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Finding-a-partner/finding-a-partner/domain"
	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/Finding-a-partner/finding-a-partner/gateway"
	"github.com/Finding-a-partner/finding-a-partner/runtime"
	"github.com/gorilla/websocket"
)

type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   54 * time.Second,
		MaxMessageSize: 4096,
	}
}

type Handler struct {
	log      *slog.Logger
	gateway  *gateway.Gateway
	config   Config
	upgrader websocket.Upgrader
}

func NewHandler(log *slog.Logger, gw *gateway.Gateway, config Config) *Handler {
	return &Handler{
		log:     log,
		gateway: gw,
		config:  config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP authenticates the request, upgrades it and starts the two
// pumps. The credential comes from the Authorization header or, for
// browser clients that cannot set headers on a websocket, from the
// token query parameter.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	connection, err := h.gateway.OnConnect(token)
	if err != nil {
		http.Error(w, "invalid or expired token", apperrors.MapToHTTPStatus(err))
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.gateway.OnDisconnect(connection)
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &client{
		handler:    h,
		socket:     socket,
		connection: connection,
	}
	go client.writePump()
	go client.readPump()
}

type client struct {
	handler    *Handler
	socket     *websocket.Conn
	connection *runtime.Connection

	// Guards the socket: acks come from the read loop, deliveries and
	// pings from the write loop, and gorilla allows a single writer.
	writeMu sync.Mutex
}

func (c *client) writeJSON(frame ServerFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.socket.SetWriteDeadline(time.Now().Add(c.handler.config.WriteWait))
	return c.socket.WriteJSON(frame)
}

func (c *client) writeControl(messageType int) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.socket.SetWriteDeadline(time.Now().Add(c.handler.config.WriteWait))
	return c.socket.WriteMessage(messageType, nil)
}

// readPump consumes client frames until the connection dies. It is the
// only reader of the socket.
func (c *client) readPump() {
	h := c.handler
	defer func() {
		h.gateway.OnDisconnect(c.connection)
		_ = c.socket.Close()
	}()

	c.socket.SetReadLimit(h.config.MaxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(h.config.PongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read failed", "connection_id", c.connection.ID, "error", err)
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.sendError(0, "malformed frame")
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *client) handleFrame(frame ClientFrame) {
	h := c.handler
	chatID := domain.ChatID(frame.ChatID)

	switch frame.Type {
	case FrameSubscribe:
		if err := h.gateway.Subscribe(c.connection, chatID); err != nil {
			c.fail(frame.ChatID, err)
		}
	case FrameUnsubscribe:
		h.gateway.Unsubscribe(c.connection, chatID)
	case FrameSend:
		message, err := h.gateway.OnSend(c.connection, chatID, frame.Content)
		if err != nil {
			c.fail(frame.ChatID, err)
			return
		}
		c.send(ServerFrame{Type: FrameAck, ChatID: frame.ChatID, Message: toMessagePayload(message)})
	default:
		c.sendError(frame.ChatID, "unknown frame type")
	}
}

// writePump pushes broker deliveries and keepalive pings. All writes
// go through writeJSON/writeControl, shared with the acks of readPump.
func (c *client) writePump() {
	h := c.handler
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.socket.Close()
	}()

	for {
		select {
		case message := <-c.connection.Outbound():
			frame := ServerFrame{
				Type:    FrameMessage,
				ChatID:  int64(message.ChatID),
				Message: toMessagePayload(message),
			}
			if err := c.writeJSON(frame); err != nil {
				h.gateway.OnDisconnect(c.connection)
				return
			}
		case <-c.connection.Done():
			_ = c.writeControl(websocket.CloseMessage)
			return
		case <-ticker.C:
			if err := c.writeControl(websocket.PingMessage); err != nil {
				h.gateway.OnDisconnect(c.connection)
				return
			}
		}
	}
}

func (c *client) send(frame ServerFrame) {
	_ = c.writeJSON(frame)
}

func (c *client) sendError(chatID int64, message string) {
	c.send(ServerFrame{Type: FrameError, ChatID: chatID, Error: message})
}

// fail turns a gateway error into an error frame. Internal details are
// masked the same way the HTTP edge masks 5xx responses.
func (c *client) fail(chatID int64, err error) {
	message, internal := clientErrorMessage(err)
	if internal {
		c.handler.log.Error("frame failed", "connection_id", c.connection.ID, "error", err)
	}
	c.sendError(chatID, message)
}

func clientErrorMessage(err error) (message string, internal bool) {
	if apperrors.MapToHTTPStatus(err) >= http.StatusInternalServerError {
		return "internal error", true
	}
	return err.Error(), false
}
