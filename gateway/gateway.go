// Package gateway bridges authenticated client connections into the
// messaging core. It is the only composition point of the send path:
// verify, append, publish.
package gateway

import (
	"log/slog"

	"github.com/Finding-a-partner/finding-a-partner/domain"
	"github.com/Finding-a-partner/finding-a-partner/runtime"
	"github.com/Finding-a-partner/finding-a-partner/services"
)

type Gateway struct {
	log      *slog.Logger
	auth     services.IAuthService
	messages services.IMessageService
	broker   *runtime.Broker
}

func NewGateway(log *slog.Logger, auth services.IAuthService,
	messages services.IMessageService, broker *runtime.Broker) *Gateway {
	return &Gateway{log: log, auth: auth, messages: messages, broker: broker}
}

// OnConnect verifies the credential and registers a live connection for
// the identity it names.
func (g *Gateway) OnConnect(token string) (*runtime.Connection, error) {
	identity, err := g.auth.Verify(token)
	if err != nil {
		return nil, err
	}
	conn := g.broker.Register(identity)
	g.log.Info("client connected", "identity", identity.String(), "connection_id", conn.ID)
	return conn, nil
}

// OnSend appends a message on behalf of the connection's identity. The
// message service owns the append-then-publish composition; a failed
// append reaches the caller, a failed delivery never does.
func (g *Gateway) OnSend(conn *runtime.Connection, chatID domain.ChatID,
	content string) (domain.Message, error) {
	return g.messages.Send(chatID, conn.Identity, content)
}

func (g *Gateway) Subscribe(conn *runtime.Connection, chatID domain.ChatID) error {
	return g.broker.Subscribe(conn, chatID)
}

func (g *Gateway) Unsubscribe(conn *runtime.Connection, chatID domain.ChatID) {
	g.broker.Unsubscribe(conn, chatID)
}

// OnDisconnect tears down every subscription of the connection. Called
// on normal close and on fatal protocol errors alike.
func (g *Gateway) OnDisconnect(conn *runtime.Connection) {
	g.broker.Drop(conn)
	g.log.Info("client disconnected", "connection_id", conn.ID)
}
