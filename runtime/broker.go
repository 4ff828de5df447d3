//go:generate go run go.uber.org/mock/mockgen -source=broker.go -destination=../mocks/mock_broker.go -package=mocks
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Finding-a-partner/finding-a-partner/domain"
	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/google/uuid"
)

// Authorizer answers whether an identity currently belongs to a chat.
// Implemented by the chat service.
type Authorizer interface {
	Authorize(chatID domain.ChatID, identity domain.Identity) (bool, error)
}

// Broker owns the live connections and routes each appended message to
// every subscribed connection.
//
// Delivery is best effort: a full or dead connection is dropped, never
// waited on. Missed messages are recoverable through history only.
// Per connection, messages of a chat arrive in publish order; the
// single fanout loop and the per-connection queues preserve it.
type Broker struct {
	log        *slog.Logger
	registry   *Registry
	authorizer Authorizer
	events     chan domain.Message
	bufferSize int

	published uint64
	dropped   uint64

	mu    sync.Mutex
	conns map[uuid.UUID]*Connection
}

// Stats is a point-in-time snapshot of the broker's counters, consumed
// by the monitoring worker.
type Stats struct {
	Connections int    `json:"connections"`
	QueueDepth  int    `json:"queue_depth"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

func NewBroker(log *slog.Logger, registry *Registry, authorizer Authorizer,
	queueSize, connectionBufferSize int) *Broker {
	return &Broker{
		log:        log,
		registry:   registry,
		authorizer: authorizer,
		events:     make(chan domain.Message, queueSize),
		bufferSize: connectionBufferSize,
		conns:      make(map[uuid.UUID]*Connection),
	}
}

// Register creates a live connection context bound to an authenticated
// identity.
func (b *Broker) Register(identity domain.Identity) *Connection {
	conn := newConnection(identity, b.bufferSize)
	b.mu.Lock()
	b.conns[conn.ID] = conn
	b.mu.Unlock()
	b.log.Debug("connection registered", "connection_id", conn.ID, "identity", identity.String())
	return conn
}

// Subscribe binds the connection to a chat after checking membership.
// A closed connection is refused, and a close that lands between the
// membership check and the registry insert is undone here: Drop closes
// before it reads the chat snapshot, so exactly one of the two sides
// always sees the other's write and removes the entry.
func (b *Broker) Subscribe(conn *Connection, chatID domain.ChatID) error {
	ok, err := b.authorizer.Authorize(chatID, conn.Identity)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is not a member of chat %d", apperrors.ErrForbidden, conn.Identity, chatID)
	}
	if !conn.addChat(chatID) {
		return fmt.Errorf("%w: connection %s is closed", apperrors.ErrUnavailable, conn.ID)
	}
	b.registry.Subscribe(chatID, conn)
	if conn.isClosed() {
		b.registry.Unsubscribe(chatID, conn)
		return fmt.Errorf("%w: connection %s is closed", apperrors.ErrUnavailable, conn.ID)
	}
	return nil
}

// Unsubscribe is a no-op when the connection was not subscribed.
func (b *Broker) Unsubscribe(conn *Connection, chatID domain.ChatID) {
	conn.removeChat(chatID)
	b.registry.Unsubscribe(chatID, conn)
}

// Publish hands a freshly appended message to the fanout loop. It never
// blocks the send path: when the loop cannot keep up the event is
// dropped and subscribers catch up through history.
func (b *Broker) Publish(message domain.Message) {
	select {
	case b.events <- message:
		atomic.AddUint64(&b.published, 1)
	default:
		atomic.AddUint64(&b.dropped, 1)
		b.log.Warn("fanout queue full, dropping live delivery",
			"chat_id", message.ChatID, "message_id", message.ID)
	}
}

// Stats reports live connection and fanout counters.
func (b *Broker) Stats() Stats {
	b.mu.Lock()
	connections := len(b.conns)
	b.mu.Unlock()
	return Stats{
		Connections: connections,
		QueueDepth:  len(b.events),
		Published:   atomic.LoadUint64(&b.published),
		Dropped:     atomic.LoadUint64(&b.dropped),
	}
}

// Drop removes every subscription of the connection and closes it.
// Safe to call more than once; disconnect and fatal protocol errors
// both end up here.
func (b *Broker) Drop(conn *Connection) {
	b.mu.Lock()
	_, known := b.conns[conn.ID]
	delete(b.conns, conn.ID)
	b.mu.Unlock()

	// Close before snapshotting: once closed, addChat refuses, so the
	// snapshot misses no subscription. Registry cleanup runs on every
	// call, not only the first, to erase entries a racing Subscribe
	// inserted after an earlier Drop.
	conn.close()
	for _, chatID := range conn.snapshotChats() {
		b.registry.Unsubscribe(chatID, conn)
	}
	if known {
		b.log.Debug("connection dropped", "connection_id", conn.ID)
	}
}

// Run is the fanout loop, supervised like any other worker. For each
// event it snapshots the subscriber set and enqueues independently per
// connection, so one slow subscriber delays nobody.
func (b *Broker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.log.Debug("stopping fanout loop")
			return nil
		case message := <-b.events:
			for _, conn := range b.registry.Snapshot(message.ChatID) {
				if !conn.enqueue(message) {
					b.log.Warn("subscriber queue overflow, dropping connection",
						"connection_id", conn.ID, "chat_id", message.ChatID)
					b.Drop(conn)
				}
			}
		}
	}
}
