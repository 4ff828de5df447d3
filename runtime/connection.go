package runtime

import (
	"sync"

	"github.com/Finding-a-partner/finding-a-partner/domain"
	"github.com/google/uuid"
)

// Connection is the broker-side handle of one live client connection.
// Outbound delivery goes through a bounded queue: the broker enqueues,
// the transport drains. The two sides never share a lock, so a slow
// reader can only fill its own queue.
type Connection struct {
	ID       uuid.UUID
	Identity domain.Identity

	outbound chan domain.Message
	done     chan struct{}

	mu     sync.Mutex
	chats  map[domain.ChatID]struct{}
	closed bool
}

func newConnection(identity domain.Identity, bufferSize int) *Connection {
	return &Connection{
		ID:       uuid.New(),
		Identity: identity,
		outbound: make(chan domain.Message, bufferSize),
		done:     make(chan struct{}),
		chats:    make(map[domain.ChatID]struct{}),
	}
}

// Outbound is drained by the transport write loop. Messages for a given
// chat appear in the exact order they were published.
func (c *Connection) Outbound() <-chan domain.Message {
	return c.outbound
}

// Done is closed when the broker drops the connection.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// enqueue offers a message to the outbound queue without ever blocking.
// It returns false when the connection is closed or its queue is full;
// the broker reacts by dropping the connection.
func (c *Connection) enqueue(message domain.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.outbound <- message:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// addChat records a subscription. It refuses once the connection is
// closed, so a dropped connection can never re-enter the registry.
func (c *Connection) addChat(chatID domain.ChatID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.chats[chatID] = struct{}{}
	return true
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) removeChat(chatID domain.ChatID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.chats, chatID)
}

// snapshotChats returns the chats the connection is subscribed to, for
// cleanup on drop.
func (c *Connection) snapshotChats() []domain.ChatID {
	c.mu.Lock()
	defer c.mu.Unlock()
	chats := make([]domain.ChatID, 0, len(c.chats))
	for id := range c.chats {
		chats = append(chats, id)
	}
	return chats
}
