package runtime

import (
	"sync"

	"github.com/Finding-a-partner/finding-a-partner/domain"
	"github.com/google/uuid"
)

const registryShards = 32

// Registry holds the live subscriptions, partitioned by chat id so that
// fan-out for one chat never contends with unrelated chats. Each shard
// owns its own lock; there is no global lock on the publish path.
type Registry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	mu          sync.RWMutex
	subscribers map[domain.ChatID]map[uuid.UUID]*Connection
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].subscribers = make(map[domain.ChatID]map[uuid.UUID]*Connection)
	}
	return r
}

func (r *Registry) shard(chatID domain.ChatID) *registryShard {
	return &r.shards[uint64(chatID)%registryShards]
}

// Subscribe binds a connection to a chat. Subscribing twice replaces
// the previous binding, which makes the operation idempotent.
func (r *Registry) Subscribe(chatID domain.ChatID, conn *Connection) {
	shard := r.shard(chatID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, ok := shard.subscribers[chatID]; !ok {
		shard.subscribers[chatID] = make(map[uuid.UUID]*Connection)
	}
	shard.subscribers[chatID][conn.ID] = conn
}

// Unsubscribe removes a binding. Empty chat entries are removed so the
// map does not grow with dead chats.
func (r *Registry) Unsubscribe(chatID domain.ChatID, conn *Connection) {
	shard := r.shard(chatID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if conns, ok := shard.subscribers[chatID]; ok {
		delete(conns, conn.ID)
		if len(conns) == 0 {
			delete(shard.subscribers, chatID)
		}
	}
}

// Snapshot copies the current subscriber set of a chat. Fan-out works
// on the copy, so no delivery happens under the shard lock.
func (r *Registry) Snapshot(chatID domain.ChatID) []*Connection {
	shard := r.shard(chatID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	conns, ok := shard.subscribers[chatID]
	if !ok {
		return nil
	}
	snapshot := make([]*Connection, 0, len(conns))
	for _, conn := range conns {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

// Subscribers returns the number of live subscriptions for a chat.
func (r *Registry) Subscribers(chatID domain.ChatID) int {
	shard := r.shard(chatID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return len(shard.subscribers[chatID])
}
