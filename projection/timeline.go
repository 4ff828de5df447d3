// Package projection builds local read models from delivered messages.
// Handles ordering and deduplication for one chat at a time. Does not
// talk to the network or the store.
package projection

import (
	"sort"

	"github.com/Finding-a-partner/finding-a-partner/domain"
)

// Timeline is a client-side view of one chat's log. Live deliveries and
// history pages can be fed in any order and more than once; the
// timeline keeps exactly one copy of each message, sorted by id.
type Timeline struct {
	ChatID   domain.ChatID
	Messages []domain.Message
}

func NewTimeline(chatID domain.ChatID) *Timeline {
	return &Timeline{ChatID: chatID}
}

// Consume folds a message into the timeline. Messages of other chats
// and already known ids are ignored.
func (t *Timeline) Consume(message domain.Message) {
	if message.ChatID != t.ChatID {
		return
	}
	at := sort.Search(len(t.Messages), func(i int) bool {
		return t.Messages[i].ID >= message.ID
	})
	if at < len(t.Messages) && t.Messages[at].ID == message.ID {
		return
	}
	t.Messages = append(t.Messages, domain.Message{})
	copy(t.Messages[at+1:], t.Messages[at:])
	t.Messages[at] = message
}

// Last returns the newest message, if any.
func (t *Timeline) Last() (domain.Message, bool) {
	if len(t.Messages) == 0 {
		return domain.Message{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}
