package ws

import (
	"time"

	"github.com/Finding-a-partner/finding-a-partner/domain"
)

// Frame types exchanged over a live connection. Clients send subscribe,
// unsubscribe and send frames; the server pushes message frames and
// answers send frames with an ack or an error.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameSend        = "send"
	FrameMessage     = "message"
	FrameAck         = "ack"
	FrameError       = "error"
)

// ClientFrame is what a client writes on the socket.
type ClientFrame struct {
	Type    string `json:"type"`
	ChatID  int64  `json:"chat_id,omitempty"`
	Content string `json:"content,omitempty"`
}

// ServerFrame is what the server pushes back.
type ServerFrame struct {
	Type    string          `json:"type"`
	ChatID  int64           `json:"chat_id,omitempty"`
	Message *MessagePayload `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type MessagePayload struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	SenderID  int64     `json:"sender_id"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toMessagePayload(message domain.Message) *MessagePayload {
	return &MessagePayload{
		ID:        int64(message.ID),
		ChatID:    int64(message.ChatID),
		SenderID:  message.Sender.ID,
		Content:   message.Content,
		Status:    string(message.Status),
		CreatedAt: message.CreatedAt,
	}
}

// ToMessage converts a payload back into the domain shape, for clients
// that feed projections.
func (p *MessagePayload) ToMessage() domain.Message {
	return domain.Message{
		ID:        domain.MessageID(p.ID),
		ChatID:    domain.ChatID(p.ChatID),
		Sender:    domain.UserIdentity(p.SenderID),
		Content:   p.Content,
		Status:    domain.MessageStatus(p.Status),
		CreatedAt: p.CreatedAt,
	}
}
