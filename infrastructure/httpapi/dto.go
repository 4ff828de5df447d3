package httpapi

import (
	"time"

	"github.com/Finding-a-partner/finding-a-partner/domain"
	"github.com/samber/lo"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type createChatRequest struct {
	Type         string        `json:"type"`
	Name         *string       `json:"name,omitempty"`
	EventID      *int64        `json:"event_id,omitempty"`
	Participants []participant `json:"participants"`
}

type privateChatRequest struct {
	UserID int64 `json:"user_id"`
}

type addParticipantRequest struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Role string `json:"role"`
}

type markStatusRequest struct {
	Status string `json:"status"`
}

type chatResponse struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Name      *string   `json:"name,omitempty"`
	EventID   *int64    `json:"event_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type participant struct {
	ID       int64     `json:"id"`
	Type     string    `json:"type"`
	Role     string    `json:"role,omitempty"`
	JoinedAt time.Time `json:"joined_at,omitzero"`
}

type messageResponse struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	SenderID  int64     `json:"sender_id"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type historyResponse struct {
	Messages []messageResponse `json:"messages"`
	Cursor   *string           `json:"cursor,omitempty"`
}

func toChatResponse(chat domain.Chat) chatResponse {
	return chatResponse{
		ID:        int64(chat.ID),
		Type:      string(chat.Type),
		Name:      chat.Name,
		EventID:   chat.EventID,
		CreatedAt: chat.CreatedAt,
	}
}

func toParticipant(p domain.Participant) participant {
	return participant{
		ID:       p.Identity.ID,
		Type:     string(p.Identity.Type),
		Role:     string(p.Role),
		JoinedAt: p.JoinedAt,
	}
}

func toMessageResponse(message domain.Message) messageResponse {
	return messageResponse{
		ID:        int64(message.ID),
		ChatID:    int64(message.ChatID),
		SenderID:  message.Sender.ID,
		Content:   message.Content,
		Status:    string(message.Status),
		CreatedAt: message.CreatedAt,
	}
}

func toChatResponses(chats []domain.Chat) []chatResponse {
	return lo.Map(chats, func(chat domain.Chat, _ int) chatResponse {
		return toChatResponse(chat)
	})
}

func toMessageResponses(messages []domain.Message) []messageResponse {
	return lo.Map(messages, func(message domain.Message, _ int) messageResponse {
		return toMessageResponse(message)
	})
}
