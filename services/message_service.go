//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Finding-a-partner/finding-a-partner/domain"
	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/Finding-a-partner/finding-a-partner/moderation"
	"github.com/Finding-a-partner/finding-a-partner/repositories"
)

// Publisher is the live-delivery side of the send path, implemented by
// the broker. Publishing never fails; delivery problems are handled per
// subscriber and never reach the sender.
type Publisher interface {
	Publish(message domain.Message)
}

type IMessageService interface {
	Send(chatID domain.ChatID, sender domain.Identity, content string) (domain.Message, error)
	History(chatID domain.ChatID, requester domain.Identity, cursor *string, limit int) ([]domain.Message, *string, error)
	MarkStatus(id domain.MessageID, status domain.MessageStatus) (domain.Message, error)
}

// MessageService is the message log: it validates and appends messages,
// serves history pages and advances delivery statuses.
type MessageService struct {
	repository   repositories.IMessageRepository
	chats        IChatService
	publisher    Publisher
	moderator    *moderation.Moderator
	appendLocks  stripedMutex
	defaultLimit int
	log          *slog.Logger
}

func NewMessageService(repository repositories.IMessageRepository, chats IChatService,
	publisher Publisher, moderator *moderation.Moderator, defaultLimit int,
	log *slog.Logger) *MessageService {
	return &MessageService{
		repository:   repository,
		chats:        chats,
		publisher:    publisher,
		moderator:    moderator,
		defaultLimit: defaultLimit,
		log:          log,
	}
}

// Send authorizes the sender, appends the message and hands it to the
// broker. The per-chat lock spans append and publish, so the fanout
// loop always sees messages of one chat in storage order. Append
// failure aborts the send; nothing is published. There is no
// idempotency key: a retried send appends a second message.
func (s *MessageService) Send(chatID domain.ChatID, sender domain.Identity,
	content string) (domain.Message, error) {
	ok, err := s.chats.Authorize(chatID, sender)
	if err != nil {
		return domain.Message{}, err
	}
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: %s is not a member of chat %d",
			apperrors.ErrForbidden, sender, chatID)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, fmt.Errorf("%w: message content is empty", apperrors.ErrInvalidRequest)
	}
	content = s.moderator.Censor(content)

	unlock := s.appendLocks.lock(int64(chatID))
	defer unlock()

	message, err := s.repository.AppendMessage(chatID, sender, content, time.Now().UTC())
	if err != nil {
		return domain.Message{}, err
	}
	s.publisher.Publish(message)
	return message, nil
}

// History pages through a chat's log in ascending append order. The
// requester must be a member.
func (s *MessageService) History(chatID domain.ChatID, requester domain.Identity,
	cursor *string, limit int) ([]domain.Message, *string, error) {
	ok, err := s.chats.Authorize(chatID, requester)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is not a member of chat %d",
			apperrors.ErrForbidden, requester, chatID)
	}
	if limit <= 0 || limit > s.defaultLimit {
		limit = s.defaultLimit
	}
	return s.repository.GetMessages(chatID, cursor, limit)
}

func (s *MessageService) MarkStatus(id domain.MessageID,
	status domain.MessageStatus) (domain.Message, error) {
	return s.repository.MarkStatus(id, status)
}
