//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Finding-a-partner/finding-a-partner/domain"
	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/Finding-a-partner/finding-a-partner/repositories"
)

// maxPrivateCreateAttempts bounds the create/re-read loop of
// GetOrCreatePrivate. Two rounds resolve any single race; more
// attempts only matter when chats are deleted concurrently.
const maxPrivateCreateAttempts = 3

type CreateChatRequest struct {
	Type         domain.ChatType
	Name         *string
	EventID      *int64
	Participants []domain.Participant
}

type IChatService interface {
	Create(request CreateChatRequest) (domain.Chat, error)
	GetOrCreatePrivate(userA, userB int64) (domain.Chat, error)
	Get(id domain.ChatID) (domain.Chat, error)
	Delete(id domain.ChatID) error
	AddParticipant(chatID domain.ChatID, identity domain.Identity, role domain.Role) (domain.Participant, error)
	RemoveParticipant(chatID domain.ChatID, identity domain.Identity) error
	ListFor(identity domain.Identity) ([]domain.Chat, error)
	Participants(chatID domain.ChatID) ([]domain.Participant, error)
	Authorize(chatID domain.ChatID, identity domain.Identity) (bool, error)
}

// ChatService is the channel directory: it owns chat identity, type and
// roster, and enforces the one-private-chat-per-pair invariant.
type ChatService struct {
	repository repositories.IChatRepository
	log        *slog.Logger
}

func NewChatService(repository repositories.IChatRepository, log *slog.Logger) *ChatService {
	return &ChatService{repository: repository, log: log}
}

func (s *ChatService) Create(request CreateChatRequest) (domain.Chat, error) {
	switch request.Type {
	case domain.ChatTypePrivate:
		if err := validatePrivateRoster(request.Participants); err != nil {
			return domain.Chat{}, err
		}
	case domain.ChatTypeGroup, domain.ChatTypeEvent:
		if len(request.Participants) == 0 {
			return domain.Chat{}, fmt.Errorf("%w: a chat needs at least one participant", apperrors.ErrInvalidRequest)
		}
	default:
		return domain.Chat{}, fmt.Errorf("%w: unknown chat type %q", apperrors.ErrInvalidRequest, request.Type)
	}

	return s.repository.CreateChat(request.Type, request.Name, request.EventID, request.Participants)
}

// GetOrCreatePrivate returns the private chat of the unordered
// (userA, userB) pair, creating it on first use. Losing a creation race
// is not an error: the conflict means the chat now exists, so the loop
// re-reads it. All concurrent callers end up with the same chat id.
func (s *ChatService) GetOrCreatePrivate(userA, userB int64) (domain.Chat, error) {
	if userA == userB {
		return domain.Chat{}, fmt.Errorf("%w: cannot open a private chat with yourself", apperrors.ErrInvalidRequest)
	}

	for attempt := 0; attempt < maxPrivateCreateAttempts; attempt++ {
		chat, err := s.repository.FindPrivateChat(userA, userB)
		if err == nil {
			return chat, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return domain.Chat{}, err
		}

		chat, err = s.repository.CreateChat(domain.ChatTypePrivate, nil, nil, []domain.Participant{
			{Identity: domain.UserIdentity(userA), Role: domain.RoleMember},
			{Identity: domain.UserIdentity(userB), Role: domain.RoleMember},
		})
		if err == nil {
			return chat, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return domain.Chat{}, err
		}
		s.log.Debug("lost private chat creation race, re-reading",
			"user_a", userA, "user_b", userB)
	}
	return domain.Chat{}, fmt.Errorf("%w: private chat for (%d, %d) kept moving",
		apperrors.ErrUnavailable, userA, userB)
}

func (s *ChatService) Get(id domain.ChatID) (domain.Chat, error) {
	return s.repository.GetChat(id)
}

func (s *ChatService) Delete(id domain.ChatID) error {
	return s.repository.DeleteChat(id)
}

// AddParticipant grows the roster of a group or event chat. A private
// chat's roster is fixed at exactly its founding pair.
func (s *ChatService) AddParticipant(chatID domain.ChatID, identity domain.Identity,
	role domain.Role) (domain.Participant, error) {
	if err := s.ensureMutableRoster(chatID); err != nil {
		return domain.Participant{}, err
	}
	return s.repository.AddParticipant(chatID, identity, role)
}

func (s *ChatService) RemoveParticipant(chatID domain.ChatID, identity domain.Identity) error {
	if err := s.ensureMutableRoster(chatID); err != nil {
		return err
	}
	return s.repository.RemoveParticipant(chatID, identity)
}

func (s *ChatService) ensureMutableRoster(chatID domain.ChatID) error {
	chat, err := s.repository.GetChat(chatID)
	if err != nil {
		return err
	}
	if chat.Type == domain.ChatTypePrivate {
		return fmt.Errorf("%w: the roster of a private chat cannot change", apperrors.ErrInvalidRequest)
	}
	return nil
}

func (s *ChatService) ListFor(identity domain.Identity) ([]domain.Chat, error) {
	return s.repository.ListChatsFor(identity)
}

func (s *ChatService) Participants(chatID domain.ChatID) ([]domain.Participant, error) {
	return s.repository.Participants(chatID)
}

// Authorize reports whether the identity is currently a member of the
// chat. The message log and the delivery broker both gate on it.
func (s *ChatService) Authorize(chatID domain.ChatID, identity domain.Identity) (bool, error) {
	return s.repository.IsMember(chatID, identity)
}

func validatePrivateRoster(participants []domain.Participant) error {
	if len(participants) != 2 {
		return fmt.Errorf("%w: a private chat takes exactly two participants", apperrors.ErrInvalidRequest)
	}
	first, second := participants[0].Identity, participants[1].Identity
	if first.Type != domain.ParticipantUser || second.Type != domain.ParticipantUser {
		return fmt.Errorf("%w: private chats are between users", apperrors.ErrInvalidRequest)
	}
	if first.ID == second.ID {
		return fmt.Errorf("%w: a private chat needs two distinct users", apperrors.ErrInvalidRequest)
	}
	return nil
}
