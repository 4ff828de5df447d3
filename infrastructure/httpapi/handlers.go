package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Finding-a-partner/finding-a-partner/auth"
	"github.com/Finding-a-partner/finding-a-partner/domain"
	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/Finding-a-partner/finding-a-partner/services"
	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var request registerRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.fail(w, fmt.Errorf("%w: malformed body", apperrors.ErrInvalidRequest))
		return
	}

	token, err := s.auth.Register(request.Email, request.Password)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var request registerRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.fail(w, fmt.Errorf("%w: malformed body", apperrors.ErrInvalidRequest))
		return
	}

	token, err := s.auth.Login(request.Email, request.Password)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, tokenResponse{Token: string(token)})
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())

	chats, err := s.chats.ListFor(identity)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, toChatResponses(chats))
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())

	var request createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.fail(w, fmt.Errorf("%w: malformed body", apperrors.ErrInvalidRequest))
		return
	}

	participants := lo.Map(request.Participants, func(p participant, _ int) domain.Participant {
		role := domain.Role(p.Role)
		if role == "" {
			role = domain.RoleMember
		}
		return domain.Participant{
			Identity: domain.Identity{ID: p.ID, Type: domain.ParticipantType(p.Type)},
			Role:     role,
		}
	})

	// The creator always ends up on the roster, as owner unless the
	// request already lists them.
	if !lo.ContainsBy(participants, func(p domain.Participant) bool {
		return p.Identity == identity
	}) {
		participants = append(participants, domain.Participant{Identity: identity, Role: domain.RoleOwner})
	}

	chat, err := s.chats.Create(services.CreateChatRequest{
		Type:         domain.ChatType(request.Type),
		Name:         request.Name,
		EventID:      request.EventID,
		Participants: participants,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusCreated, toChatResponse(chat))
}

func (s *Server) handleGetOrCreatePrivate(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())

	var request privateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.fail(w, fmt.Errorf("%w: malformed body", apperrors.ErrInvalidRequest))
		return
	}

	chat, err := s.chats.GetOrCreatePrivate(identity.ID, request.UserID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, toChatResponse(chat))
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	chatID := pathChatID(r)

	if err := s.requireMembership(chatID, identity); err != nil {
		s.fail(w, err)
		return
	}

	chat, err := s.chats.Get(chatID)
	if err != nil {
		s.fail(w, err)
		return
	}

	members, err := s.chats.Participants(chatID)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respond(w, http.StatusOK, struct {
		chatResponse
		Participants []participant `json:"participants"`
	}{
		chatResponse: toChatResponse(chat),
		Participants: lo.Map(members, func(p domain.Participant, _ int) participant {
			return toParticipant(p)
		}),
	})
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	chatID := pathChatID(r)

	if err := s.requireMembership(chatID, identity); err != nil {
		s.fail(w, err)
		return
	}

	if err := s.chats.Delete(chatID); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusNoContent, nil)
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	chatID := pathChatID(r)

	var request addParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.fail(w, fmt.Errorf("%w: malformed body", apperrors.ErrInvalidRequest))
		return
	}
	role := domain.Role(request.Role)
	if role == "" {
		role = domain.RoleMember
	}

	added, err := s.chats.AddParticipant(chatID,
		domain.Identity{ID: request.ID, Type: domain.ParticipantType(request.Type)}, role)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusCreated, toParticipant(added))
}

func (s *Server) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	chatID := pathChatID(r)
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["participant"], 10, 64)
	if err != nil {
		s.fail(w, fmt.Errorf("%w: malformed participant id", apperrors.ErrInvalidRequest))
		return
	}

	target := domain.Identity{ID: id, Type: domain.ParticipantType(vars["type"])}
	if err := s.chats.RemoveParticipant(chatID, target); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusNoContent, nil)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	chatID := pathChatID(r)

	var cursor *string
	if value := r.URL.Query().Get("cursor"); value != "" {
		cursor = &value
	}
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.fail(w, fmt.Errorf("%w: malformed limit", apperrors.ErrInvalidRequest))
			return
		}
		limit = parsed
	}

	messages, next, err := s.messages.History(chatID, identity, cursor, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, historyResponse{
		Messages: toMessageResponses(messages),
		Cursor:   next,
	})
}

func (s *Server) handleMarkStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		s.fail(w, fmt.Errorf("%w: malformed message id", apperrors.ErrInvalidRequest))
		return
	}

	var request markStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.fail(w, fmt.Errorf("%w: malformed body", apperrors.ErrInvalidRequest))
		return
	}
	status := domain.MessageStatus(request.Status)
	if !status.Valid() {
		s.fail(w, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidRequest, request.Status))
		return
	}

	message, err := s.messages.MarkStatus(domain.MessageID(id), status)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, toMessageResponse(message))
}

func (s *Server) requireMembership(chatID domain.ChatID, identity domain.Identity) error {
	member, err := s.chats.Authorize(chatID, identity)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: not a participant of chat %d", apperrors.ErrForbidden, chatID)
	}
	return nil
}

// pathChatID trusts the {id:[0-9]+} route pattern: by the time a
// handler runs the value is numeric.
func pathChatID(r *http.Request) domain.ChatID {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return domain.ChatID(id)
}
