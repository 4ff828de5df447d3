// Package httpapi exposes the REST surface: accounts, chats, history
// and status updates. The live surface lives in infrastructure/ws and
// is mounted on the same router.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Finding-a-partner/finding-a-partner/auth"
	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/Finding-a-partner/finding-a-partner/services"
	"github.com/gorilla/mux"
)

type Server struct {
	log      *slog.Logger
	auth     services.IAuthService
	chats    services.IChatService
	messages services.IMessageService
	tokens   *auth.Tokens
	live     http.Handler
}

func NewServer(log *slog.Logger, authService services.IAuthService,
	chats services.IChatService, messages services.IMessageService,
	tokens *auth.Tokens, live http.Handler) *Server {
	return &Server{
		log:      log,
		auth:     authService,
		chats:    chats,
		messages: messages,
		tokens:   tokens,
		live:     live,
	}
}

// Router wires the public auth endpoints, the authenticated API and the
// websocket endpoint. The websocket handler verifies its own token
// because browsers cannot set headers on a websocket handshake.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/auth/register", s.handleRegister).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)
	router.Handle("/ws", s.live)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware(s.tokens))
	api.HandleFunc("/chats", s.handleListChats).Methods(http.MethodGet)
	api.HandleFunc("/chats", s.handleCreateChat).Methods(http.MethodPost)
	api.HandleFunc("/chats/private", s.handleGetOrCreatePrivate).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id:[0-9]+}", s.handleGetChat).Methods(http.MethodGet)
	api.HandleFunc("/chats/{id:[0-9]+}", s.handleDeleteChat).Methods(http.MethodDelete)
	api.HandleFunc("/chats/{id:[0-9]+}/participants", s.handleAddParticipant).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id:[0-9]+}/participants/{type}/{participant:[0-9]+}", s.handleRemoveParticipant).Methods(http.MethodDelete)
	api.HandleFunc("/chats/{id:[0-9]+}/messages", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/messages/{id:[0-9]+}/status", s.handleMarkStatus).Methods(http.MethodPatch)

	return router
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			s.log.Error("response encoding failed", "error", err)
		}
	}
}

// fail maps a service error onto a client-visible status. Internal
// details never leave the process above the 4xx range.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := apperrors.MapToHTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
		message = "internal error"
	}
	s.respond(w, status, map[string]string{"error": message})
}
