package gateway

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/Finding-a-partner/finding-a-partner/auth"
	"github.com/Finding-a-partner/finding-a-partner/domain"
	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/Finding-a-partner/finding-a-partner/repositories"
	"github.com/Finding-a-partner/finding-a-partner/runtime"
	"github.com/Finding-a-partner/finding-a-partner/services"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type stack struct {
	gateway  *Gateway
	auth     *services.AuthService
	chats    *services.ChatService
	messages *services.MessageService
}

func newStack(t *testing.T) *stack {
	t.Helper()
	log := slog.Default()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	chatRepository, err := repositories.NewChatRepository(db, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = chatRepository.Close() })
	messageRepository, err := repositories.NewMessageRepository(db, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = messageRepository.Close() })
	userRepository, err := repositories.NewUserRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = userRepository.Close() })

	chats := services.NewChatService(chatRepository, log)
	broker := runtime.NewBroker(log, runtime.NewRegistry(), chats, 64, 8)
	messages := services.NewMessageService(messageRepository, chats, broker, nil, 50, log)
	authService := services.NewAuthService(userRepository, auth.NewTokens("test-secret", time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = broker.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &stack{
		gateway:  NewGateway(log, authService, messages, broker),
		auth:     authService,
		chats:    chats,
		messages: messages,
	}
}

func (s *stack) connect(t *testing.T, email string) (*runtime.Connection, domain.Identity) {
	t.Helper()
	token, err := s.auth.Register(email, "a-long-enough-password")
	require.NoError(t, err)
	conn, err := s.gateway.OnConnect(string(token))
	require.NoError(t, err)
	identity, err := s.auth.Verify(string(token))
	require.NoError(t, err)
	return conn, identity
}

func receive(t *testing.T, conn *runtime.Connection) domain.Message {
	t.Helper()
	select {
	case message := <-conn.Outbound():
		return message
	case <-time.After(time.Second):
		t.Fatal("no message delivered within a second")
		return domain.Message{}
	}
}

func TestGateway_OnConnect_Rejects_Bad_Credentials(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	_, err := s.gateway.OnConnect("garbage")
	req.ErrorIs(err, apperrors.ErrUnauthenticated)
}

func TestGateway_Send_NonMember_Appends_Nothing(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	_, alice := s.connect(t, "alice@example.com")
	_, bob := s.connect(t, "bob@example.com")
	outsiderConn, _ := s.connect(t, "outsider@example.com")

	chat, err := s.chats.GetOrCreatePrivate(alice.ID, bob.ID)
	req.NoError(err)

	_, err = s.gateway.OnSend(outsiderConn, chat.ID, "hi")
	req.ErrorIs(err, apperrors.ErrForbidden)

	history, _, err := s.messages.History(chat.ID, alice, nil, 0)
	req.NoError(err)
	req.Empty(history)
}

func TestGateway_Live_Delivery_And_History_Agree(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	aliceConn, alice := s.connect(t, "alice@example.com")
	bobConn, bob := s.connect(t, "bob@example.com")

	chat, err := s.chats.GetOrCreatePrivate(alice.ID, bob.ID)
	req.NoError(err)

	req.NoError(s.gateway.Subscribe(aliceConn, chat.ID))
	req.NoError(s.gateway.Subscribe(bobConn, chat.ID))

	first, err := s.gateway.OnSend(aliceConn, chat.ID, "M")
	req.NoError(err)

	// Both subscribers receive M exactly once.
	req.Equal(first.ID, receive(t, aliceConn).ID)
	req.Equal(first.ID, receive(t, bobConn).ID)

	// Bob disconnects; the second message reaches only Alice.
	s.gateway.OnDisconnect(bobConn)

	second, err := s.gateway.OnSend(aliceConn, chat.ID, "M'")
	req.NoError(err)
	req.Equal(second.ID, receive(t, aliceConn).ID)

	select {
	case message := <-bobConn.Outbound():
		t.Fatalf("disconnected subscriber received %+v", message)
	case <-time.After(50 * time.Millisecond):
	}

	// History agrees with the live order: [M, M'].
	history, _, err := s.messages.History(chat.ID, bob, nil, 0)
	req.NoError(err)
	req.Len(history, 2)
	req.Equal(first.ID, history[0].ID)
	req.Equal(second.ID, history[1].ID)
}

func TestGateway_Subscribe_Requires_Membership(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	aliceConn, alice := s.connect(t, "alice@example.com")
	_, bob := s.connect(t, "bob@example.com")
	outsiderConn, _ := s.connect(t, "outsider@example.com")

	chat, err := s.chats.GetOrCreatePrivate(alice.ID, bob.ID)
	req.NoError(err)

	req.NoError(s.gateway.Subscribe(aliceConn, chat.ID))
	req.ErrorIs(s.gateway.Subscribe(outsiderConn, chat.ID), apperrors.ErrForbidden)
}
