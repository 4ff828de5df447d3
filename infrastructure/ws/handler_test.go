package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Finding-a-partner/finding-a-partner/auth"
	"github.com/Finding-a-partner/finding-a-partner/domain"
	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/Finding-a-partner/finding-a-partner/gateway"
	"github.com/Finding-a-partner/finding-a-partner/repositories"
	"github.com/Finding-a-partner/finding-a-partner/runtime"
	"github.com/Finding-a-partner/finding-a-partner/services"
	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	server *httptest.Server
	auth   *services.AuthService
	chats  *services.ChatService
}

func newWsFixture(t *testing.T) *wsFixture {
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

	gw := gateway.NewGateway(log, authService, messages, broker)
	handler := NewHandler(log, gw, DefaultConfig())
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &wsFixture{server: server, auth: authService, chats: chats}
}

func (f *wsFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	endpoint := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=" + token
	socket, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = socket.Close() })
	return socket
}

func readFrame(t *testing.T, socket *websocket.Conn) ServerFrame {
	t.Helper()
	require.NoError(t, socket.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame ServerFrame
	require.NoError(t, socket.ReadJSON(&frame))
	return frame
}

func Test_Handshake_Rejects_Bad_Token(t *testing.T) {
	f := newWsFixture(t)
	endpoint := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=garbage"
	_, response, err := websocket.DefaultDialer.Dial(endpoint, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, response.StatusCode)
}

func Test_Send_Is_Acked_And_Delivered(t *testing.T) {
	f := newWsFixture(t)
	alice, err := f.auth.Register("alice@example.org", "a-long-enough-password")
	require.NoError(t, err)
	bob, err := f.auth.Register("bob@example.org", "a-long-enough-password")
	require.NoError(t, err)

	chat, err := f.chats.GetOrCreatePrivate(1, 2)
	require.NoError(t, err)

	sender := f.dial(t, string(alice))
	receiver := f.dial(t, string(bob))

	require.NoError(t, receiver.WriteJSON(ClientFrame{Type: FrameSubscribe, ChatID: int64(chat.ID)}))
	// No ack for subscribe; give the read loop a beat to process it.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, sender.WriteJSON(ClientFrame{
		Type: FrameSend, ChatID: int64(chat.ID), Content: "hello bob",
	}))

	ack := readFrame(t, sender)
	require.Equal(t, FrameAck, ack.Type)
	require.Equal(t, "hello bob", ack.Message.Content)
	require.Equal(t, string(domain.StatusSent), ack.Message.Status)

	delivered := readFrame(t, receiver)
	require.Equal(t, FrameMessage, delivered.Type)
	require.Equal(t, ack.Message.ID, delivered.Message.ID)
	require.Equal(t, "hello bob", delivered.Message.Content)
}

func Test_Subscribe_Requires_Membership(t *testing.T) {
	f := newWsFixture(t)
	_, err := f.auth.Register("alice@example.org", "a-long-enough-password")
	require.NoError(t, err)
	_, err = f.auth.Register("bob@example.org", "a-long-enough-password")
	require.NoError(t, err)
	carol, err := f.auth.Register("carol@example.org", "a-long-enough-password")
	require.NoError(t, err)

	chat, err := f.chats.GetOrCreatePrivate(1, 2)
	require.NoError(t, err)

	outsider := f.dial(t, string(carol))
	require.NoError(t, outsider.WriteJSON(ClientFrame{Type: FrameSubscribe, ChatID: int64(chat.ID)}))

	frame := readFrame(t, outsider)
	require.Equal(t, FrameError, frame.Type)
	require.Equal(t, int64(chat.ID), frame.ChatID)
}

func Test_Malformed_Frame_Gets_An_Error(t *testing.T) {
	f := newWsFixture(t)
	alice, err := f.auth.Register("alice@example.org", "a-long-enough-password")
	require.NoError(t, err)

	socket := f.dial(t, string(alice))
	require.NoError(t, socket.WriteMessage(websocket.TextMessage, []byte("not json")))

	frame := readFrame(t, socket)
	require.Equal(t, FrameError, frame.Type)
}

func Test_Internal_Error_Details_Stay_Server_Side(t *testing.T) {
	message, internal := clientErrorMessage(fmt.Errorf("%w: badger write failed", apperrors.ErrUnavailable))
	require.True(t, internal)
	require.Equal(t, "internal error", message)

	message, internal = clientErrorMessage(fmt.Errorf("%w: not a member of chat 7", apperrors.ErrForbidden))
	require.False(t, internal)
	require.Contains(t, message, "not a member")
}
