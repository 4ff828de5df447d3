package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/Finding-a-partner/finding-a-partner/domain"
	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/stretchr/testify/require"
)

type allowAll struct{}

func (allowAll) Authorize(domain.ChatID, domain.Identity) (bool, error) {
	return true, nil
}

type denyAll struct{}

func (denyAll) Authorize(domain.ChatID, domain.Identity) (bool, error) {
	return false, nil
}

func startBroker(t *testing.T, authorizer Authorizer, connectionBuffer int) *Broker {
	t.Helper()
	broker := NewBroker(slog.Default(), NewRegistry(), authorizer, 64, connectionBuffer)
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
	return broker
}

func receive(t *testing.T, conn *Connection) domain.Message {
	t.Helper()
	select {
	case message := <-conn.Outbound():
		return message
	case <-time.After(time.Second):
		t.Fatal("no message delivered within a second")
		return domain.Message{}
	}
}

func expectNothing(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case message := <-conn.Outbound():
		t.Fatalf("unexpected delivery: %+v", message)
	case <-time.After(50 * time.Millisecond):
	}
}

func testMessage(chatID domain.ChatID, id domain.MessageID, content string) domain.Message {
	return domain.Message{
		ID:        id,
		ChatID:    chatID,
		Sender:    domain.UserIdentity(1),
		Content:   content,
		Status:    domain.StatusSent,
		CreatedAt: time.Now().UTC(),
	}
}

func TestBroker_Subscribe_Requires_Membership(t *testing.T) {
	req := require.New(t)
	broker := startBroker(t, denyAll{}, 8)
	conn := broker.Register(domain.UserIdentity(42))

	err := broker.Subscribe(conn, domain.ChatID(7))
	req.ErrorIs(err, apperrors.ErrForbidden)
}

func TestBroker_Publish_Reaches_All_Subscribers_In_Order(t *testing.T) {
	req := require.New(t)
	broker := startBroker(t, allowAll{}, 8)
	chatID := domain.ChatID(7)

	first := broker.Register(domain.UserIdentity(1))
	second := broker.Register(domain.UserIdentity(2))
	req.NoError(broker.Subscribe(first, chatID))
	req.NoError(broker.Subscribe(second, chatID))

	broker.Publish(testMessage(chatID, 1, "M"))
	broker.Publish(testMessage(chatID, 2, "M'"))

	for _, conn := range []*Connection{first, second} {
		req.Equal(domain.MessageID(1), receive(t, conn).ID)
		req.Equal(domain.MessageID(2), receive(t, conn).ID)
	}
}

func TestBroker_Dropped_Connection_Misses_Later_Messages(t *testing.T) {
	req := require.New(t)
	broker := startBroker(t, allowAll{}, 8)
	chatID := domain.ChatID(7)

	staying := broker.Register(domain.UserIdentity(1))
	leaving := broker.Register(domain.UserIdentity(2))
	req.NoError(broker.Subscribe(staying, chatID))
	req.NoError(broker.Subscribe(leaving, chatID))

	broker.Publish(testMessage(chatID, 1, "M"))
	req.Equal(domain.MessageID(1), receive(t, staying).ID)
	req.Equal(domain.MessageID(1), receive(t, leaving).ID)

	broker.Drop(leaving)

	broker.Publish(testMessage(chatID, 2, "M'"))
	req.Equal(domain.MessageID(2), receive(t, staying).ID)
	expectNothing(t, leaving)

	select {
	case <-leaving.Done():
	default:
		t.Fatal("dropped connection should be closed")
	}

	// Dropping twice is harmless.
	broker.Drop(leaving)
}

func TestBroker_Unsubscribe_Stops_Delivery(t *testing.T) {
	req := require.New(t)
	broker := startBroker(t, allowAll{}, 8)
	chatID := domain.ChatID(3)

	conn := broker.Register(domain.UserIdentity(1))
	req.NoError(broker.Subscribe(conn, chatID))
	broker.Unsubscribe(conn, chatID)

	broker.Publish(testMessage(chatID, 1, "gone"))
	expectNothing(t, conn)

	// Unsubscribing when not subscribed is a no-op.
	broker.Unsubscribe(conn, chatID)
}

func TestBroker_Overflowing_Subscriber_Is_Dropped(t *testing.T) {
	req := require.New(t)
	broker := startBroker(t, allowAll{}, 1)
	chatID := domain.ChatID(9)

	slow := broker.Register(domain.UserIdentity(1))
	req.NoError(broker.Subscribe(slow, chatID))

	// The queue holds one message; the second overflows it and the
	// broker disconnects the subscriber instead of blocking.
	broker.Publish(testMessage(chatID, 1, "fits"))
	broker.Publish(testMessage(chatID, 2, "overflows"))

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("overflowing connection was not dropped")
	}
	req.Zero(broker.registry.Subscribers(chatID))
}

func TestBroker_Subscribe_After_Drop_Is_Refused(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	broker := NewBroker(slog.Default(), registry, allowAll{}, 64, 8)
	chatID := domain.ChatID(7)

	conn := broker.Register(domain.UserIdentity(1))
	req.NoError(broker.Subscribe(conn, chatID))
	broker.Drop(conn)

	err := broker.Subscribe(conn, chatID)
	req.ErrorIs(err, apperrors.ErrUnavailable)
	req.Zero(registry.Subscribers(chatID))

	// A later Drop still leaves the registry clean.
	broker.Drop(conn)
	req.Zero(registry.Subscribers(chatID))
}
