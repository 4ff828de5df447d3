package repositories

import (
	"log/slog"
	"testing"

	"github.com/Finding-a-partner/finding-a-partner/domain"
	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func privatePair(a, b int64) []domain.Participant {
	return []domain.Participant{
		{Identity: domain.UserIdentity(a), Role: domain.RoleMember},
		{Identity: domain.UserIdentity(b), Role: domain.RoleMember},
	}
}

func Test_CreateChat_Private_And_Find_By_Pair(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository, err := NewChatRepository(db, slog.Default())
	req.NoError(err)
	defer repository.Close()

	chat, err := repository.CreateChat(domain.ChatTypePrivate, nil, nil, privatePair(1, 2))
	req.NoError(err)
	req.NotZero(chat.ID)
	req.Equal(domain.ChatTypePrivate, chat.Type)

	// Both orderings of the pair resolve to the same chat.
	found, err := repository.FindPrivateChat(1, 2)
	req.NoError(err)
	req.Equal(chat.ID, found.ID)

	found, err = repository.FindPrivateChat(2, 1)
	req.NoError(err)
	req.Equal(chat.ID, found.ID)
}

func Test_CreateChat_Private_Duplicate_Pair_Conflicts(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository, err := NewChatRepository(db, slog.Default())
	req.NoError(err)
	defer repository.Close()

	_, err = repository.CreateChat(domain.ChatTypePrivate, nil, nil, privatePair(1, 2))
	req.NoError(err)

	_, err = repository.CreateChat(domain.ChatTypePrivate, nil, nil, privatePair(2, 1))
	req.ErrorIs(err, apperrors.ErrConflict)
}

func Test_AddParticipant(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository, err := NewChatRepository(db, slog.Default())
	req.NoError(err)
	defer repository.Close()

	name := "climbing crew"
	chat, err := repository.CreateChat(domain.ChatTypeGroup, &name, nil, []domain.Participant{
		{Identity: domain.UserIdentity(1), Role: domain.RoleOwner},
	})
	req.NoError(err)

	participant, err := repository.AddParticipant(chat.ID, domain.UserIdentity(2), domain.RoleMember)
	req.NoError(err)
	req.Equal(chat.ID, participant.ChatID)

	// Same identity a second time is a conflict.
	_, err = repository.AddParticipant(chat.ID, domain.UserIdentity(2), domain.RoleMember)
	req.ErrorIs(err, apperrors.ErrConflict)

	// Unknown chat.
	_, err = repository.AddParticipant(domain.ChatID(999), domain.UserIdentity(2), domain.RoleMember)
	req.ErrorIs(err, apperrors.ErrNotFound)

	members, err := repository.Participants(chat.ID)
	req.NoError(err)
	req.Len(members, 2)
}

func Test_RemoveParticipant(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository, err := NewChatRepository(db, slog.Default())
	req.NoError(err)
	defer repository.Close()

	chat, err := repository.CreateChat(domain.ChatTypePrivate, nil, nil, privatePair(1, 2))
	req.NoError(err)

	req.NoError(repository.RemoveParticipant(chat.ID, domain.UserIdentity(2)))

	isMember, err := repository.IsMember(chat.ID, domain.UserIdentity(2))
	req.NoError(err)
	req.False(isMember)

	// Removing an absent membership fails.
	err = repository.RemoveParticipant(chat.ID, domain.UserIdentity(2))
	req.ErrorIs(err, apperrors.ErrNotFound)
}

func Test_ListChatsFor(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository, err := NewChatRepository(db, slog.Default())
	req.NoError(err)
	defer repository.Close()

	first, err := repository.CreateChat(domain.ChatTypePrivate, nil, nil, privatePair(1, 2))
	req.NoError(err)
	name := "hiking"
	second, err := repository.CreateChat(domain.ChatTypeGroup, &name, nil, []domain.Participant{
		{Identity: domain.UserIdentity(1), Role: domain.RoleOwner},
	})
	req.NoError(err)
	_, err = repository.CreateChat(domain.ChatTypePrivate, nil, nil, privatePair(3, 4))
	req.NoError(err)

	chats, err := repository.ListChatsFor(domain.UserIdentity(1))
	req.NoError(err)
	req.Len(chats, 2)
	req.Equal(first.ID, chats[0].ID)
	req.Equal(second.ID, chats[1].ID)
}

func Test_DeleteChat_Cascades(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	chatRepository, err := NewChatRepository(db, slog.Default())
	req.NoError(err)
	defer chatRepository.Close()
	messageRepository, err := NewMessageRepository(db, slog.Default())
	req.NoError(err)
	defer messageRepository.Close()

	chat, err := chatRepository.CreateChat(domain.ChatTypePrivate, nil, nil, privatePair(1, 2))
	req.NoError(err)
	message, err := messageRepository.AppendMessage(chat.ID, domain.UserIdentity(1), "see you there", now())
	req.NoError(err)

	req.NoError(chatRepository.DeleteChat(chat.ID))

	_, err = chatRepository.GetChat(chat.ID)
	req.ErrorIs(err, apperrors.ErrNotFound)

	messages, _, err := messageRepository.GetMessages(chat.ID, nil, 0)
	req.NoError(err)
	req.Empty(messages)

	_, err = messageRepository.MarkStatus(message.ID, domain.StatusDelivered)
	req.ErrorIs(err, apperrors.ErrNotFound)

	// The pair guard is gone, so the pair can chat again.
	_, err = chatRepository.CreateChat(domain.ChatTypePrivate, nil, nil, privatePair(1, 2))
	req.NoError(err)
}

func Test_DeleteChat_After_Roster_Change_Frees_The_Pair(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository, err := NewChatRepository(db, slog.Default())
	req.NoError(err)
	defer repository.Close()

	chat, err := repository.CreateChat(domain.ChatTypePrivate, nil, nil, privatePair(1, 2))
	req.NoError(err)

	// Mutate the roster both ways before deleting: the guard cleanup
	// must not depend on the founding pair still being the roster.
	_, err = repository.AddParticipant(chat.ID, domain.UserIdentity(3), domain.RoleMember)
	req.NoError(err)
	req.NoError(repository.RemoveParticipant(chat.ID, domain.UserIdentity(2)))

	req.NoError(repository.DeleteChat(chat.ID))

	_, err = repository.FindPrivateChat(1, 2)
	req.ErrorIs(err, apperrors.ErrNotFound)

	again, err := repository.CreateChat(domain.ChatTypePrivate, nil, nil, privatePair(1, 2))
	req.NoError(err)
	req.NotEqual(chat.ID, again.ID)
}
