//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Finding-a-partner/finding-a-partner/domain"
	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/dgraph-io/badger/v4"
)

type IChatRepository interface {
	CreateChat(chatType domain.ChatType, name *string, eventID *int64, participants []domain.Participant) (domain.Chat, error)
	FindPrivateChat(userA, userB int64) (domain.Chat, error)
	GetChat(id domain.ChatID) (domain.Chat, error)
	DeleteChat(id domain.ChatID) error
	AddParticipant(chatID domain.ChatID, identity domain.Identity, role domain.Role) (domain.Participant, error)
	RemoveParticipant(chatID domain.ChatID, identity domain.Identity) error
	ListChatsFor(identity domain.Identity) ([]domain.Chat, error)
	IsMember(chatID domain.ChatID, identity domain.Identity) (bool, error)
	Participants(chatID domain.ChatID) ([]domain.Participant, error)
}

type ChatRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewChatRepository(db *badger.DB, log *slog.Logger) (*ChatRepository, error) {
	seq, err := db.GetSequence([]byte(chatSeqKey), 64)
	if err != nil {
		return nil, fmt.Errorf("chat sequence: %w", err)
	}
	return &ChatRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the id sequence. Unused ids in the current lease are
// lost, which only produces gaps, never reuse.
func (r *ChatRepository) Close() error {
	return r.seq.Release()
}

// CreateChat persists a chat and its initial roster in one transaction.
// For private chats the pair guard key is read before being written, so
// two concurrent creations for the same pair conflict at commit time.
// Badger reports that as ErrConflict, surfaced here as the application
// Conflict error; the service layer resolves it by re-reading.
func (r *ChatRepository) CreateChat(chatType domain.ChatType, name *string, eventID *int64,
	participants []domain.Participant) (domain.Chat, error) {
	next, err := r.seq.Next()
	if err != nil {
		return domain.Chat{}, fmt.Errorf("%w: chat id allocation: %v", apperrors.ErrUnavailable, err)
	}
	chat := domain.Chat{
		ID:        domain.ChatID(next + 1),
		Type:      chatType,
		Name:      name,
		EventID:   eventID,
		CreatedAt: time.Now().UTC(),
	}
	if chatType == domain.ChatTypePrivate {
		lo, hi := domain.PrivatePair(participants[0].Identity.ID, participants[1].Identity.ID)
		chat.Pair = &domain.Pair{Min: lo, Max: hi}
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if chat.Pair != nil {
			guard := pairKey(chat.Pair.Min, chat.Pair.Max)
			if _, err := txn.Get(guard); err == nil {
				return apperrors.ErrConflict
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			if err := txn.Set(guard, []byte(strconv.FormatInt(int64(chat.ID), 10))); err != nil {
				return err
			}
		}

		data, err := json.Marshal(chat)
		if err != nil {
			return err
		}
		if err := txn.Set(chatKey(chat.ID), data); err != nil {
			return err
		}

		for _, p := range participants {
			p.ChatID = chat.ID
			p.JoinedAt = chat.CreatedAt
			if err := setParticipant(txn, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err == badger.ErrConflict {
		// Lost the race against another creator of the same pair.
		return domain.Chat{}, apperrors.ErrConflict
	}
	if err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// FindPrivateChat resolves the pair guard key to the existing private
// chat for the unordered (userA, userB) pair.
func (r *ChatRepository) FindPrivateChat(userA, userB int64) (domain.Chat, error) {
	var chatID domain.ChatID
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pairKey(userA, userB))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id, err := strconv.ParseInt(string(val), 10, 64)
			chatID = domain.ChatID(id)
			return err
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Chat{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.Chat{}, err
	}
	return r.GetChat(chatID)
}

func (r *ChatRepository) GetChat(id domain.ChatID) (domain.Chat, error) {
	var chat domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, chatKey(id), &chat)
	})
	if err == badger.ErrKeyNotFound {
		return domain.Chat{}, fmt.Errorf("%w: chat %d", apperrors.ErrNotFound, id)
	}
	return chat, err
}

// DeleteChat removes the chat and cascades to its participant records,
// membership index entries, pair guard and messages. Every reference is
// explicit in the key layout, so the cascade is a set of prefix scans.
func (r *ChatRepository) DeleteChat(id domain.ChatID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		var chat domain.Chat
		if err := getJSON(txn, chatKey(id), &chat); err != nil {
			return err
		}

		participants, err := scanParticipants(txn, id)
		if err != nil {
			return err
		}
		// The guard comes from the pair recorded at creation, not from
		// the surviving roster: the pair must become creatable again no
		// matter how the roster was mutated before the delete.
		if chat.Pair != nil {
			if err := txn.Delete(pairKey(chat.Pair.Min, chat.Pair.Max)); err != nil {
				return err
			}
		}
		for _, p := range participants {
			if err := txn.Delete(memberKey(id, p.Identity)); err != nil {
				return err
			}
			if err := txn.Delete(chatsOfKey(p.Identity, id)); err != nil {
				return err
			}
		}

		if err := deleteMessages(txn, id); err != nil {
			return err
		}
		return txn.Delete(chatKey(id))
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: chat %d", apperrors.ErrNotFound, id)
	}
	return err
}

func (r *ChatRepository) AddParticipant(chatID domain.ChatID, identity domain.Identity,
	role domain.Role) (domain.Participant, error) {
	participant := domain.Participant{
		ChatID:   chatID,
		Identity: identity,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(chatKey(chatID)); err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: chat %d", apperrors.ErrNotFound, chatID)
		} else if err != nil {
			return err
		}
		if _, err := txn.Get(memberKey(chatID, identity)); err == nil {
			return fmt.Errorf("%w: %s already in chat %d", apperrors.ErrConflict, identity, chatID)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return setParticipant(txn, participant)
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return participant, nil
}

func (r *ChatRepository) RemoveParticipant(chatID domain.ChatID, identity domain.Identity) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(memberKey(chatID, identity)); err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s not in chat %d", apperrors.ErrNotFound, identity, chatID)
		} else if err != nil {
			return err
		}
		if err := txn.Delete(memberKey(chatID, identity)); err != nil {
			return err
		}
		return txn.Delete(chatsOfKey(identity, chatID))
	})
}

// ListChatsFor scans the membership index of an identity and resolves
// each referenced chat. Results come back ordered by chat id.
func (r *ChatRepository) ListChatsFor(identity domain.Identity) ([]domain.Chat, error) {
	var chats []domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := chatsOfPrefix(identity)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			id, err := strconv.ParseInt(string(key[len(prefix):]), 10, 64)
			if err != nil {
				return err
			}
			var chat domain.Chat
			if err := getJSON(txn, chatKey(domain.ChatID(id)), &chat); err != nil {
				return err
			}
			chats = append(chats, chat)
		}
		return nil
	})
	return chats, err
}

func (r *ChatRepository) IsMember(chatID domain.ChatID, identity domain.Identity) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(chatID, identity))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ChatRepository) Participants(chatID domain.ChatID) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		participants, err = scanParticipants(txn, chatID)
		return err
	})
	return participants, err
}

func setParticipant(txn *badger.Txn, p domain.Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := txn.Set(memberKey(p.ChatID, p.Identity), data); err != nil {
		return err
	}
	return txn.Set(chatsOfKey(p.Identity, p.ChatID), nil)
}

func scanParticipants(txn *badger.Txn, chatID domain.ChatID) ([]domain.Participant, error) {
	var participants []domain.Participant
	prefix := memberPrefix(chatID)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var p domain.Participant
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, nil
}

func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}
