//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
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

type IMessageRepository interface {
	AppendMessage(chatID domain.ChatID, sender domain.Identity, content string, at time.Time) (domain.Message, error)
	GetMessages(chatID domain.ChatID, cursor *string, limit int) ([]domain.Message, *string, error)
	MarkStatus(id domain.MessageID, status domain.MessageStatus) (domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(messageSeqKey), 256)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

func (r *MessageRepository) Close() error {
	return r.seq.Release()
}

// AppendMessage persists a message under "msg:{chat_id}:{message_id}".
// The id comes from a monotonic sequence, never from the caller, so
// concurrent appends to the same chat always resolve to one insertion
// order, and the zero-padded key keeps that order lexicographic. A back
// reference "msg-chat:{message_id}" is written for status updates that
// only know the message id.
func (r *MessageRepository) AppendMessage(chatID domain.ChatID, sender domain.Identity,
	content string, at time.Time) (domain.Message, error) {
	next, err := r.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: message id allocation: %v", apperrors.ErrUnavailable, err)
	}
	message := domain.Message{
		ID:        domain.MessageID(next + 1),
		ChatID:    chatID,
		Sender:    sender,
		Content:   content,
		Status:    domain.StatusSent,
		CreatedAt: at,
	}

	data, err := json.Marshal(message)
	if err != nil {
		return domain.Message{}, err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(chatID, message.ID), data); err != nil {
			return err
		}
		return txn.Set(messageChatKey(message.ID), []byte(strconv.FormatInt(int64(chatID), 10)))
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// GetMessages pages through a chat's log in ascending order. The cursor
// is the zero-padded id of the last message of the previous page; the
// scan seeks to it and skips it, so a fixed cursor sequence never
// duplicates or skips entries no matter what is appended concurrently.
func (r *MessageRepository) GetMessages(chatID domain.ChatID, cursor *string,
	limit int) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(chatID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seekKey := prefix
		if cursor != nil {
			seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
		}
		it.Seek(seekKey)

		// The cursor names an already delivered message. Skip it only
		// when the scan landed exactly on it: a cursor that matches no
		// stored key is an exclusive start, and skipping whatever the
		// seek landed on instead would swallow a real message.
		if cursor != nil && it.ValidForPrefix(prefix) &&
			string(it.Item().Key()[len(prefix):]) == *cursor {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			var message domain.Message
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			})
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(messages) == 0 {
		return nil, cursor, nil
	}
	return messages, &lastKey, nil
}

// MarkStatus advances the delivery status of a message. Transitions are
// checked against the SENT -> DELIVERED -> READ chain inside the same
// transaction that rewrites the record.
func (r *MessageRepository) MarkStatus(id domain.MessageID,
	status domain.MessageStatus) (domain.Message, error) {
	if !status.Valid() {
		return domain.Message{}, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidRequest, status)
	}
	var message domain.Message
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(messageChatKey(id))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: message %d", apperrors.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		var chatID int64
		if err := item.Value(func(val []byte) error {
			chatID, err = strconv.ParseInt(string(val), 10, 64)
			return err
		}); err != nil {
			return err
		}

		key := messageKey(domain.ChatID(chatID), id)
		if err := getJSON(txn, key, &message); err != nil {
			return err
		}
		if !message.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: status %s cannot move to %s",
				apperrors.ErrInvalidRequest, message.Status, status)
		}
		message.Status = status
		data, err := json.Marshal(message)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// deleteMessages cascades a chat deletion into its message log and the
// per-message back references. Keys are collected before deletion to
// keep the iterator on a stable view.
func deleteMessages(txn *badger.Txn, chatID domain.ChatID) error {
	prefix := messagePrefix(chatID)
	var keys [][]byte
	var ids []string

	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
		ids = append(ids, string(it.Item().Key()[len(prefix):]))
	}
	it.Close()

	for i, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
		if err := txn.Delete([]byte("msg-chat:" + ids[i])); err != nil {
			return err
		}
	}
	return nil
}
