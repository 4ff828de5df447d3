//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	CreateUser(email, hashedPassword string) (User, error)
	GetUserByEmail(email string) (User, error)
}

// User is the account record of the identity collaborator. It lives in
// the same store but is only read by the auth layer.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), 16)
	if err != nil {
		return nil, fmt.Errorf("user sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

func (r *UserRepository) Close() error {
	return r.seq.Release()
}

// CreateUser persists an account keyed by email. The existence check
// and the insert share one transaction, so a duplicate registration
// for the same email always fails for exactly one of the callers.
func (r *UserRepository) CreateUser(email, hashedPassword string) (User, error) {
	next, err := r.seq.Next()
	if err != nil {
		return User{}, fmt.Errorf("%w: user id allocation: %v", apperrors.ErrUnavailable, err)
	}
	user := User{
		ID:           int64(next + 1),
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(user)
	if err != nil {
		return User{}, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		key := userKey(email)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: email already registered", apperrors.ErrConflict)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(email), &user)
	})
	if err == badger.ErrKeyNotFound {
		return User{}, fmt.Errorf("%w: unknown account", apperrors.ErrNotFound)
	}
	return user, err
}
