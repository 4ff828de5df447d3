//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"

	"github.com/Finding-a-partner/finding-a-partner/auth"
	"github.com/Finding-a-partner/finding-a-partner/domain"
	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/Finding-a-partner/finding-a-partner/repositories"
)

type Token string

type IAuthService interface {
	Register(email, password string) (Token, error)
	Login(email, password string) (Token, error)
	Verify(token string) (domain.Identity, error)
}

// AuthService is the identity collaborator: it issues session tokens
// at register/login time and verifies them at connect time.
type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.Tokens
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.Tokens) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Register(email, password string) (Token, error) {
	// Validate before the expensive hash.
	if err := auth.ValidateRegister(auth.RegisterRequest{Email: email, Password: password}); err != nil {
		return "", err
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.CreateUser(email, hashed)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", err
	}
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		// Same answer for unknown email and wrong password, so the
		// endpoint cannot be used to enumerate accounts.
		return "", fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthenticated)
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthenticated)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", err
	}
	return Token(token), nil
}

// Verify resolves a session token into the identity it was issued for.
func (s *AuthService) Verify(token string) (domain.Identity, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.UserIdentity(claims.UserID), nil
}
