package auth

import (
	"fmt"

	apperrors "github.com/Finding-a-partner/finding-a-partner/errors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=12,max=72"`
}

// ValidateRegister checks email format and password length before any
// expensive hashing happens.
func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidRequest, err)
	}
	return nil
}
