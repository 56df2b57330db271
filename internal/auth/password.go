package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash for passwords over MaxPasswordBytes.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// PasswordHasher hashes user passwords with bcrypt at a fixed cost.
type PasswordHasher struct {
	Cost int
}

// Hash returns the bcrypt hash of password.
func (h PasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}
