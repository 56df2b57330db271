package auth

import (
	"strings"

	"github.com/google/uuid"
)

// NewAPIKey returns a fresh opaque access token: a random UUID rendered as 32
// lowercase hex characters.
func NewAPIKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// KeyFunc produces access tokens. Handlers accept one so tests can pin the value.
type KeyFunc func() string
