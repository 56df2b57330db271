package repositories

import (
	"context"

	"github.com/castwatch/backend/internal/models"
)

// UserRepository defines the data access contract for users and the id sets they own.
type UserRepository interface {
	FindByLogin(ctx context.Context, login string) (models.User, error)
	FindByAPIKey(ctx context.Context, apiKey string) (models.User, error)
	Save(ctx context.Context, user models.User) (models.User, error)
	Delete(ctx context.Context, userID int64) error
}
