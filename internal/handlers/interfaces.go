package handlers

import (
	"context"

	"github.com/castwatch/backend/internal/catalog"
	"github.com/castwatch/backend/internal/models"
)

// UserStore captures the persistence operations required by the handlers.
type UserStore interface {
	FindByLogin(ctx context.Context, login string) (models.User, error)
	FindByAPIKey(ctx context.Context, apiKey string) (models.User, error)
	Save(ctx context.Context, user models.User) (models.User, error)
}

// PasswordHasher turns a plain password into its stored form.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// EntityFetcher looks up a single person or movie in the upstream catalog.
type EntityFetcher interface {
	FetchEntity(ctx context.Context, kind catalog.Kind, id int64) (catalog.Entity, error)
}

// MovieDiscoverer finds a user's unwatched movies for a month.
type MovieDiscoverer interface {
	UnwatchedMovies(ctx context.Context, user models.User, year, month int) ([]catalog.Entity, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
