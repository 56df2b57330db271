package app

import (
	"net/http"

	"github.com/castwatch/backend/internal/auth"
	"github.com/castwatch/backend/internal/catalog"
	"github.com/castwatch/backend/internal/config"
	"github.com/castwatch/backend/internal/db"
	"github.com/castwatch/backend/internal/discovery"
	"github.com/castwatch/backend/internal/handlers"
	"github.com/castwatch/backend/internal/middleware"
	"github.com/castwatch/backend/internal/repositories"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(pool db.Pool, cfg config.Config) handlers.Dependencies {
	client := catalog.NewClient(cfg.Catalog)

	deps := handlers.Dependencies{
		Users:     repositories.NewPostgresUserRepository(pool),
		Hasher:    auth.PasswordHasher{Cost: cfg.BcryptCost},
		NewKey:    auth.NewAPIKey,
		Catalog:   client,
		Discovery: discovery.NewEngine(client, cfg.Catalog.PageDelay),
		Messages:  cfg.Messages,
		Limiter:   middleware.NewClientRateLimiter(cfg.RateLimit),

		AllowedOrigins:    cfg.CORSOrigins,
		TrustForwardedFor: cfg.RateLimit.TrustForwardedFor,
	}
	if pinger, ok := pool.(handlers.Pinger); ok {
		deps.DB = pinger
	}
	return deps
}

func buildRouter(pool db.Pool, cfg config.Config) http.Handler {
	return handlers.NewRouter(buildDependencies(pool, cfg))
}
