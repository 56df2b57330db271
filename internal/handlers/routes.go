package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/castwatch/backend/internal/auth"
	"github.com/castwatch/backend/internal/config"
	"github.com/castwatch/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users     UserStore
	Hasher    PasswordHasher
	NewKey    auth.KeyFunc
	Catalog   EntityFetcher
	Discovery MovieDiscoverer
	Messages  config.ErrorMessages
	Limiter   middleware.RateLimiter
	DB        Pinger

	// AllowedOrigins enables CORS for browser clients when non-empty.
	AllowedOrigins []string

	// TrustForwardedFor keys the rate limiter by X-Forwarded-For.
	TrustForwardedFor bool
}

// NewRouter wires the HTTP handlers into a chi router. The /api routes sit
// behind the per-client rate limiter.
func NewRouter(deps Dependencies) chi.Router {
	health := HealthHandler{DB: deps.DB}
	users := UserHandler{
		Users:    deps.Users,
		Hasher:   deps.Hasher,
		NewKey:   deps.NewKey,
		Messages: deps.Messages,
		Validate: NewValidator(),
	}
	movies := MovieHandler{
		Users:     deps.Users,
		Catalog:   deps.Catalog,
		Discovery: deps.Discovery,
		Messages:  deps.Messages,
	}

	r := chi.NewRouter()
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondError(req.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(req.Context(), w, http.StatusNotFound, "not found")
	})

	r.Get("/healthz", health.Handle)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.Limiter, deps.TrustForwardedFor))
		r.Post("/registerUser", users.Register)
		r.Get("/addFavoriteActor/{actorId}", movies.AddFavoriteActor)
		r.Get("/removeFavoriteActor/{actorId}", movies.RemoveFavoriteActor)
		r.Get("/markMovieWatched/{movieId}", movies.MarkMovieWatched)
		r.Get("/searchMoviesByYearMonth/{year}/{month}", movies.SearchMoviesByYearMonth)
	})
	return r
}
