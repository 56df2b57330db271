package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/castwatch/backend/internal/catalog"
	"github.com/castwatch/backend/internal/config"
	"github.com/castwatch/backend/internal/discovery"
	"github.com/castwatch/backend/internal/logging"
	"github.com/castwatch/backend/internal/models"
	"github.com/castwatch/backend/internal/repositories"
)

const maxSaveAttempts = 3

// MovieHandler implements the favorite-actor, watched-movie and discovery endpoints.
type MovieHandler struct {
	Users     UserStore
	Catalog   EntityFetcher
	Discovery MovieDiscoverer
	Messages  config.ErrorMessages
}

// AddFavoriteActor handles GET /api/addFavoriteActor/{actorId}.
func (h MovieHandler) AddFavoriteActor(w http.ResponseWriter, r *http.Request) {
	actorID, ok := pathID(w, r, "actorId")
	if !ok {
		return
	}
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	actor, ok := h.fetch(w, r, catalog.KindPerson, actorID, h.Messages.ActorNotFound)
	if !ok {
		return
	}

	if !h.saveWith(w, r, user, func(u *models.User) { u.FavoriteActors.Add(actorID) }) {
		return
	}
	respondValue(r.Context(), w, "added_favorite_actor", actor)
}

// RemoveFavoriteActor handles GET /api/removeFavoriteActor/{actorId}.
// Actors outside the favorites are refused without asking the catalog.
func (h MovieHandler) RemoveFavoriteActor(w http.ResponseWriter, r *http.Request) {
	actorID, ok := pathID(w, r, "actorId")
	if !ok {
		return
	}
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if !user.FavoriteActors.Has(actorID) {
		respondDomainError(r.Context(), w, h.Messages.ActorNotInFavorites)
		return
	}

	actor, ok := h.fetch(w, r, catalog.KindPerson, actorID, h.Messages.ActorNotFound)
	if !ok {
		return
	}

	if !h.saveWith(w, r, user, func(u *models.User) { u.FavoriteActors.Remove(actorID) }) {
		return
	}
	respondValue(r.Context(), w, "removed_favorite_actor", actor)
}

// MarkMovieWatched handles GET /api/markMovieWatched/{movieId}.
func (h MovieHandler) MarkMovieWatched(w http.ResponseWriter, r *http.Request) {
	movieID, ok := pathID(w, r, "movieId")
	if !ok {
		return
	}
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	movie, ok := h.fetch(w, r, catalog.KindMovie, movieID, h.Messages.MovieNotFound)
	if !ok {
		return
	}

	if !h.saveWith(w, r, user, func(u *models.User) { u.WatchedMovies.Add(movieID) }) {
		return
	}
	respondValue(r.Context(), w, "watched_movie", movie)
}

// SearchMoviesByYearMonth handles GET /api/searchMoviesByYearMonth/{year}/{month}.
func (h MovieHandler) SearchMoviesByYearMonth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "year must be an integer")
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "month must be an integer")
		return
	}

	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if h.Discovery == nil {
		logging.FromContext(ctx).Error("discovery engine unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "discovery unavailable")
		return
	}

	movies, err := h.Discovery.UnwatchedMovies(ctx, user, year, month)
	switch {
	case err == nil:
		respondValue(ctx, w, "unwatched_movies", movies)
	case errors.Is(err, discovery.ErrInvalidDateRange):
		respondDomainError(ctx, w, h.Messages.InvalidDateRange)
	default:
		h.upstreamFailure(w, r, err)
	}
}

// authenticate resolves the caller from the apiKey query parameter and writes
// the refusal itself when that fails.
func (h MovieHandler) authenticate(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	ctx := r.Context()
	if h.Users == nil {
		logging.FromContext(ctx).Error("user store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "user store unavailable")
		return models.User{}, false
	}

	apiKey := r.URL.Query().Get("apiKey")
	if apiKey == "" {
		respondDomainError(ctx, w, h.Messages.InvalidAPIKey)
		return models.User{}, false
	}

	user, err := h.Users.FindByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondDomainError(ctx, w, h.Messages.InvalidAPIKey)
			return models.User{}, false
		}
		logging.FromContext(ctx).Error("api key lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to verify api key")
		return models.User{}, false
	}

	if user.FavoriteActors == nil {
		user.FavoriteActors = models.NewIDSet()
	}
	if user.WatchedMovies == nil {
		user.WatchedMovies = models.NewIDSet()
	}
	return user, true
}

func (h MovieHandler) fetch(w http.ResponseWriter, r *http.Request, kind catalog.Kind, id int64, notFound string) (catalog.Entity, bool) {
	ctx := r.Context()
	if h.Catalog == nil {
		logging.FromContext(ctx).Error("catalog client unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "catalog unavailable")
		return catalog.Entity{}, false
	}

	entity, err := h.Catalog.FetchEntity(ctx, kind, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondDomainError(ctx, w, notFound)
			return catalog.Entity{}, false
		}
		h.upstreamFailure(w, r, err)
		return catalog.Entity{}, false
	}
	return entity, true
}

// saveWith applies mutate to user and saves it. When another request saved
// the same user in between, the user is reloaded and mutate applied again.
func (h MovieHandler) saveWith(w http.ResponseWriter, r *http.Request, user models.User, mutate func(*models.User)) bool {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	for attempt := 1; ; attempt++ {
		mutate(&user)
		_, err := h.Users.Save(ctx, user)
		if err == nil {
			return true
		}
		if !errors.Is(err, repositories.ErrStale) || attempt == maxSaveAttempts {
			logger.Error("failed to save user", "error", err, "user_id", user.ID, "attempt", attempt)
			respondError(ctx, w, http.StatusInternalServerError, "failed to save changes")
			return false
		}

		logger.Warn("user changed concurrently, reloading", "user_id", user.ID, "attempt", attempt)
		if user, err = h.Users.FindByAPIKey(ctx, user.APIKey); err != nil {
			logger.Error("failed to reload user", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "failed to save changes")
			return false
		}
	}
}

func (h MovieHandler) upstreamFailure(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logging.FromContext(ctx).Error("movie catalog request failed", "error", err)
	respondError(ctx, w, http.StatusBadGateway, "movie catalog unavailable")
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return id, true
}
