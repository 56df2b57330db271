package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/castwatch/backend/internal/catalog"
	"github.com/castwatch/backend/internal/config"
	"github.com/castwatch/backend/internal/models"
	"github.com/castwatch/backend/internal/repositories"
)

var testMessages = config.ErrorMessages{
	UserExists:          "user exists",
	InvalidAPIKey:       "invalid api key",
	ActorNotFound:       "actor not found",
	ActorNotInFavorites: "actor not in favorites",
	MovieNotFound:       "movie not found",
	InvalidDateRange:    "invalid date range",
}

type inMemoryUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]models.User
	saves  int
	err    error

	// interfere runs inside Save before the version check, standing in for
	// another request that saved the same user first.
	interfere func(users map[int64]models.User)
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[int64]models.User)}
}

func (s *inMemoryUserStore) FindByLogin(_ context.Context, login string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.Login == login })
}

func (s *inMemoryUserStore) FindByAPIKey(_ context.Context, apiKey string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.APIKey == apiKey })
}

func (s *inMemoryUserStore) find(match func(models.User) bool) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.User{}, s.err
	}
	for _, u := range s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) Save(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.User{}, s.err
	}
	if s.interfere != nil {
		s.interfere(s.users)
	}
	for id, u := range s.users {
		if id != user.ID && (u.Login == user.Login || u.APIKey == user.APIKey) {
			return models.User{}, repositories.ErrConflict
		}
	}
	if user.ID == 0 {
		s.nextID++
		user.ID = s.nextID
	} else if existing, ok := s.users[user.ID]; ok {
		if existing.Version != user.Version {
			return models.User{}, repositories.ErrStale
		}
		user.APIKey = existing.APIKey
		user.Version++
	} else {
		return models.User{}, repositories.ErrNotFound
	}
	s.saves++
	s.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (s *inMemoryUserStore) add(t *testing.T, login, apiKey string) models.User {
	t.Helper()
	user, err := s.Save(context.Background(), models.NewUser(login, "hash", apiKey))
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	s.saves = 0
	return user
}

func (s *inMemoryUserStore) get(t *testing.T, id int64) models.User {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		t.Fatalf("user %d not stored", id)
	}
	return cloneUser(user)
}

func cloneUser(u models.User) models.User {
	u.FavoriteActors = models.NewIDSet(u.FavoriteActors.Slice()...)
	u.WatchedMovies = models.NewIDSet(u.WatchedMovies.Slice()...)
	return u
}

type fetchCall struct {
	kind catalog.Kind
	id   int64
}

type fakeCatalog struct {
	known map[catalog.Kind]map[int64]bool
	err   error
	calls []fetchCall
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{known: map[catalog.Kind]map[int64]bool{
		catalog.KindPerson: {},
		catalog.KindMovie:  {},
	}}
}

func (c *fakeCatalog) with(kind catalog.Kind, ids ...int64) *fakeCatalog {
	for _, id := range ids {
		c.known[kind][id] = true
	}
	return c
}

func (c *fakeCatalog) FetchEntity(_ context.Context, kind catalog.Kind, id int64) (catalog.Entity, error) {
	c.calls = append(c.calls, fetchCall{kind: kind, id: id})
	if c.err != nil {
		return catalog.Entity{}, c.err
	}
	if !c.known[kind][id] {
		return catalog.Entity{}, fmt.Errorf("fetch %s %d: %w", kind, id, catalog.ErrNotFound)
	}
	raw := fmt.Sprintf(`{"id":%d,"kind":%q}`, id, kind)
	return catalog.Entity{ID: id, Raw: json.RawMessage(raw)}, nil
}

type fakeDiscoverer struct {
	movies            []catalog.Entity
	err               error
	gotUser           models.User
	gotYear, gotMonth int
}

func (d *fakeDiscoverer) UnwatchedMovies(_ context.Context, user models.User, year, month int) ([]catalog.Entity, error) {
	d.gotUser, d.gotYear, d.gotMonth = user, year, month
	if d.err != nil {
		return nil, d.err
	}
	return d.movies, nil
}

var errBoom = errors.New("boom")

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

type searchFunc func(q catalog.DiscoverQuery) ([]catalog.Entity, error)

func (f searchFunc) DiscoverMovies(_ context.Context, q catalog.DiscoverQuery) ([]catalog.Entity, error) {
	return f(q)
}
