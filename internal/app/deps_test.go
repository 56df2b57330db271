package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castwatch/backend/internal/config"
	"github.com/castwatch/backend/internal/discovery"
)

type fakePool struct {
	pingErr error
}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func (p fakePool) Ping(context.Context) error { return p.pingErr }

type poolWithoutPing struct{}

func (poolWithoutPing) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (poolWithoutPing) Close() {}

func testConfig() config.Config {
	return config.Config{
		BcryptCost: 4,
		Catalog: config.CatalogConfig{
			BaseURL:           "http://catalog.invalid/3",
			APIKey:            "key",
			Timeout:           time.Second,
			RequestsPerSecond: 5,
			PageDelay:         250 * time.Millisecond,
		},
		RateLimit: config.RateLimitConfig{Requests: 10, Window: time.Second, Burst: 2},
		Messages:  config.ErrorMessages{InvalidAPIKey: "bad key"},
	}
}

func TestBuildDependencies(t *testing.T) {
	deps := buildDependencies(fakePool{}, testConfig())

	if deps.Users == nil {
		t.Fatal("expected user repository to be configured")
	}
	if deps.Hasher == nil || deps.NewKey == nil {
		t.Fatal("expected credential helpers to be configured")
	}
	if deps.Catalog == nil {
		t.Fatal("expected catalog client to be configured")
	}
	engine, ok := deps.Discovery.(*discovery.Engine)
	if !ok {
		t.Fatalf("expected discovery engine, got %T", deps.Discovery)
	}
	if engine.PageDelay != 250*time.Millisecond {
		t.Fatalf("expected configured page delay, got %v", engine.PageDelay)
	}
	if deps.Limiter == nil {
		t.Fatal("expected rate limiter to be configured")
	}
	if deps.DB == nil {
		t.Fatal("expected pool to back the health check")
	}
	if deps.Messages.InvalidAPIKey != "bad key" {
		t.Fatalf("expected configured messages, got %+v", deps.Messages)
	}
}

func TestBuildDependenciesWithoutPinger(t *testing.T) {
	if deps := buildDependencies(poolWithoutPing{}, testConfig()); deps.DB != nil {
		t.Fatal("expected no health pinger")
	}
}

func TestBuildRouterServesHealth(t *testing.T) {
	router := buildRouter(fakePool{pingErr: errors.New("down")}, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when database is down, got %d", rec.Code)
	}
}

func TestRunRejectsUnknownCommands(t *testing.T) {
	if err := Run(context.Background(), nil); err == nil {
		t.Fatal("expected error without command")
	}
	if err := Run(context.Background(), []string{"seed"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
	if err := Run(context.Background(), []string{"migrate", "down"}); err == nil {
		t.Fatal("expected error for unknown migrate command")
	}
}
