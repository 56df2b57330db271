package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CASTWATCH_TMDB_API_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 8080 {
		t.Fatalf("expected default port 8080 got %d", cfg.AppPort)
	}
	if cfg.RateLimit.TrustForwardedFor {
		t.Fatal("expected X-Forwarded-For to be untrusted by default")
	}
	if cfg.WriteTimeout != time.Minute {
		t.Fatalf("expected 1m write timeout got %v", cfg.WriteTimeout)
	}
	if cfg.Catalog.PageDelay != 100*time.Millisecond {
		t.Fatalf("expected 100ms page delay got %v", cfg.Catalog.PageDelay)
	}
	if cfg.Catalog.RequestsPerSecond != 10 {
		t.Fatalf("expected 10 rps got %v", cfg.Catalog.RequestsPerSecond)
	}
	if cfg.Catalog.BaseURL != "https://api.themoviedb.org/3" {
		t.Fatalf("unexpected base url %q", cfg.Catalog.BaseURL)
	}
	if cfg.Messages.InvalidAPIKey == "" || cfg.Messages.InvalidDateRange == "" {
		t.Fatalf("expected default messages: %+v", cfg.Messages)
	}
}

func TestLoadOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CASTWATCH_TMDB_API_KEY", "secret")
	t.Setenv("CASTWATCH_PORT", "9090")
	t.Setenv("CASTWATCH_TMDB_BASE_URL", "http://catalog.local/3/")
	t.Setenv("CASTWATCH_TMDB_PAGE_DELAY", "250ms")
	t.Setenv("CASTWATCH_ERROR_USER_EXISTS", "taken")
	t.Setenv("CASTWATCH_RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("CASTWATCH_CORS_ORIGINS", " http://a.test, ,http://b.test")
	t.Setenv("CASTWATCH_TRUST_FORWARDED_FOR", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 9090 {
		t.Fatalf("expected port override got %d", cfg.AppPort)
	}
	if cfg.Catalog.BaseURL != "http://catalog.local/3" {
		t.Fatalf("expected trailing slash trimmed got %q", cfg.Catalog.BaseURL)
	}
	if cfg.Catalog.PageDelay != 250*time.Millisecond {
		t.Fatalf("expected page delay override got %v", cfg.Catalog.PageDelay)
	}
	if cfg.Messages.UserExists != "taken" {
		t.Fatalf("expected message override got %q", cfg.Messages.UserExists)
	}
	if cfg.RateLimit.Burst != 10 {
		t.Fatalf("expected invalid int to fall back got %d", cfg.RateLimit.Burst)
	}
	if !cfg.RateLimit.TrustForwardedFor {
		t.Fatal("expected forwarded-for trust override")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "http://a.test" || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
}

func TestLoadRequiresCatalogKey(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CASTWATCH_TMDB_API_KEY", "")

	if _, err := Load(); !errors.Is(err, ErrMissingCatalogKey) {
		t.Fatalf("expected ErrMissingCatalogKey got %v", err)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("CASTWATCH_TMDB_API_KEY", "")
	os.Unsetenv("CASTWATCH_TMDB_API_KEY")
	t.Setenv("CASTWATCH_TMDB_LANGUAGE", "")
	os.Unsetenv("CASTWATCH_TMDB_LANGUAGE")

	contents := "CASTWATCH_TMDB_API_KEY=from-file\nCASTWATCH_TMDB_LANGUAGE=ru-RU\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(contents), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("CASTWATCH_TMDB_API_KEY")
		os.Unsetenv("CASTWATCH_TMDB_LANGUAGE")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Catalog.APIKey != "from-file" || cfg.Catalog.Language != "ru-RU" {
		t.Fatalf("expected values from .env got %+v", cfg.Catalog)
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := (Config{LogLevel: in}).SlogLevel(); got != want {
			t.Fatalf("level %q: expected %v got %v", in, want, got)
		}
	}
}
