package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/castwatch/backend/internal/config"
	"github.com/castwatch/backend/internal/logging"
)

const defaultClientTTL = 5 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(key string) bool
}

// ClientRateLimiter keeps one token bucket per client key and forgets idle clients after ttl.
type ClientRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

// NewClientRateLimiter allows cfg.Requests events per cfg.Window for each key,
// plus cfg.Burst. Non-positive settings fall back to one request per second.
func NewClientRateLimiter(cfg config.RateLimitConfig) *ClientRateLimiter {
	requests, window, burst := cfg.Requests, cfg.Window, cfg.Burst
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if burst <= 0 {
		burst = 1
	}

	return &ClientRateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   burst,
		ttl:     defaultClientTTL,
		now:     time.Now,
	}
}

func (l *ClientRateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	now := l.now()
	c := l.clientLocked(key, now)
	l.gcLocked(now)
	l.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

func (l *ClientRateLimiter) clientLocked(key string, now time.Time) *client {
	if c, ok := l.clients[key]; ok {
		c.lastSeen = now
		return c
	}

	c := &client{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.clients[key] = c
	return c
}

func (l *ClientRateLimiter) gcLocked(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > l.ttl {
			delete(l.clients, key)
		}
	}
}

// WithNowFunc allows tests to override the time source.
func (l *ClientRateLimiter) WithNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// RateLimit rejects requests from clients that exceed the limiter with 429 and
// an error envelope. A nil limiter lets everything through. trustForwarded is
// passed to ClientIP.
func RateLimit(limiter RateLimiter, trustForwarded bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, trustForwarded)
			if !limiter.Allow(ip) {
				logging.FromContext(r.Context()).Warn("rate limit exceeded", "client_ip", ip)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of RemoteAddr. With trustForwarded it prefers
// the first X-Forwarded-For hop, which any client can set unless a proxy in
// front rewrites it.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
