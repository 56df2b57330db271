package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/castwatch/backend/internal/logging"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *responseWriter) WriteHeader(status int) {
	if rw.status != 0 {
		return
	}
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (rw *responseWriter) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

// RequestLogger attaches a request-scoped logger and request id to the context,
// recovers panics as 500s and logs one line per completed request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			reqLogger := base.With(
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("client_ip", ClientIP(r, false)),
				slog.String("forwarded_for", r.Header.Get("X-Forwarded-For")),
			)

			ctx := logging.WithLogger(r.Context(), reqLogger)
			ctx = logging.WithRequestID(ctx, requestID)

			wrapped := &responseWriter{ResponseWriter: w}

			defer func() {
				if rec := recover(); rec != nil {
					reqLogger.Error("panic recovered", "panic", rec)
					if wrapped.status == 0 {
						wrapped.Header().Set("Content-Type", "application/json")
						wrapped.WriteHeader(http.StatusInternalServerError)
						_, _ = wrapped.Write([]byte(`{"error":"internal server error"}` + "\n"))
					}
				}

				level := slog.LevelInfo
				if wrapped.Status() >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				reqLogger.Log(ctx, level, "request completed",
					slog.Int("status", wrapped.Status()),
					slog.Int("bytes", wrapped.bytes),
					slog.Duration("duration", time.Since(start)),
				)
			}()

			next.ServeHTTP(wrapped, r.WithContext(ctx))
		})
	}
}
