// File: internal/infra/web/guard.go
package web

import (
	"context"
	"net/http"
	"time"

	"finiq-ai-pipeline/internal/infra/logging"
	"finiq-ai-pipeline/internal/infra/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Middleware func(http.Handler) http.Handler

// TraceID tags every request context with a fresh trace id so log lines from
// the handler and anything it calls can be correlated.
func TraceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := uuid.NewString()
			ctx := logging.WithTraceID(r.Context(), tid)
			w.Header().Set("X-Trace-Id", tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logging.With(r.Context(), logger)
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			metrics.ObserveHTTPRequest(r.Method, route, ww.status, elapsed.Milliseconds())
			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.status).
				Dur("duration", elapsed).
				Msg("http_request")
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func Recover(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					l := logging.With(r.Context(), logger)
					l.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("panic recovered")
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
