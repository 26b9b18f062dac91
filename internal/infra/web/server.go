// File: internal/infra/web/server.go
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"finiq-ai-pipeline/internal/config"
	"finiq-ai-pipeline/internal/ratelimit"
	"finiq-ai-pipeline/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const requestTimeout = 30 * time.Second

// Server carries the public generation API and the admin surface. They listen
// on separate ports so the admin port can stay off the public ingress.
type Server struct {
	blueprints  usecase.BlueprintService
	cache       usecase.CacheService
	userLimiter *ratelimit.Limiter
	auth        *AuthManager
	apiKey      string
	log         *zerolog.Logger

	public *http.Server
	admin  *http.Server
}

func NewServer(
	cfg *config.Config,
	blueprints usecase.BlueprintService,
	cache usecase.CacheService,
	userLimiter *ratelimit.Limiter,
	logger *zerolog.Logger,
) *Server {
	comp := logger.With().Str("component", "web").Logger()
	s := &Server{
		blueprints:  blueprints,
		cache:       cache,
		userLimiter: userLimiter,
		apiKey:      cfg.Admin.APIKey,
		log:         &comp,
	}
	if cfg.Admin.JWTSecret != "" {
		s.auth = NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	}
	s.public = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.admin = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           s.AdminRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the public API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(requestTimeout))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/blueprints", s.handleCreateBlueprint)
		r.Route("/blueprints/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetBlueprint)
			r.Get("/job", s.handleBlueprintJob)
			r.Post("/generate", s.handleRegenerate)
		})
		r.Get("/jobs/{id}", s.handleGetJob)
	})
	return r
}

// AdminRoutes builds the admin router, including the Prometheus endpoint.
func (s *Server) AdminRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(requestTimeout))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Post("/login", s.handleAdminLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/jobs", s.handleAdminJobs)
			r.Get("/cache/stats", s.handleCacheStats)
			r.Post("/cache/warmup", s.handleCacheWarmup)
			r.Delete("/cache/keys/{key}", s.handleCacheDeleteKey)
			r.Delete("/cache/namespaces/{ns}", s.handleCacheClearNamespace)
			r.Delete("/cache", s.handleCacheClearAll)
		})
	})
	return r
}

// Start brings both listeners up and returns immediately. Listener failures
// after startup are logged, not returned.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.public.Addr).Msg("public API listening")
		if err := s.public.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("public server stopped")
		}
	}()
	go func() {
		s.log.Info().Str("addr", s.admin.Addr).Msg("admin API listening")
		if err := s.admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("admin server stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(s.public.Shutdown(ctx), s.admin.Shutdown(ctx))
}
