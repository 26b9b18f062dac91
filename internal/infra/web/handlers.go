// File: internal/infra/web/handlers.go
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"finiq-ai-pipeline/internal/domain"
	"finiq-ai-pipeline/internal/domain/model"
	"finiq-ai-pipeline/internal/infra/logging"
	"finiq-ai-pipeline/internal/infra/metrics"
	"finiq-ai-pipeline/internal/usecase"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

type createBlueprintRequest struct {
	UserID string          `json:"user_id"`
	Idea   string          `json:"idea"`
	Input  json.RawMessage `json:"input,omitempty"`
}

type enqueuedResponse struct {
	BlueprintID string `json:"blueprint_id"`
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
}

type jobResponse struct {
	ID          string    `json:"id"`
	BlueprintID string    `json:"blueprint_id"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"current_step"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// toJobResponse shapes the public job view. Partial chain context and the
// result stay off this surface: failures expose the short message only, and
// completed strategies are served from the blueprint endpoint.
func toJobResponse(j *model.Job) jobResponse {
	return jobResponse{
		ID:          j.ID,
		BlueprintID: j.BlueprintID,
		Status:      string(j.Status),
		Progress:    j.Progress,
		CurrentStep: j.CurrentStep,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

type blueprintResponse struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Idea      string                 `json:"idea"`
	Input     model.StartupInput     `json:"input"`
	Status    string                 `json:"status"`
	Strategy  *model.FinanceStrategy `json:"strategy,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func toBlueprintResponse(b *model.Blueprint) blueprintResponse {
	return blueprintResponse{
		ID:        b.ID,
		UserID:    b.UserID,
		Idea:      b.Idea,
		Input:     b.Input,
		Status:    string(b.Status),
		Strategy:  b.Strategy,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeDomainError maps sentinel errors to HTTP statuses. Anything unmapped
// is a 500 with a generic body; the real cause is already logged.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrGenerationInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, dst any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	return dec.Decode(dst)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateBlueprint accepts an idea, creates the blueprint record and
// queues a generation job. The reply comes back before any agent runs.
func (s *Server) handleCreateBlueprint(w http.ResponseWriter, r *http.Request) {
	var req createBlueprintRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Idea == "" {
		writeError(w, http.StatusUnprocessableEntity, "idea is required")
		return
	}

	limiterID := req.UserID
	if limiterID == "" {
		limiterID = "anonymous"
	}
	ctx := logging.WithUserID(r.Context(), limiterID)
	if !s.allowUser(ctx, w, limiterID) {
		return
	}

	bp, job, err := s.blueprints.Create(ctx, req.UserID, req.Idea, req.Input)
	if err != nil {
		logging.With(ctx, s.log).Warn().Err(err).Msg("blueprint create rejected")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, enqueuedResponse{
		BlueprintID: bp.ID,
		JobID:       job.ID,
		Status:      string(job.Status),
	})
}

// allowUser runs the request through the per-user sliding window. On
// rejection it answers 429 itself and bumps the rate_limit: diagnostic
// counter so operators can see who is being throttled.
func (s *Server) allowUser(ctx context.Context, w http.ResponseWriter, userID string) bool {
	if s.userLimiter == nil {
		return true
	}
	if s.userLimiter.Allow(userID) {
		metrics.IncRateLimit("user", true)
		return true
	}
	metrics.IncRateLimit("user", false)

	retryAfter := int(math.Ceil(time.Until(s.userLimiter.ResetAt(userID)).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	if s.cache != nil {
		key := usecase.NamespaceRateLimit + "rejected:" + userID
		if _, err := s.cache.Increment(ctx, key, 1); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("rate limit counter not recorded")
		}
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited.Error())
	return false
}

// handleRegenerate queues a fresh job for an existing blueprint. The subject
// lease turns concurrent attempts into 409s.
func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.blueprints.Regenerate(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, enqueuedResponse{
		BlueprintID: id,
		JobID:       job.ID,
		Status:      string(job.Status),
	})
}

func (s *Server) handleGetBlueprint(w http.ResponseWriter, r *http.Request) {
	bp, err := s.blueprints.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBlueprintResponse(bp))
}

func (s *Server) handleBlueprintJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.blueprints.JobForBlueprint(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.blueprints.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// ===== Admin handlers =====

type adminLoginRequest struct {
	APIKey string `json:"api_key"`
}

// handleAdminLogin trades the static API key for a short-lived JWT session
// cookie, so the key itself never lands in browser storage.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusNotImplemented, "session login not configured")
		return
	}
	var req adminLoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if s.apiKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.apiKey)) != 1 {
		metrics.IncAdminOp("login", "denied")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	token, expires, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("session mint failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	metrics.IncAdminOp("login", "ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expires,
	})
}

func (s *Server) handleAdminJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	jobs := s.blueprints.RecentJobs(r.Context(), limit)
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  out,
		"count": len(out),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		metrics.IncAdminOp("cache_stats", "error")
		writeDomainError(w, err)
		return
	}
	metrics.IncAdminOp("cache_stats", "ok")
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheDeleteKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	existed, err := s.cache.Delete(r.Context(), key)
	if err != nil {
		metrics.IncAdminOp("cache_delete", "error")
		writeDomainError(w, err)
		return
	}
	metrics.IncAdminOp("cache_delete", "ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"key":     key,
		"deleted": existed,
	})
}

func (s *Server) handleCacheClearNamespace(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")
	cleared, err := s.cache.ClearNamespace(r.Context(), ns)
	if err != nil {
		metrics.IncAdminOp("cache_clear_ns", "error")
		writeDomainError(w, err)
		return
	}
	metrics.IncAdminOp("cache_clear_ns", "ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"namespace": ns,
		"cleared":   cleared,
	})
}

func (s *Server) handleCacheClearAll(w http.ResponseWriter, r *http.Request) {
	cleared, err := s.cache.ClearAll(r.Context())
	if err != nil {
		metrics.IncAdminOp("cache_clear_all", "error")
		writeDomainError(w, err)
		return
	}
	metrics.IncAdminOp("cache_clear_all", "ok")
	writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}

type warmupRequest struct {
	BlueprintIDs []string `json:"blueprint_ids"`
}

func (s *Server) handleCacheWarmup(w http.ResponseWriter, r *http.Request) {
	var req warmupRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	warmed, err := s.cache.WarmUp(r.Context(), req.BlueprintIDs)
	if err != nil {
		metrics.IncAdminOp("cache_warmup", "error")
		writeDomainError(w, err)
		return
	}
	metrics.IncAdminOp("cache_warmup", "ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"warmed":    warmed,
		"requested": len(req.BlueprintIDs),
	})
}
