package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"brightsteps/internal/logger"
	"brightsteps/internal/service"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// APIHandler serves the JSON progress API
type APIHandler struct {
	progressService *service.ProgressService
	db              Pinger
	log             *logger.Logger
}

// NewAPIHandler creates a new API handler. db may be nil, which makes the
// health check report ok without a ping.
func NewAPIHandler(progressService *service.ProgressService, db Pinger, log *logger.Logger) *APIHandler {
	return &APIHandler{
		progressService: progressService,
		db:              db,
		log:             log,
	}
}

// RegisterRoutes adds every API route to mux. Writes go through the rate limiter.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux, mw *Middleware) {
	mux.HandleFunc("GET /healthz", h.Health)

	mux.HandleFunc("GET /api/children", h.ListChildren)
	mux.HandleFunc("POST /api/children", mw.RateLimit(h.CreateChild))
	mux.HandleFunc("GET /api/children/{id}", h.GetChild)
	mux.HandleFunc("POST /api/children/{id}/completions", mw.RateLimit(h.RecordCompletion))
	mux.HandleFunc("POST /api/children/{id}/challenges/{challengeId}/xp", mw.RateLimit(h.ApplyXP))
	mux.HandleFunc("GET /api/children/{id}/progress", h.Progress)
	mux.HandleFunc("GET /api/children/{id}/rewards", h.Rewards)
	mux.HandleFunc("GET /api/children/{id}/traits", h.Traits)
	mux.HandleFunc("GET /api/children/{id}/dashboard", h.Dashboard)

	mux.HandleFunc("GET /api/challenges", h.ListChallenges)
	mux.HandleFunc("GET /api/pillars", h.ListPillars)
}

// Health pings the database
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			respondWithError(w, h.log, http.StatusServiceUnavailable, ErrUpstreamUnavailable, "Health check failed", err)
			return
		}
	}
	respondWithJSON(w, h.log, http.StatusOK, map[string]string{"status": "ok"})
}

// ListChildren returns every child profile
func (h *APIHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.progressService.ListChildren(r.Context())
	if err != nil {
		respondWithServiceError(w, h.log, "Error listing children", err)
		return
	}
	respondWithJSON(w, h.log, http.StatusOK, children)
}

type createChildRequest struct {
	Name        string `json:"name"`
	AgeRange    string `json:"age_range"`
	ParentEmail string `json:"parent_email"`
}

// CreateChild stores a new child profile
func (h *APIHandler) CreateChild(w http.ResponseWriter, r *http.Request) {
	var req createChildRequest
	if !h.decode(w, r, &req) {
		return
	}
	child, err := h.progressService.CreateChild(r.Context(), req.Name, req.AgeRange, req.ParentEmail)
	if err != nil {
		respondWithServiceError(w, h.log, "Error creating child", err)
		return
	}
	respondWithJSON(w, h.log, http.StatusCreated, child)
}

// GetChild returns one child profile
func (h *APIHandler) GetChild(w http.ResponseWriter, r *http.Request) {
	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	child, err := h.progressService.GetChild(r.Context(), childID)
	if err != nil {
		respondWithServiceError(w, h.log, "Error getting child", err)
		return
	}
	respondWithJSON(w, h.log, http.StatusOK, child)
}

type recordCompletionRequest struct {
	ChallengeID int64      `json:"challenge_id"`
	Feeling     *int       `json:"feeling"`
	CompletedAt *time.Time `json:"completed_at"`
}

// RecordCompletion stores a completion and applies its XP
func (h *APIHandler) RecordCompletion(w http.ResponseWriter, r *http.Request) {
	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	var req recordCompletionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ChallengeID <= 0 {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidChallengeID, "", nil)
		return
	}
	var completedAt time.Time
	if req.CompletedAt != nil {
		completedAt = *req.CompletedAt
	}

	result, err := h.progressService.RecordCompletion(r.Context(), childID, req.ChallengeID, req.Feeling, completedAt)
	if err != nil {
		respondWithServiceError(w, h.log, "Error recording completion", err)
		return
	}
	respondWithJSON(w, h.log, http.StatusCreated, result)
}

type applyXPRequest struct {
	Feeling *int `json:"feeling"`
}

// ApplyXP applies trait XP for an already recorded completion. An empty body
// uses the feeling stored with the completion.
func (h *APIHandler) ApplyXP(w http.ResponseWriter, r *http.Request) {
	childID, ok := h.childID(w, r)
	if !ok {
		return
	}
	challengeID, err := strconv.ParseInt(r.PathValue("challengeId"), 10, 64)
	if err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidChallengeID, "", nil)
		return
	}
	var req applyXPRequest
	if !h.decode(w, r, &req) {
		return
	}

	awards, err := h.progressService.ApplyCompletionXP(r.Context(), childID, challengeID, req.Feeling)
	if err != nil {
		respondWithServiceError(w, h.log, "Error applying XP", err)
		return
	}
	respondWithJSON(w, h.log, http.StatusOK, map[string]interface{}{"xp": awards})
}

// Progress returns the child's progress summary
func (h *APIHandler) Progress(w http.ResponseWriter, r *http.Request) {
	childID, asOf, ok := h.childAndAsOf(w, r)
	if !ok {
		return
	}
	summary, err := h.progressService.ComputeProgressSummary(r.Context(), childID, asOf)
	if err != nil {
		respondWithServiceError(w, h.log, "Error computing progress", err)
		return
	}
	respondWithJSON(w, h.log, http.StatusOK, summary)
}

// Rewards returns earned rewards and the next reward to chase
func (h *APIHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	childID, asOf, ok := h.childAndAsOf(w, r)
	if !ok {
		return
	}
	state, err := h.progressService.ComputeRewardsState(r.Context(), childID, asOf)
	if err != nil {
		respondWithServiceError(w, h.log, "Error computing rewards", err)
		return
	}
	respondWithJSON(w, h.log, http.StatusOK, state)
}

// Traits returns the trait panel
func (h *APIHandler) Traits(w http.ResponseWriter, r *http.Request) {
	childID, asOf, ok := h.childAndAsOf(w, r)
	if !ok {
		return
	}
	panel, err := h.progressService.ComputeTraitPanel(r.Context(), childID, asOf)
	if err != nil {
		respondWithServiceError(w, h.log, "Error computing traits", err)
		return
	}
	respondWithJSON(w, h.log, http.StatusOK, panel)
}

// Dashboard returns progress, rewards and traits in one response
func (h *APIHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	childID, asOf, ok := h.childAndAsOf(w, r)
	if !ok {
		return
	}
	dashboard, err := h.progressService.ComputeDashboard(r.Context(), childID, asOf)
	if err != nil {
		respondWithServiceError(w, h.log, "Error computing dashboard", err)
		return
	}
	respondWithJSON(w, h.log, http.StatusOK, dashboard)
}

// ListChallenges returns the challenge catalog, optionally for one age range
func (h *APIHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.progressService.ListChallenges(r.Context(), r.URL.Query().Get("age_range"))
	if err != nil {
		respondWithServiceError(w, h.log, "Error listing challenges", err)
		return
	}
	respondWithJSON(w, h.log, http.StatusOK, challenges)
}

// ListPillars returns the skill pillars
func (h *APIHandler) ListPillars(w http.ResponseWriter, r *http.Request) {
	pillars, err := h.progressService.ListPillars(r.Context())
	if err != nil {
		respondWithServiceError(w, h.log, "Error listing pillars", err)
		return
	}
	respondWithJSON(w, h.log, http.StatusOK, pillars)
}

// decode reads a JSON body into dst. An empty body leaves dst zero.
func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidJSON, "Bad request body", err)
		return false
	}
	return true
}

func (h *APIHandler) childID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	childID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || childID <= 0 {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidChildID, "", nil)
		return 0, false
	}
	return childID, true
}

// childAndAsOf parses the child ID and the optional as_of query parameter.
// A missing as_of means now.
func (h *APIHandler) childAndAsOf(w http.ResponseWriter, r *http.Request) (int64, time.Time, bool) {
	childID, ok := h.childID(w, r)
	if !ok {
		return 0, time.Time{}, false
	}
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return childID, time.Time{}, true
	}
	asOf, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidAsOf, "", nil)
		return 0, time.Time{}, false
	}
	return childID, asOf, true
}
