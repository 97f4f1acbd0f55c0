// Package api exposes the checklist, history and profile over HTTP for
// clients other than the Telegram bot.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ad/go-strategy-coach/internal/checklist"
	"github.com/ad/go-strategy-coach/internal/models"
	"github.com/ad/go-strategy-coach/internal/services"
	"go.uber.org/zap"
)

const (
	// checklistStaleAfter bounds how long a cached checklist is served before
	// it is reloaded from the store.
	checklistStaleAfter = 30 * time.Second
	shutdownTimeout     = 5 * time.Second
	maxBodyBytes        = 1 << 16
)

type checklistKey struct {
	userID string
	recID  string
}

// checklistEntry is shared by every request for one (user, recommendation),
// so toggles of the same step serialize on a single Sync.
type checklistEntry struct {
	list *checklist.Sync

	loadMu   sync.Mutex
	loadedAt time.Time // zero until a load succeeds; guarded by loadMu
}

type Server struct {
	auth             *JWTAuth
	strategies       *services.StrategyService
	profiles         *services.ProfileService
	progress         checklist.RecordStore
	reconcileTimeout time.Duration
	logger           *zap.Logger
	now              func() time.Time

	mu         sync.Mutex
	checklists map[checklistKey]*checklistEntry
}

func NewServer(
	auth *JWTAuth,
	strategies *services.StrategyService,
	profiles *services.ProfileService,
	progress checklist.RecordStore,
	reconcileTimeout time.Duration,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		auth:             auth,
		strategies:       strategies,
		profiles:         profiles,
		progress:         progress,
		reconcileTimeout: reconcileTimeout,
		logger:           logger.Named("api"),
		now:              time.Now,
		checklists:       make(map[checklistKey]*checklistEntry),
	}
}

func (s *Server) Handler() http.Handler {
	v1 := http.NewServeMux()
	v1.HandleFunc("GET /v1/recommendations/current", s.handleCurrent)
	v1.HandleFunc("GET /v1/recommendations/{id}/progress", s.handleProgress)
	v1.HandleFunc("POST /v1/recommendations/{id}/steps/{step}/toggle", s.handleToggle)
	v1.HandleFunc("GET /v1/history", s.handleHistory)
	v1.HandleFunc("GET /v1/profile", s.handleGetProfile)
	v1.HandleFunc("PUT /v1/profile", s.handlePutProfile)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/v1/", s.auth.Middleware(v1))
	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		return err
	}
}

// Close releases every cached checklist.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.checklists {
		delete(s.checklists, key)
	}
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	rec, err := s.strategies.CurrentRecommendation(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "not_found", "no recommendation yet")
		return
	}
	writeJSON(w, http.StatusOK, newRecommendationResponse(rec))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	rec, list, err := s.checklistFor(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProgressResponse(rec, list.Snapshot()))
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(r.PathValue("step"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_step", "step must be an integer")
		return
	}

	rec, list, err := s.checklistFor(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	before := list.Completed(step)
	if err := list.Toggle(r.Context(), step); err != nil {
		s.writeServiceError(w, err)
		return
	}
	after := list.Completed(step)

	writeJSON(w, http.StatusOK, toggleResponse{
		progressResponse: newProgressResponse(rec, list.Snapshot()),
		Step:             step,
		Completed:        after,
		Reverted:         after == before,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	items, err := s.strategies.History(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := make([]historyResponse, 0, len(items))
	for _, item := range items {
		out = append(out, historyResponse{
			ID:             item.Recommendation.ID,
			WeekNumber:     item.Recommendation.WeekNumber,
			Title:          item.Recommendation.Title,
			CompletedCount: item.Completed,
			TotalSteps:     len(item.Recommendation.Steps),
			Percentage:     item.Percentage,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.profiles.Get(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "not_found", "no business profile yet")
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(profile))
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	profile := &models.BusinessProfile{
		UserID:       userFrom(r.Context()),
		BusinessName: req.BusinessName,
		Industry:     req.Industry,
		BusinessType: req.BusinessType,
		City:         req.City,
		BudgetRange:  req.BudgetRange,
		Goals:        req.Goals,
	}
	if err := s.profiles.Save(r.Context(), profile); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(profile))
}

// checklistFor returns the caller's cached checklist for a recommendation,
// loading it when absent or stale. Concurrent callers share one entry and
// only one of them loads it.
func (s *Server) checklistFor(ctx context.Context, recID string) (*models.WeeklyRecommendation, *checklist.Sync, error) {
	userID := userFrom(ctx)

	rec, err := s.strategies.Recommendation(ctx, userID, recID)
	if err != nil {
		return nil, nil, err
	}

	key := checklistKey{userID: userID, recID: rec.ID}
	s.mu.Lock()
	entry, ok := s.checklists[key]
	if !ok {
		entry = &checklistEntry{
			list: checklist.New(s.progress, rec.Steps,
				checklist.WithLogger(s.logger),
				checklist.WithReconcileTimeout(s.reconcileTimeout),
			),
		}
		s.checklists[key] = entry
	}
	s.mu.Unlock()

	entry.loadMu.Lock()
	defer entry.loadMu.Unlock()
	if entry.loadedAt.IsZero() || s.now().Sub(entry.loadedAt) >= checklistStaleAfter {
		if _, err := entry.list.Load(ctx, userID, rec.ID); err != nil {
			entry.loadedAt = time.Time{}
			return nil, nil, err
		}
		entry.loadedAt = s.now()
	}
	return rec, entry.list, nil
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checklist.ErrInvalidStep):
		writeError(w, http.StatusBadRequest, "invalid_step", err.Error())
	case errors.Is(err, services.ErrInvalidProfile):
		writeError(w, http.StatusBadRequest, "invalid_profile", err.Error())
	case errors.Is(err, services.ErrRecommendationNotFound):
		writeError(w, http.StatusNotFound, "not_found", "recommendation not found")
	case errors.Is(err, checklist.ErrLoadFailure):
		s.logger.Warn("progress unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "load_failure", "could not load progress, try again")
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
