package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/lunchbot/internal/domain"
	"github.com/ashureev/lunchbot/internal/ratelimit"
	"github.com/ashureev/lunchbot/internal/resilience"
)

// AdminTokenHeader carries the admin token.
const AdminTokenHeader = "X-Admin-Token"

const (
	defaultHistoryDays  = 30
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// UsageTracker exposes per-user rate limit state.
type UsageTracker interface {
	Usage(userID string) ratelimit.Usage
	Reset(userID string)
}

// SessionClearer drops a user's conversation memory.
type SessionClearer interface {
	Clear(userID string) bool
}

// BreakerInspector reports remote generator health.
type BreakerInspector interface {
	Snapshot() resilience.Snapshot
}

// HistoryReader reads and corrects the meal history.
type HistoryReader interface {
	Records(ctx context.Context, userID string, days, limit int) ([]domain.HistoryRecord, error)
	Stats(ctx context.Context, userID string, days int) (*domain.HistoryStats, error)
	DeleteToday(ctx context.Context, userID string) (bool, error)
}

// AdminHandler serves operator endpoints.
type AdminHandler struct {
	token    string
	limiter  UsageTracker
	sessions SessionClearer
	breaker  BreakerInspector
	history  HistoryReader
}

// NewAdminHandler creates the admin handler. An empty token disables every route.
func NewAdminHandler(token string, limiter UsageTracker, sessions SessionClearer, breaker BreakerInspector, history HistoryReader) *AdminHandler {
	return &AdminHandler{
		token:    token,
		limiter:  limiter,
		sessions: sessions,
		breaker:  breaker,
		history:  history,
	}
}

// RegisterRoutes registers routes under /api/admin.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.requireToken)
		r.Get("/breaker", h.Breaker)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/usage", h.Usage)
			r.Delete("/usage", h.ResetUsage)
			r.Delete("/session", h.ClearSession)
			r.Get("/history", h.History)
			r.Delete("/history/today", h.DeleteToday)
			r.Get("/stats", h.Stats)
		})
	})
}

func (h *AdminHandler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" {
			Error(w, http.StatusNotFound, "admin API disabled")
			return
		}
		got := r.Header.Get(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			Error(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Usage returns the user's request counts.
func (h *AdminHandler) Usage(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.limiter.Usage(chi.URLParam(r, "userID")))
}

// ResetUsage clears the user's rate limit windows.
func (h *AdminHandler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	h.limiter.Reset(chi.URLParam(r, "userID"))
	w.WriteHeader(http.StatusNoContent)
}

// ClearSession drops the user's conversation memory.
func (h *AdminHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	cleared := h.sessions.Clear(chi.URLParam(r, "userID"))
	JSON(w, http.StatusOK, map[string]bool{"cleared": cleared})
}

// Breaker returns the remote generator's breaker state.
func (h *AdminHandler) Breaker(w http.ResponseWriter, _ *http.Request) {
	if h.breaker == nil {
		JSON(w, http.StatusOK, map[string]bool{"configured": false})
		return
	}
	JSON(w, http.StatusOK, h.breaker.Snapshot())
}

// History lists the user's meals, newest first.
func (h *AdminHandler) History(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", defaultHistoryDays)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid days")
		return
	}
	limit, err := intQuery(r, "limit", defaultHistoryLimit)
	if err != nil || limit > maxHistoryLimit {
		Error(w, http.StatusBadRequest, "invalid limit")
		return
	}

	records, err := h.history.Records(r.Context(), chi.URLParam(r, "userID"), days, limit)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

// Stats aggregates the user's meals by area and category.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", defaultHistoryDays)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid days")
		return
	}
	stats, err := h.history.Stats(r.Context(), chi.URLParam(r, "userID"), days)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	JSON(w, http.StatusOK, stats)
}

// DeleteToday removes the user's latest meal recorded today.
func (h *AdminHandler) DeleteToday(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.history.DeleteToday(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to delete record")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func intQuery(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
