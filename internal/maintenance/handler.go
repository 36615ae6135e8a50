package maintenance

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"moviecatalog/internal/auth"
	"moviecatalog/internal/httpx"
	"moviecatalog/internal/observability"
)

type StatsSource interface {
	SecurityStats(ctx context.Context, now time.Time) (auth.SecurityStats, error)
}

// Handler serves the cron-protected maintenance endpoints. Without a
// configured secret both routes answer 404.
type Handler struct {
	cleaner    *Cleaner
	stats      StatsSource
	logger     *observability.Logger
	cronSecret string
	now        func() time.Time
}

func NewHandler(cleaner *Cleaner, stats StatsSource, logger *observability.Logger, cronSecret string) *Handler {
	return &Handler{
		cleaner:    cleaner,
		stats:      stats,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		now:        time.Now,
	}
}

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	result, err := h.cleaner.Run(r.Context())
	if err != nil {
		observability.CaptureError(err, map[string]any{"path": r.URL.Path})
		httpx.WriteErrorWith(w, http.StatusInternalServerError, httpx.CodeInternal, "cleanup failed",
			map[string]any{"result": result})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	stats, err := h.stats.SecurityStats(r.Context(), h.now().UTC())
	if err != nil {
		fields := map[string]any{"path": r.URL.Path, "error": err.Error()}
		h.logger.Error("security_stats_failed", fields)
		observability.CaptureError(err, fields)
		httpx.InternalError(w, "failed to load security stats")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.cronSecret == "" {
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "not found")
		return false
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") ||
		subtle.ConstantTimeCompare([]byte(strings.TrimSpace(parts[1])), []byte(h.cronSecret)) != 1 {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "unauthorized")
		return false
	}
	return true
}
