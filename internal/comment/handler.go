package comment

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"moviecatalog/internal/auth"
	"moviecatalog/internal/httpx"
	"moviecatalog/internal/observability"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type Store interface {
	Create(ctx context.Context, movieID, userID, content string) (Comment, error)
	ListByMovie(ctx context.Context, movieID string, limit, offset int) ([]Comment, int64, error)
}

type Handler struct {
	store  Store
	logger *observability.Logger
}

func NewHandler(store Store, logger *observability.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Create stores a comment by the authenticated caller on the movie in the
// URL.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	movieID, ok := movieIDParam(w, r)
	if !ok {
		return
	}

	var input CommentInput
	if err := httpx.DecodeAndValidate(w, r, &input); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
		return
	}

	content := strings.TrimSpace(input.Content)
	if n := len([]rune(content)); n < MinContentLength || n > MaxContentLength {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "content must be between 3 and 1000 characters")
		return
	}

	c, err := h.store.Create(r.Context(), movieID, identity.UserID, content)
	if err != nil {
		if errors.Is(err, ErrMovieNotFound) {
			httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "movie not found")
			return
		}
		h.internal(w, r, err, "failed to create comment")
		return
	}

	h.logger.Info("comment_created", map[string]any{"comment_id": c.ID, "movie_id": movieID, "user_id": identity.UserID})
	httpx.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	movieID, ok := movieIDParam(w, r)
	if !ok {
		return
	}

	page, limit, ok := pagination(w, r)
	if !ok {
		return
	}

	comments, total, err := h.store.ListByMovie(r.Context(), movieID, limit, (page-1)*limit)
	if err != nil {
		h.internal(w, r, err, "failed to list comments")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, Page{Comments: comments, Page: page, Limit: limit, Total: total})
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, err error, message string) {
	fields := map[string]any{"path": r.URL.Path, "method": r.Method, "error": err.Error()}
	h.logger.Error("comment_request_failed", fields)
	observability.CaptureError(err, fields)
	httpx.InternalError(w, message)
}

func movieIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "invalid movie id")
		return "", false
	}
	return id, true
}

func pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	page, err := positiveQueryInt(r, "page", 1)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "page must be a positive integer")
		return 0, 0, false
	}
	limit, err := positiveQueryInt(r, "limit", defaultPageSize)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "limit must be a positive integer")
		return 0, 0, false
	}
	return page, min(limit, maxPageSize), true
}

func positiveQueryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 || value > 1_000_000 {
		return 0, errors.New("invalid " + name)
	}
	return value, nil
}
