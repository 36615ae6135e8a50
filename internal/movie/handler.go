package movie

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"moviecatalog/internal/auth"
	"moviecatalog/internal/httpx"
	"moviecatalog/internal/observability"
)

var allowedHost = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)

type Store interface {
	List(ctx context.Context) ([]Movie, error)
	Get(ctx context.Context, id string) (Movie, error)
	Create(ctx context.Context, input MovieInput, createdBy string) (Movie, error)
	Update(ctx context.Context, id, owner string, input MovieInput) (Movie, error)
	Delete(ctx context.Context, id, owner string) error
}

type Handler struct {
	store  Store
	logger *observability.Logger
}

func NewHandler(store Store, logger *observability.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	movies, err := h.store.List(r.Context())
	if err != nil {
		h.internal(w, r, err, "failed to list movies")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, movies)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := movieID(w, r)
	if !ok {
		return
	}

	m, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "movie not found")
			return
		}
		h.internal(w, r, err, "failed to load movie")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	m, err := h.store.Create(r.Context(), input, identity.UserID)
	if err != nil {
		h.internal(w, r, err, "failed to create movie")
		return
	}

	h.logger.Info("movie_created", map[string]any{"movie_id": m.ID, "user_id": identity.UserID})
	httpx.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	id, ok := movieID(w, r)
	if !ok {
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	m, err := h.store.Update(r.Context(), id, identity.UserID, input)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "movie not found")
			return
		}
		h.internal(w, r, err, "failed to update movie")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	id, ok := movieID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id, identity.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "movie not found")
			return
		}
		h.internal(w, r, err, "failed to delete movie")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, err error, message string) {
	fields := map[string]any{"path": r.URL.Path, "method": r.Method, "error": err.Error()}
	h.logger.Error("movie_request_failed", fields)
	observability.CaptureError(err, fields)
	httpx.InternalError(w, message)
}

func movieID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "invalid movie id")
		return "", false
	}
	return id, true
}

func parseInput(w http.ResponseWriter, r *http.Request) (MovieInput, bool) {
	var input MovieInput
	if err := httpx.DecodeAndValidate(w, r, &input); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
		return MovieInput{}, false
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Synopsis = strings.TrimSpace(input.Synopsis)
	input.PosterURL = strings.TrimSpace(input.PosterURL)

	if len([]rune(input.Name)) < 2 {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "invalid name length or range")
		return MovieInput{}, false
	}

	if input.PosterURL != "" {
		parsed, err := url.ParseRequestURI(input.PosterURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "poster_url must start with http or https")
			return MovieInput{}, false
		}
		if parsed.User != nil || !allowedHost.MatchString(parsed.Hostname()) {
			httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "poster_url host is invalid")
			return MovieInput{}, false
		}
	}

	return input, true
}
