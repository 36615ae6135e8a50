package favorite

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"moviecatalog/internal/auth"
	"moviecatalog/internal/httpx"
	"moviecatalog/internal/observability"
)

const maxMovieIDLength = 100

type Store interface {
	List(ctx context.Context, userID string) ([]Favorite, error)
	Add(ctx context.Context, userID string, input FavoriteInput) (Favorite, error)
	Check(ctx context.Context, userID, movieID string) (Status, error)
	Remove(ctx context.Context, userID, movieID string) error
	Clear(ctx context.Context, userID string) (int64, error)
}

// Handler serves the caller's own favorites; every route sits behind the
// auth middleware.
type Handler struct {
	store  Store
	logger *observability.Logger
}

func NewHandler(store Store, logger *observability.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

type listResponse struct {
	Favorites []Favorite `json:"favorites"`
	Count     int        `json:"count"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	favorites, err := h.store.List(r.Context(), identity.UserID)
	if err != nil {
		h.internal(w, r, err, "failed to list favorites")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, listResponse{Favorites: favorites, Count: len(favorites)})
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var input FavoriteInput
	if err := httpx.DecodeAndValidate(w, r, &input); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
		return
	}
	input.MovieID = strings.TrimSpace(input.MovieID)
	input.MovieTitle = strings.TrimSpace(input.MovieTitle)
	input.MoviePosterURL = strings.TrimSpace(input.MoviePosterURL)
	input.MovieGenre = strings.TrimSpace(input.MovieGenre)
	if input.MovieID == "" || input.MovieTitle == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "movie_id and movie_title are required")
		return
	}

	f, err := h.store.Add(r.Context(), identity.UserID, input)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			httpx.WriteError(w, http.StatusConflict, httpx.CodeAlreadyFavorite, "movie is already in favorites")
			return
		}
		h.internal(w, r, err, "failed to add favorite")
		return
	}

	h.logger.Info("favorite_added", map[string]any{"user_id": identity.UserID, "movie_id": f.MovieID})
	httpx.WriteJSON(w, http.StatusCreated, f)
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	movieID, ok := movieIDParam(w, r)
	if !ok {
		return
	}

	status, err := h.store.Check(r.Context(), identity.UserID, movieID)
	if err != nil {
		h.internal(w, r, err, "failed to check favorite")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	movieID, ok := movieIDParam(w, r)
	if !ok {
		return
	}

	if err := h.store.Remove(r.Context(), identity.UserID, movieID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "movie is not in favorites")
			return
		}
		h.internal(w, r, err, "failed to remove favorite")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	deleted, err := h.store.Clear(r.Context(), identity.UserID)
	if err != nil {
		h.internal(w, r, err, "failed to clear favorites")
		return
	}

	h.logger.Info("favorites_cleared", map[string]any{"user_id": identity.UserID, "deleted": deleted})
	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"deleted_count": deleted})
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, err error, message string) {
	fields := map[string]any{"path": r.URL.Path, "method": r.Method, "error": err.Error()}
	h.logger.Error("favorite_request_failed", fields)
	observability.CaptureError(err, fields)
	httpx.InternalError(w, message)
}

func movieIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	movieID := strings.TrimSpace(chi.URLParam(r, "movieId"))
	if movieID == "" || len(movieID) > maxMovieIDLength {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "invalid movie id")
		return "", false
	}
	return movieID, true
}
