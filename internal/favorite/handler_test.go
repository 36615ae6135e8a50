package favorite

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviecatalog/internal/auth"
)

type memoryStore struct {
	mu        sync.Mutex
	favorites map[string]Favorite
	err       error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{favorites: map[string]Favorite{}}
}

func key(userID, movieID string) string {
	return userID + "|" + movieID
}

func (s *memoryStore) List(_ context.Context, userID string) ([]Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Favorite, 0)
	for _, f := range s.favorites {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out, nil
}

func (s *memoryStore) Add(_ context.Context, userID string, input FavoriteInput) (Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.favorites[key(userID, input.MovieID)]; ok {
		return Favorite{}, ErrDuplicate
	}
	f := Favorite{
		ID:               uuid.NewString(),
		UserID:           userID,
		MovieID:          input.MovieID,
		MovieTitle:       input.MovieTitle,
		MoviePosterURL:   input.MoviePosterURL,
		MovieReleaseDate: input.MovieReleaseDate,
		MovieRating:      input.MovieRating,
		MovieGenre:       input.MovieGenre,
		AddedAt:          time.Now().UTC().Add(time.Duration(len(s.favorites)) * time.Second),
	}
	s.favorites[key(userID, input.MovieID)] = f
	return f, nil
}

func (s *memoryStore) Check(_ context.Context, userID, movieID string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.favorites[key(userID, movieID)]
	if !ok {
		return Status{}, nil
	}
	return Status{IsFavorite: true, AddedAt: &f.AddedAt}, nil
}

func (s *memoryStore) Remove(_ context.Context, userID, movieID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.favorites[key(userID, movieID)]; !ok {
		return ErrNotFound
	}
	delete(s.favorites, key(userID, movieID))
	return nil
}

func (s *memoryStore) Clear(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for k, f := range s.favorites {
		if f.UserID == userID {
			delete(s.favorites, k)
			deleted++
		}
	}
	return deleted, nil
}

func newTestRouter(store Store) http.Handler {
	h := NewHandler(store, nil)
	r := chi.NewRouter()
	r.Get("/favorites", h.List)
	r.Post("/favorites", h.Add)
	r.Delete("/favorites", h.Clear)
	r.Get("/favorites/check/{movieId}", h.Check)
	r.Delete("/favorites/{movieId}", h.Remove)
	return r
}

func do(router http.Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID}, "token"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const dune = `{"movie_id":"438631","movie_title":"Dune","movie_poster_url":"https://img.example.com/dune.jpg","movie_release_date":"2021-09-15","movie_rating":7.8,"movie_genre":"Ciencia Ficcion"}`

func TestHandlerAddListAndCheck(t *testing.T) {
	store := newMemoryStore()
	router := newTestRouter(store)

	rec := do(router, http.MethodPost, "/favorites", dune, "user-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	var added Favorite
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.Equal(t, "user-1", added.UserID)
	require.NotNil(t, added.MovieRating)
	assert.InDelta(t, 7.8, *added.MovieRating, 0.001)

	rec = do(router, http.MethodPost, "/favorites", `{"movie_id":"603","movie_title":"The Matrix"}`, "user-1")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(router, http.MethodGet, "/favorites", "", "user-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var list listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "The Matrix", list.Favorites[0].MovieTitle)

	rec = do(router, http.MethodGet, "/favorites", "", "user-2")
	assert.JSONEq(t, `{"favorites":[],"count":0}`, rec.Body.String())

	rec = do(router, http.MethodGet, "/favorites/check/438631", "", "user-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_favorite":true`)

	rec = do(router, http.MethodGet, "/favorites/check/438631", "", "user-2")
	assert.JSONEq(t, `{"is_favorite":false,"added_at":null}`, rec.Body.String())
}

func TestHandlerAddDuplicate(t *testing.T) {
	router := newTestRouter(newMemoryStore())

	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/favorites", dune, "user-1").Code)

	rec := do(router, http.MethodPost, "/favorites", dune, "user-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ALREADY_FAVORITE")

	assert.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/favorites", dune, "user-2").Code)
}

func TestHandlerAddValidation(t *testing.T) {
	router := newTestRouter(newMemoryStore())

	tests := []struct {
		name string
		body string
	}{
		{name: "missing movie id", body: `{"movie_title":"Dune"}`},
		{name: "blank title", body: `{"movie_id":"1","movie_title":"   "}`},
		{name: "rating out of range", body: `{"movie_id":"1","movie_title":"Dune","movie_rating":11}`},
		{name: "bad poster url", body: `{"movie_id":"1","movie_title":"Dune","movie_poster_url":"not a url"}`},
		{name: "camel case fields", body: `{"movieId":"1","movieTitle":"Dune"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, "/favorites", tt.body, "user-1")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
		})
	}
}

func TestHandlerRemoveAndClear(t *testing.T) {
	store := newMemoryStore()
	router := newTestRouter(store)

	do(router, http.MethodPost, "/favorites", dune, "user-1")
	do(router, http.MethodPost, "/favorites", `{"movie_id":"603","movie_title":"The Matrix"}`, "user-1")
	do(router, http.MethodPost, "/favorites", dune, "user-2")

	rec := do(router, http.MethodDelete, "/favorites/438631", "", "user-1")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(router, http.MethodDelete, "/favorites/438631", "", "user-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodDelete, "/favorites/"+strings.Repeat("9", 101), "", "user-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodDelete, "/favorites", "", "user-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted_count":1}`, rec.Body.String())

	assert.Len(t, store.favorites, 1, "other users keep their favorites")
}

func TestHandlerFavoriteStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("db down")
	router := newTestRouter(store)

	rec := do(router, http.MethodGet, "/favorites", "", "user-1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}
