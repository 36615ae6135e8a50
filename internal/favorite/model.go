package favorite

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("favorite not found")
	ErrDuplicate = errors.New("movie already in favorites")
)

// Favorite keeps a copy of the movie metadata the client had when it was
// saved, so listing never depends on the catalog the movie came from.
type Favorite struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	MovieID          string    `json:"movie_id"`
	MovieTitle       string    `json:"movie_title"`
	MoviePosterURL   string    `json:"movie_poster_url"`
	MovieReleaseDate string    `json:"movie_release_date"`
	MovieRating      *float64  `json:"movie_rating"`
	MovieGenre       string    `json:"movie_genre"`
	AddedAt          time.Time `json:"added_at"`
}

type FavoriteInput struct {
	MovieID          string   `json:"movie_id" validate:"required,max=100"`
	MovieTitle       string   `json:"movie_title" validate:"required,max=200"`
	MoviePosterURL   string   `json:"movie_poster_url" validate:"omitempty,max=500,url"`
	MovieReleaseDate string   `json:"movie_release_date" validate:"omitempty,max=20"`
	MovieRating      *float64 `json:"movie_rating" validate:"omitempty,min=0,max=10"`
	MovieGenre       string   `json:"movie_genre" validate:"omitempty,max=200"`
}

type Status struct {
	IsFavorite bool       `json:"is_favorite"`
	AddedAt    *time.Time `json:"added_at"`
}
