package movie

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("movie not found")

var Genres = []string{"Terror", "Accion", "Ciencia Ficcion", "Drama", "Romance"}

type Movie struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Synopsis  string    `json:"synopsis"`
	Genre     string    `json:"genre"`
	PosterURL string    `json:"poster_url"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MovieInput struct {
	Name      string `json:"name" validate:"required,min=2,max=50"`
	Synopsis  string `json:"synopsis" validate:"max=500"`
	Genre     string `json:"genre" validate:"required,oneof=Terror Accion 'Ciencia Ficcion' Drama Romance"`
	PosterURL string `json:"poster_url" validate:"omitempty,max=500,url"`
}
