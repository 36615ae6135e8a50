package comment

import (
	"errors"
	"time"
)

var ErrMovieNotFound = errors.New("movie not found")

const (
	MinContentLength = 3
	MaxContentLength = 1000
)

type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MovieID   string    `json:"movie_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentInput struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// Page is a window over a movie's comments, newest first.
type Page struct {
	Comments []Comment `json:"comments"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Total    int64     `json:"total"`
}
