package comment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"moviecatalog/internal/db"
)

type Repository struct {
	db db.DBTX
}

func NewRepository(database db.DBTX) *Repository {
	return &Repository{db: database}
}

const commentColumns = `id, user_id, movie_id, content, created_at`

func scanComment(row pgx.Row) (Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.UserID, &c.MovieID, &c.Content, &c.CreatedAt)
	return c, err
}

// Create relies on the movies foreign key, so a comment on a missing movie
// returns ErrMovieNotFound without a separate lookup.
func (r *Repository) Create(ctx context.Context, movieID, userID, content string) (Comment, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Comment{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	c := Comment{
		ID:        id.String(),
		UserID:    userID,
		MovieID:   movieID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO comments (id, user_id, movie_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.UserID, c.MovieID, c.Content, c.CreatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Comment{}, ErrMovieNotFound
		}
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}

	return c, nil
}

func (r *Repository) ListByMovie(ctx context.Context, movieID string, limit, offset int) ([]Comment, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE movie_id = $1`, movieID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE movie_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, movieID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := make([]Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate comments: %w", err)
	}

	return comments, total, nil
}
