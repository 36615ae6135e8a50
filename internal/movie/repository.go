package movie

import (
	"context"
	"errors"
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

const movieColumns = `id, name, synopsis, genre, poster_url, COALESCE(created_by, ''), created_at, updated_at`

func scanMovie(row pgx.Row) (Movie, error) {
	var m Movie
	err := row.Scan(&m.ID, &m.Name, &m.Synopsis, &m.Genre, &m.PosterURL, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *Repository) List(ctx context.Context) ([]Movie, error) {
	rows, err := r.db.Query(ctx, `SELECT `+movieColumns+` FROM movies ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer rows.Close()

	movies := make([]Movie, 0)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		movies = append(movies, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movies: %w", err)
	}

	return movies, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Movie, error) {
	m, err := scanMovie(r.db.QueryRow(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movie{}, ErrNotFound
		}
		return Movie{}, fmt.Errorf("query movie: %w", err)
	}
	return m, nil
}

func (r *Repository) Create(ctx context.Context, input MovieInput, createdBy string) (Movie, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Movie{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	m := Movie{
		ID:        id.String(),
		Name:      input.Name,
		Synopsis:  input.Synopsis,
		Genre:     input.Genre,
		PosterURL: input.PosterURL,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO movies (id, name, synopsis, genre, poster_url, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.Name, m.Synopsis, m.Genre, m.PosterURL, m.CreatedBy, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return Movie{}, fmt.Errorf("insert movie: %w", err)
	}

	return m, nil
}

// Update only touches movies created by owner; anything else reads as
// ErrNotFound.
func (r *Repository) Update(ctx context.Context, id, owner string, input MovieInput) (Movie, error) {
	m, err := scanMovie(r.db.QueryRow(ctx, `
		UPDATE movies
		SET name = $3, synopsis = $4, genre = $5, poster_url = $6, updated_at = $7
		WHERE id = $1 AND created_by = $2
		RETURNING `+movieColumns,
		id, owner, input.Name, input.Synopsis, input.Genre, input.PosterURL, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movie{}, ErrNotFound
		}
		return Movie{}, fmt.Errorf("update movie: %w", err)
	}
	return m, nil
}

func (r *Repository) Delete(ctx context.Context, id, owner string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM movies WHERE id = $1 AND created_by = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
