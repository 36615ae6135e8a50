package favorite

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

const favoriteColumns = `id, user_id, movie_id, movie_title, movie_poster_url, movie_release_date, movie_rating, movie_genre, added_at`

func scanFavorite(row pgx.Row) (Favorite, error) {
	var f Favorite
	err := row.Scan(&f.ID, &f.UserID, &f.MovieID, &f.MovieTitle, &f.MoviePosterURL,
		&f.MovieReleaseDate, &f.MovieRating, &f.MovieGenre, &f.AddedAt)
	return f, err
}

func (r *Repository) List(ctx context.Context, userID string) ([]Favorite, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+favoriteColumns+`
		FROM favorites
		WHERE user_id = $1
		ORDER BY added_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	favorites := make([]Favorite, 0)
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favorites = append(favorites, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}

	return favorites, nil
}

// Add inserts the favorite unless the user already saved the same movie,
// in which case it returns ErrDuplicate. The unique (user_id, movie_id)
// constraint decides between concurrent adds.
func (r *Repository) Add(ctx context.Context, userID string, input FavoriteInput) (Favorite, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Favorite{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	f, err := scanFavorite(r.db.QueryRow(ctx, `
		INSERT INTO favorites (id, user_id, movie_id, movie_title, movie_poster_url, movie_release_date, movie_rating, movie_genre, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, movie_id) DO NOTHING
		RETURNING `+favoriteColumns,
		id.String(), userID, input.MovieID, input.MovieTitle, input.MoviePosterURL,
		input.MovieReleaseDate, input.MovieRating, input.MovieGenre, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Favorite{}, ErrDuplicate
		}
		return Favorite{}, fmt.Errorf("insert favorite: %w", err)
	}
	return f, nil
}

func (r *Repository) Check(ctx context.Context, userID, movieID string) (Status, error) {
	var addedAt time.Time
	err := r.db.QueryRow(ctx, `
		SELECT added_at FROM favorites WHERE user_id = $1 AND movie_id = $2
	`, userID, movieID).Scan(&addedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Status{}, nil
		}
		return Status{}, fmt.Errorf("check favorite: %w", err)
	}
	return Status{IsFavorite: true, AddedAt: &addedAt}, nil
}

func (r *Repository) Remove(ctx context.Context, userID, movieID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND movie_id = $2`, userID, movieID)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Clear(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear favorites: %w", err)
	}
	return tag.RowsAffected(), nil
}
