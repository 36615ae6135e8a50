package movie_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviecatalog/internal/movie"
)

var columns = []string{"id", "name", "synopsis", "genre", "poster_url", "created_by", "created_at", "updated_at"}

func TestRepositoryList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := movie.NewRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM movies ORDER BY created_at DESC")).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("m-1", "Alien", "", "Terror", "", "user-1", now, now).
			AddRow("m-2", "Titanic", "", "Romance", "", "user-2", now, now))

	movies, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "Titanic", movies[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := movie.NewRepository(mock)
	input := movie.MovieInput{Name: "Alien", Genre: "Terror"}

	mock.ExpectExec("INSERT INTO movies").
		WithArgs(pgxmock.AnyArg(), "Alien", "", "Terror", "", "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	m, err := repo.Create(context.Background(), input, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "user-1", m.CreatedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := movie.NewRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM movies WHERE id = $1")).
		WithArgs("m-1").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.Get(context.Background(), "m-1")
	assert.ErrorIs(t, err, movie.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateAndDeleteScopedToOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := movie.NewRepository(mock)
	input := movie.MovieInput{Name: "Aliens", Genre: "Accion"}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND created_by = $2")).
		WithArgs("m-1", "intruder", "Aliens", "", "Accion", "", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.Update(context.Background(), "m-1", "intruder", input)
	assert.ErrorIs(t, err, movie.ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM movies WHERE id = $1 AND created_by = $2")).
		WithArgs("m-1", "intruder").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "m-1", "intruder"), movie.ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM movies WHERE id = $1 AND created_by = $2")).
		WithArgs("m-1", "owner").
		WillReturnError(errors.New("db down"))
	err = repo.Delete(context.Background(), "m-1", "owner")
	require.Error(t, err)
	assert.NotErrorIs(t, err, movie.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
