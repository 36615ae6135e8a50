package auth_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviecatalog/internal/auth"
)

var userColumns = []string{"id", "email", "password_hash", "first_name", "last_name", "age", "created_at", "updated_at"}

func newMockRepository(t *testing.T) (pgxmock.PgxPoolIface, *auth.Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, auth.NewRepository(mock)
}

func TestRepositoryGetUserByEmail(t *testing.T) {
	mock, repo := newMockRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
			WithArgs("ana@example.com").
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow("user-1", "ana@example.com", "hash", "Ana", "Gomez", 30, now, now))

		user, err := repo.GetUserByEmail(ctx, "ana@example.com")
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)
		assert.Equal(t, "hash", user.PasswordHash)
		assert.Equal(t, 30, user.Age)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
			WithArgs("ghost@example.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetUserByEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
			WithArgs("ana@example.com").
			WillReturnError(errors.New("db down"))

		_, err := repo.GetUserByEmail(ctx, "ana@example.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrUserNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreateUserDuplicate(t *testing.T) {
	mock, repo := newMockRepository(t)
	now := time.Now().UTC()
	user := auth.User{ID: "user-1", Email: "ana@example.com", PasswordHash: "hash", FirstName: "Ana", LastName: "Gomez", Age: 30, CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec("INSERT INTO users").
		WithArgs(user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Age, user.CreatedAt, user.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	err := repo.CreateUser(context.Background(), user)
	assert.ErrorIs(t, err, auth.ErrDuplicateAccount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateUserPasswordMissingUser(t *testing.T) {
	mock, repo := newMockRepository(t)

	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("user-1", "new-hash", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateUserPassword(context.Background(), "user-1", "new-hash", time.Now())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryBlacklist(t *testing.T) {
	mock, repo := newMockRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	entry := auth.BlacklistedToken{
		Fingerprint: auth.Fingerprint("token"),
		UserID:      "user-1",
		Reason:      auth.ReasonLogout,
		ExpiresAt:   now.Add(time.Hour),
		CreatedAt:   now,
	}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (token_hash) DO NOTHING")).
		WithArgs(entry.Fingerprint, entry.UserID, "logout", entry.ExpiresAt, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.InsertBlacklistedToken(ctx, entry))

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(entry.Fingerprint, now).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	found, err := repo.IsTokenBlacklisted(ctx, entry.Fingerprint, now)
	require.NoError(t, err)
	assert.True(t, found)

	mock.ExpectExec("DELETE FROM auth_blacklisted_tokens").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	deleted, err := repo.DeleteExpiredBlacklistedTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryLoginAttempts(t *testing.T) {
	mock, repo := newMockRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	columns := []string{"attempts", "last_attempt", "blocked_until", "successful_logins"}
	policy := auth.LockoutPolicy{MaxAttempts: 10, LockDuration: 10 * time.Minute, Window: 10 * time.Minute}

	t.Run("no record", func(t *testing.T) {
		mock.ExpectQuery("FROM auth_login_attempts").
			WithArgs("203.0.113.7").
			WillReturnError(pgx.ErrNoRows)

		_, found, err := repo.GetLoginAttempt(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("failure reaching threshold", func(t *testing.T) {
		until := now.Add(policy.LockDuration)
		mock.ExpectQuery("INSERT INTO auth_login_attempts").
			WithArgs("203.0.113.7", now, policy.MaxAttempts, until, now.Add(-policy.Window)).
			WillReturnRows(pgxmock.NewRows(columns).AddRow(10, now, &until, int64(3)))

		record, err := repo.RecordFailedLogin(ctx, "203.0.113.7", policy, now)
		require.NoError(t, err)
		assert.Equal(t, "203.0.113.7", record.IP)
		assert.Equal(t, 10, record.Attempts)
		require.NotNil(t, record.BlockedUntil)
		assert.True(t, record.LockedAt(now))
	})

	t.Run("success clears the counter", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("successful_logins = auth_login_attempts.successful_logins + 1")).
			WithArgs("203.0.113.7", now).
			WillReturnRows(pgxmock.NewRows(columns).AddRow(0, now, (*time.Time)(nil), int64(4)))

		record, err := repo.RecordSuccessfulLogin(ctx, "203.0.113.7", now)
		require.NoError(t, err)
		assert.Zero(t, record.Attempts)
		assert.Nil(t, record.BlockedUntil)
		assert.Equal(t, int64(4), record.SuccessfulLogins)
	})

	t.Run("prune keeps locked rows", func(t *testing.T) {
		cutoff := now.Add(-24 * time.Hour)
		mock.ExpectExec(regexp.QuoteMeta("(blocked_until IS NULL OR blocked_until <= $2)")).
			WithArgs(cutoff, now).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))

		deleted, err := repo.DeleteStaleLoginAttempts(ctx, cutoff, now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryReplaceResetToken(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	token := auth.PasswordResetToken{
		Fingerprint: auth.Fingerprint("raw"),
		UserID:      "user-1",
		ExpiresAt:   now.Add(auth.ResetTokenTTL),
		CreatedAt:   now,
	}

	t.Run("commit", func(t *testing.T) {
		mock, repo := newMockRepository(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM auth_password_reset_tokens WHERE user_id").
			WithArgs("user-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec("INSERT INTO auth_password_reset_tokens").
			WithArgs(token.Fingerprint, token.UserID, token.ExpiresAt, token.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		require.NoError(t, repo.ReplaceResetToken(ctx, token))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on insert failure", func(t *testing.T) {
		mock, repo := newMockRepository(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM auth_password_reset_tokens WHERE user_id").
			WithArgs("user-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec("INSERT INTO auth_password_reset_tokens").
			WithArgs(token.Fingerprint, token.UserID, token.ExpiresAt, token.CreatedAt).
			WillReturnError(errors.New("insert failed"))
		mock.ExpectRollback()

		require.Error(t, repo.ReplaceResetToken(ctx, token))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepositoryConsumeResetToken(t *testing.T) {
	mock, repo := newMockRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	fp := auth.Fingerprint("raw")

	mock.ExpectQuery(regexp.QuoteMeta("SET used = TRUE")).
		WithArgs(fp, now).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at", "used", "created_at"}).
			AddRow("user-1", now.Add(time.Hour), true, now))

	token, found, err := repo.ConsumeResetToken(ctx, fp, now)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "user-1", token.UserID)
	assert.True(t, token.Used)

	mock.ExpectQuery(regexp.QuoteMeta("SET used = TRUE")).
		WithArgs(fp, now).
		WillReturnError(pgx.ErrNoRows)

	_, found, err = repo.ConsumeResetToken(ctx, fp, now)
	require.NoError(t, err)
	assert.False(t, found, "a second consumer loses")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySecurityStats(t *testing.T) {
	mock, repo := newMockRepository(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM auth_blacklisted_tokens")).
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows([]string{"a", "b", "c", "d", "e", "f"}).
			AddRow(int64(3), int64(12), int64(1), int64(40), int64(90), int64(2)))

	stats, err := repo.SecurityStats(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, auth.SecurityStats{
		BlacklistedTokens: 3,
		TrackedIPs:        12,
		BlockedIPs:        1,
		FailedAttempts:    40,
		SuccessfulLogins:  90,
		OutstandingResets: 2,
	}, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}
