package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"moviecatalog/internal/db"
)

// Repository is the Postgres implementation of every store the auth
// subsystem needs.
type Repository struct {
	db db.DBTX
}

func NewRepository(database db.DBTX) *Repository {
	return &Repository{db: database}
}

const userColumns = `id, email, password_hash, first_name, last_name, age, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Age,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user by email: %w", err)
	}
	return user, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user by id: %w", err)
	}
	return user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Age, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) UpdateUserProfile(ctx context.Context, id string, profile Profile, now time.Time) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users
		SET first_name = $2, last_name = $3, age = $4, email = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+userColumns,
		id, profile.FirstName, profile.LastName, profile.Age, profile.Email, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		if db.IsUniqueViolation(err) {
			return User{}, ErrDuplicateAccount
		}
		return User{}, fmt.Errorf("update user profile: %w", err)
	}
	return user, nil
}

func (r *Repository) UpdateUserPassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, now)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repository) InsertBlacklistedToken(ctx context.Context, entry BlacklistedToken) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO auth_blacklisted_tokens (token_hash, user_id, reason, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_hash) DO NOTHING
	`, entry.Fingerprint, entry.UserID, string(entry.Reason), entry.ExpiresAt, entry.CreatedAt); err != nil {
		return fmt.Errorf("insert blacklisted token: %w", err)
	}
	return nil
}

func (r *Repository) IsTokenBlacklisted(ctx context.Context, fingerprint string, now time.Time) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM auth_blacklisted_tokens
			WHERE token_hash = $1 AND expires_at > $2
		)
	`, fingerprint, now).Scan(&exists); err != nil {
		return false, fmt.Errorf("query blacklisted token: %w", err)
	}
	return exists, nil
}

func (r *Repository) DeleteExpiredBlacklistedTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM auth_blacklisted_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired blacklisted tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanLoginAttempt(row pgx.Row, ip string) (LoginAttempt, error) {
	record := LoginAttempt{IP: ip}
	err := row.Scan(&record.Attempts, &record.LastAttempt, &record.BlockedUntil, &record.SuccessfulLogins)
	return record, err
}

func (r *Repository) GetLoginAttempt(ctx context.Context, ip string) (LoginAttempt, bool, error) {
	record, err := scanLoginAttempt(r.db.QueryRow(ctx, `
		SELECT attempts, last_attempt, blocked_until, successful_logins
		FROM auth_login_attempts
		WHERE ip = $1
	`, ip), ip)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginAttempt{}, false, nil
		}
		return LoginAttempt{}, false, fmt.Errorf("query login attempt: %w", err)
	}
	return record, true, nil
}

func (r *Repository) ClearExpiredLock(ctx context.Context, ip string, now time.Time) error {
	if _, err := r.db.Exec(ctx, `
		UPDATE auth_login_attempts
		SET attempts = 0, blocked_until = NULL, updated_at = $2
		WHERE ip = $1 AND blocked_until IS NOT NULL AND blocked_until <= $2
	`, ip, now); err != nil {
		return fmt.Errorf("clear expired login lock: %w", err)
	}
	return nil
}

// RecordFailedLogin counts one failure in a single statement, so concurrent
// failures from the same IP never lose an increment. The count restarts at 1
// when the previous lock has run out or the last failure is outside the
// window.
func (r *Repository) RecordFailedLogin(ctx context.Context, ip string, policy LockoutPolicy, now time.Time) (LoginAttempt, error) {
	record, err := scanLoginAttempt(r.db.QueryRow(ctx, `
		INSERT INTO auth_login_attempts (ip, attempts, last_attempt, blocked_until, successful_logins, updated_at)
		VALUES ($1, 1, $2, CASE WHEN 1 >= $3 THEN $4::timestamptz ELSE NULL END, 0, $2)
		ON CONFLICT (ip) DO UPDATE SET
			attempts = CASE
				WHEN auth_login_attempts.blocked_until IS NOT NULL AND auth_login_attempts.blocked_until <= $2 THEN 1
				WHEN auth_login_attempts.last_attempt < $5 THEN 1
				ELSE auth_login_attempts.attempts + 1
			END,
			blocked_until = CASE
				WHEN auth_login_attempts.blocked_until IS NOT NULL AND auth_login_attempts.blocked_until > $2 THEN auth_login_attempts.blocked_until
				WHEN auth_login_attempts.blocked_until IS NOT NULL OR auth_login_attempts.last_attempt < $5 THEN
					CASE WHEN 1 >= $3 THEN $4::timestamptz ELSE NULL END
				WHEN auth_login_attempts.attempts + 1 >= $3 THEN $4::timestamptz
				ELSE NULL
			END,
			last_attempt = $2,
			updated_at = $2
		RETURNING attempts, last_attempt, blocked_until, successful_logins
	`, ip, now, policy.MaxAttempts, now.Add(policy.LockDuration), now.Add(-policy.Window)), ip)
	if err != nil {
		return LoginAttempt{}, fmt.Errorf("record failed login: %w", err)
	}
	return record, nil
}

func (r *Repository) RecordSuccessfulLogin(ctx context.Context, ip string, now time.Time) (LoginAttempt, error) {
	record, err := scanLoginAttempt(r.db.QueryRow(ctx, `
		INSERT INTO auth_login_attempts (ip, attempts, last_attempt, blocked_until, successful_logins, updated_at)
		VALUES ($1, 0, $2, NULL, 1, $2)
		ON CONFLICT (ip) DO UPDATE SET
			attempts = 0,
			blocked_until = NULL,
			last_attempt = $2,
			successful_logins = auth_login_attempts.successful_logins + 1,
			updated_at = $2
		RETURNING attempts, last_attempt, blocked_until, successful_logins
	`, ip, now), ip)
	if err != nil {
		return LoginAttempt{}, fmt.Errorf("record successful login: %w", err)
	}
	return record, nil
}

func (r *Repository) DeleteStaleLoginAttempts(ctx context.Context, cutoff, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM auth_login_attempts
		WHERE last_attempt < $1
		  AND (blocked_until IS NULL OR blocked_until <= $2)
	`, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("delete stale login attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) ReplaceResetToken(ctx context.Context, token PasswordResetToken) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM auth_password_reset_tokens WHERE user_id = $1`, token.UserID); err != nil {
		return fmt.Errorf("delete previous reset tokens: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO auth_password_reset_tokens (token_hash, user_id, expires_at, used, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
	`, token.Fingerprint, token.UserID, token.ExpiresAt, token.CreatedAt); err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reset token: %w", err)
	}
	return nil
}

func (r *Repository) FindValidResetToken(ctx context.Context, fingerprint string, now time.Time) (PasswordResetToken, bool, error) {
	token := PasswordResetToken{Fingerprint: fingerprint}
	err := r.db.QueryRow(ctx, `
		SELECT user_id, expires_at, used, created_at
		FROM auth_password_reset_tokens
		WHERE token_hash = $1 AND used = FALSE AND expires_at > $2
	`, fingerprint, now).Scan(&token.UserID, &token.ExpiresAt, &token.Used, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PasswordResetToken{}, false, nil
		}
		return PasswordResetToken{}, false, fmt.Errorf("query reset token: %w", err)
	}
	return token, true, nil
}

// ConsumeResetToken is the race arbiter for password resets: the
// conditional update succeeds for exactly one caller.
func (r *Repository) ConsumeResetToken(ctx context.Context, fingerprint string, now time.Time) (PasswordResetToken, bool, error) {
	token := PasswordResetToken{Fingerprint: fingerprint}
	err := r.db.QueryRow(ctx, `
		UPDATE auth_password_reset_tokens
		SET used = TRUE, used_at = $2
		WHERE token_hash = $1 AND used = FALSE AND expires_at > $2
		RETURNING user_id, expires_at, used, created_at
	`, fingerprint, now).Scan(&token.UserID, &token.ExpiresAt, &token.Used, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PasswordResetToken{}, false, nil
		}
		return PasswordResetToken{}, false, fmt.Errorf("consume reset token: %w", err)
	}
	return token, true, nil
}

func (r *Repository) DeleteResetTokensForUser(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM auth_password_reset_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete reset tokens for user: %w", err)
	}
	return nil
}

func (r *Repository) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM auth_password_reset_tokens WHERE expires_at <= $1 OR used = TRUE`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) SecurityStats(ctx context.Context, now time.Time) (SecurityStats, error) {
	var stats SecurityStats
	if err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM auth_blacklisted_tokens WHERE expires_at > $1),
			(SELECT COUNT(*) FROM auth_login_attempts),
			(SELECT COUNT(*) FROM auth_login_attempts WHERE blocked_until > $1),
			(SELECT COALESCE(SUM(attempts), 0) FROM auth_login_attempts),
			(SELECT COALESCE(SUM(successful_logins), 0) FROM auth_login_attempts),
			(SELECT COUNT(*) FROM auth_password_reset_tokens WHERE used = FALSE AND expires_at > $1)
	`, now).Scan(
		&stats.BlacklistedTokens,
		&stats.TrackedIPs,
		&stats.BlockedIPs,
		&stats.FailedAttempts,
		&stats.SuccessfulLogins,
		&stats.OutstandingResets,
	); err != nil {
		return SecurityStats{}, fmt.Errorf("query security stats: %w", err)
	}
	return stats, nil
}
