package auth

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenInvalid        = errors.New("token invalid")
	ErrTokenBlacklisted    = errors.New("token blacklisted")
	ErrResetTokenInvalid   = errors.New("invalid or expired token")
	ErrEmailDeliveryFailed = errors.New("reset email failed to send")
	ErrDuplicateAccount    = errors.New("email already registered")
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountLocked       = errors.New("too many failed login attempts")
	ErrPasswordTooLong     = errors.New("password exceeds 72 bytes")
	ErrResetUnavailable    = errors.New("password reset email is not configured")
)

// AccountLockedError carries the end of an active IP lockout. It matches
// ErrAccountLocked under errors.Is.
type AccountLockedError struct {
	Until time.Time
	now   time.Time
}

func (e AccountLockedError) Error() string {
	return fmt.Sprintf("%s, retry in %d minutes", ErrAccountLocked.Error(), e.RemainingMinutes())
}

func (e AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

func (e AccountLockedError) Remaining() time.Duration {
	now := e.now
	if now.IsZero() {
		now = time.Now()
	}
	remaining := e.Until.Sub(now)
	if remaining < time.Second {
		return time.Second
	}
	return remaining
}

// RemainingMinutes rounds up so a live lock never reports zero.
func (e AccountLockedError) RemainingMinutes() int {
	return int(math.Ceil(e.Remaining().Minutes()))
}
