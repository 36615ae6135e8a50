package auth

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Age          int       `json:"age"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Profile struct {
	FirstName string
	LastName  string
	Age       int
	Email     string
}

// Identity is what a verified session token says about its holder.
type Identity struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type IssuedToken struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int64     `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RevocationReason string

const (
	ReasonLogout             RevocationReason = "logout"
	ReasonSecurityRevocation RevocationReason = "security-revocation"
	ReasonPasswordChanged    RevocationReason = "password-changed"
)

func (r RevocationReason) Valid() bool {
	switch r {
	case ReasonLogout, ReasonSecurityRevocation, ReasonPasswordChanged:
		return true
	}
	return false
}

type BlacklistedToken struct {
	Fingerprint string
	UserID      string
	Reason      RevocationReason
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

type LoginAttempt struct {
	IP               string
	Attempts         int
	LastAttempt      time.Time
	BlockedUntil     *time.Time
	SuccessfulLogins int64
}

// LockedAt reports whether the record is locked at the given instant. A
// blocked_until in the past counts as unlocked.
func (a LoginAttempt) LockedAt(now time.Time) bool {
	return a.BlockedUntil != nil && now.Before(*a.BlockedUntil)
}

type PasswordResetToken struct {
	Fingerprint string
	UserID      string
	ExpiresAt   time.Time
	Used        bool
	CreatedAt   time.Time
}

type SecurityStats struct {
	BlacklistedTokens int64 `json:"blacklisted_tokens"`
	TrackedIPs        int64 `json:"tracked_ips"`
	BlockedIPs        int64 `json:"blocked_ips"`
	FailedAttempts    int64 `json:"failed_attempts"`
	SuccessfulLogins  int64 `json:"successful_logins"`
	OutstandingResets int64 `json:"outstanding_resets"`
}

type CleanupResult struct {
	DeletedBlacklistedTokens int64 `json:"deleted_blacklisted_tokens"`
	DeletedResetTokens       int64 `json:"deleted_reset_tokens"`
	DeletedLoginAttempts     int64 `json:"deleted_login_attempts"`
}
