package auth

import (
	"context"
	"time"

	"moviecatalog/internal/observability"
)

const (
	DefaultMaxAttempts      = 10
	DefaultLockDuration     = 10 * time.Minute
	DefaultAttemptWindow    = 10 * time.Minute
	DefaultAttemptRetention = 24 * time.Hour
)

type AttemptStore interface {
	GetLoginAttempt(ctx context.Context, ip string) (LoginAttempt, bool, error)
	// ClearExpiredLock resets attempts and blocked_until only when the lock
	// has already passed.
	ClearExpiredLock(ctx context.Context, ip string, now time.Time) error
	// RecordFailedLogin must be a single atomic read-modify-write.
	RecordFailedLogin(ctx context.Context, ip string, policy LockoutPolicy, now time.Time) (LoginAttempt, error)
	RecordSuccessfulLogin(ctx context.Context, ip string, now time.Time) (LoginAttempt, error)
	DeleteStaleLoginAttempts(ctx context.Context, cutoff, now time.Time) (int64, error)
}

type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
	// Window restarts the count when the previous failure is older than it.
	Window time.Duration
}

func (p LockoutPolicy) withDefaults() LockoutPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.LockDuration <= 0 {
		p.LockDuration = DefaultLockDuration
	}
	if p.Window <= 0 {
		p.Window = DefaultAttemptWindow
	}
	return p
}

type AttemptState string

const (
	StateClean  AttemptState = "clean"
	StateWarned AttemptState = "warned"
	StateLocked AttemptState = "locked"
)

// AttemptTracker is the per-IP lockout state machine:
// clean -> warned (failures below threshold) -> locked (until blocked_until).
type AttemptTracker struct {
	store     AttemptStore
	policy    LockoutPolicy
	retention time.Duration
	logger    *observability.Logger
	now       func() time.Time
}

func NewAttemptTracker(store AttemptStore, policy LockoutPolicy, logger *observability.Logger) *AttemptTracker {
	return &AttemptTracker{
		store:     store,
		policy:    policy.withDefaults(),
		retention: DefaultAttemptRetention,
		logger:    logger,
		now:       time.Now,
	}
}

func (t *AttemptTracker) WithRetention(retention time.Duration) *AttemptTracker {
	if retention > 0 {
		t.retention = retention
	}
	return t
}

func (t *AttemptTracker) Policy() LockoutPolicy {
	return t.policy
}

// Check returns an AccountLockedError while the IP is locked. A lock that has
// already run out is cleared on the spot.
func (t *AttemptTracker) Check(ctx context.Context, ip string) error {
	now := t.now().UTC()

	record, found, err := t.store.GetLoginAttempt(ctx, ip)
	if err != nil {
		return err
	}
	if !found || record.BlockedUntil == nil {
		return nil
	}
	if record.LockedAt(now) {
		return AccountLockedError{Until: *record.BlockedUntil, now: now}
	}

	if err := t.store.ClearExpiredLock(ctx, ip, now); err != nil {
		return err
	}
	t.logger.Info("login_lock_expired", map[string]any{"ip": ip})
	return nil
}

// RecordFailure counts a failed login and returns an AccountLockedError when
// this failure reached the threshold.
func (t *AttemptTracker) RecordFailure(ctx context.Context, ip string) (LoginAttempt, error) {
	now := t.now().UTC()

	record, err := t.store.RecordFailedLogin(ctx, ip, t.policy, now)
	if err != nil {
		return LoginAttempt{}, err
	}

	if record.LockedAt(now) {
		t.logger.Warn("ip_locked", map[string]any{
			"ip":            ip,
			"attempts":      record.Attempts,
			"blocked_until": record.BlockedUntil.Format(time.RFC3339),
		})
		return record, AccountLockedError{Until: *record.BlockedUntil, now: now}
	}

	return record, nil
}

func (t *AttemptTracker) RecordSuccess(ctx context.Context, ip string) error {
	_, err := t.store.RecordSuccessfulLogin(ctx, ip, t.now().UTC())
	return err
}

func (t *AttemptTracker) State(record LoginAttempt) AttemptState {
	switch {
	case record.LockedAt(t.now()):
		return StateLocked
	case record.Attempts > 0:
		return StateWarned
	default:
		return StateClean
	}
}

// PruneStale deletes records idle for longer than the retention period that
// are not currently locked. It only keeps the table small.
func (t *AttemptTracker) PruneStale(ctx context.Context) (int64, error) {
	now := t.now().UTC()
	return t.store.DeleteStaleLoginAttempts(ctx, now.Add(-t.retention), now)
}
