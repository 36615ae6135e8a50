package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moviecatalog/internal/auth"
	"moviecatalog/internal/observability"
)

const DefaultSweepInterval = time.Hour

type expirySweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type attemptPruner interface {
	PruneStale(ctx context.Context) (int64, error)
}

// Cleaner removes auth rows that can no longer affect any decision:
// blacklist entries past their token's expiry, used or expired reset
// tokens, and idle unlocked login-attempt records.
type Cleaner struct {
	blacklist expirySweeper
	resets    expirySweeper
	attempts  attemptPruner
	logger    *observability.Logger
}

func NewCleaner(blacklist, resets expirySweeper, attempts attemptPruner, logger *observability.Logger) *Cleaner {
	return &Cleaner{blacklist: blacklist, resets: resets, attempts: attempts, logger: logger}
}

// Run performs every sweep even if an earlier one fails, and reports what
// was deleted together with the joined errors.
func (c *Cleaner) Run(ctx context.Context) (auth.CleanupResult, error) {
	var result auth.CleanupResult
	var errs []error

	deleted, err := c.blacklist.SweepExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("sweep blacklist: %w", err))
	}
	result.DeletedBlacklistedTokens = deleted

	deleted, err = c.resets.SweepExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("sweep reset tokens: %w", err))
	}
	result.DeletedResetTokens = deleted

	deleted, err = c.attempts.PruneStale(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("prune login attempts: %w", err))
	}
	result.DeletedLoginAttempts = deleted

	if err := errors.Join(errs...); err != nil {
		c.logger.Error("auth_cleanup_failed", map[string]any{"error": err.Error()})
		return result, err
	}

	c.logger.Info("auth_cleanup_completed", map[string]any{
		"deleted_blacklisted_tokens": result.DeletedBlacklistedTokens,
		"deleted_reset_tokens":       result.DeletedResetTokens,
		"deleted_login_attempts":     result.DeletedLoginAttempts,
	})
	return result, nil
}

// Sweeper runs the Cleaner on a fixed interval inside a long-lived process.
// Serverless deployments call the cleanup endpoint from a cron instead.
type Sweeper struct {
	cleaner  *Cleaner
	interval time.Duration
	logger   *observability.Logger
}

func NewSweeper(cleaner *Cleaner, interval time.Duration, logger *observability.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{cleaner: cleaner, interval: interval, logger: logger}
}

// Start blocks until ctx is cancelled. The first sweep runs immediately.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("auth_sweeper_started", map[string]any{"interval": s.interval.String()})

	s.run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("auth_sweeper_stopped", nil)
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Sweeper) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, _ = s.cleaner.Run(ctx)
}
