package auth

import (
	"context"
	"fmt"
	"time"

	"moviecatalog/internal/observability"
)

type BlacklistStore interface {
	InsertBlacklistedToken(ctx context.Context, entry BlacklistedToken) error
	IsTokenBlacklisted(ctx context.Context, fingerprint string, now time.Time) (bool, error)
	DeleteExpiredBlacklistedTokens(ctx context.Context, now time.Time) (int64, error)
}

// Blacklist records revoked session tokens by fingerprint until their
// natural expiry.
//
// Contains fails open: if the store cannot be reached the token is treated
// as not revoked, so a store outage does not log out every session. Each
// such failure is logged as blacklist_lookup_failed and sent to Sentry.
type Blacklist struct {
	store  BlacklistStore
	logger *observability.Logger
	now    func() time.Time
}

func NewBlacklist(store BlacklistStore, logger *observability.Logger) *Blacklist {
	return &Blacklist{store: store, logger: logger, now: time.Now}
}

func (b *Blacklist) Add(ctx context.Context, fingerprint, userID string, reason RevocationReason, expiresAt time.Time) error {
	if fingerprint == "" {
		return fmt.Errorf("blacklist token: empty fingerprint")
	}
	if !reason.Valid() {
		return fmt.Errorf("blacklist token: unknown reason %q", reason)
	}

	entry := BlacklistedToken{
		Fingerprint: fingerprint,
		UserID:      userID,
		Reason:      reason,
		ExpiresAt:   expiresAt.UTC(),
		CreatedAt:   b.now().UTC(),
	}
	if err := b.store.InsertBlacklistedToken(ctx, entry); err != nil {
		return err
	}

	b.logger.Info("token_revoked", map[string]any{"user_id": userID, "reason": string(reason)})
	return nil
}

func (b *Blacklist) Contains(ctx context.Context, fingerprint string) bool {
	found, err := b.store.IsTokenBlacklisted(ctx, fingerprint, b.now().UTC())
	if err != nil {
		fields := map[string]any{"error": err.Error()}
		b.logger.Error("blacklist_lookup_failed", fields)
		observability.CaptureError(err, fields)
		return false
	}
	return found
}

// SweepExpired removes entries whose token can no longer verify anyway.
func (b *Blacklist) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := b.store.DeleteExpiredBlacklistedTokens(ctx, b.now().UTC())
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
