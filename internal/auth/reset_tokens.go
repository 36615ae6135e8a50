package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// ResetTokenTTL is fixed and intentionally not configurable.
	ResetTokenTTL = time.Hour

	resetSecretBytes = 32
)

type ResetTokenStore interface {
	// ReplaceResetToken deletes every earlier token of the same user and
	// inserts the new one atomically.
	ReplaceResetToken(ctx context.Context, token PasswordResetToken) error
	FindValidResetToken(ctx context.Context, fingerprint string, now time.Time) (PasswordResetToken, bool, error)
	// ConsumeResetToken flips used from false to true for an unexpired token.
	// Only one concurrent caller can observe found == true.
	ConsumeResetToken(ctx context.Context, fingerprint string, now time.Time) (PasswordResetToken, bool, error)
	DeleteResetTokensForUser(ctx context.Context, userID string) error
	DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// ResetTokens issues single-use password reset secrets. Only the
// fingerprint is stored; the raw secret leaves through the reset email.
type ResetTokens struct {
	store ResetTokenStore
	now   func() time.Time
}

func NewResetTokens(store ResetTokenStore) *ResetTokens {
	return &ResetTokens{store: store, now: time.Now}
}

func (r *ResetTokens) Create(ctx context.Context, userID string) (string, error) {
	raw, err := randomSecret(resetSecretBytes)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	now := r.now().UTC()
	token := PasswordResetToken{
		Fingerprint: Fingerprint(raw),
		UserID:      userID,
		ExpiresAt:   now.Add(ResetTokenTTL),
		CreatedAt:   now,
	}
	if err := r.store.ReplaceResetToken(ctx, token); err != nil {
		return "", err
	}

	return raw, nil
}

// Validate reports ErrResetTokenInvalid for unknown, expired and used
// secrets alike.
func (r *ResetTokens) Validate(ctx context.Context, raw string) (PasswordResetToken, error) {
	token, found, err := r.store.FindValidResetToken(ctx, Fingerprint(raw), r.now().UTC())
	if err != nil {
		return PasswordResetToken{}, err
	}
	if !found {
		return PasswordResetToken{}, ErrResetTokenInvalid
	}
	return token, nil
}

func (r *ResetTokens) Consume(ctx context.Context, raw string) (PasswordResetToken, error) {
	token, found, err := r.store.ConsumeResetToken(ctx, Fingerprint(raw), r.now().UTC())
	if err != nil {
		return PasswordResetToken{}, err
	}
	if !found {
		return PasswordResetToken{}, ErrResetTokenInvalid
	}
	return token, nil
}

func (r *ResetTokens) DeleteForUser(ctx context.Context, userID string) error {
	return r.store.DeleteResetTokensForUser(ctx, userID)
}

func (r *ResetTokens) SweepExpired(ctx context.Context) (int64, error) {
	return r.store.DeleteExpiredResetTokens(ctx, r.now().UTC())
}

func randomSecret(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
