package auth

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"moviecatalog/internal/observability"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store     *memoryStore
	clock     *testClock
	logs      *bytes.Buffer
	blacklist *Blacklist
	tokens    *TokenService
	attempts  *AttemptTracker
	resets    *ResetTokens
	mailer    *recordingMailer
	service   *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	logs := &bytes.Buffer{}
	logger := observability.NewLoggerTo(logs, observability.LevelDebug)
	store := newMemoryStore()

	blacklist := NewBlacklist(store, logger)
	blacklist.now = clock.Now

	tokens := NewTokenService(TokenConfig{Secret: testSecret, TTL: time.Hour}, blacklist)
	tokens.now = clock.Now

	attempts := NewAttemptTracker(store, LockoutPolicy{}, logger)
	attempts.now = clock.Now

	resets := NewResetTokens(store)
	resets.now = clock.Now

	mailer := &recordingMailer{}
	service := NewService(store, plainHasher{}, tokens, attempts, resets, logger).
		WithMailer(mailer, "https://movies.example.com/")
	service.now = clock.Now

	return &harness{
		store:     store,
		clock:     clock,
		logs:      logs,
		blacklist: blacklist,
		tokens:    tokens,
		attempts:  attempts,
		resets:    resets,
		mailer:    mailer,
		service:   service,
	}
}
