package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// memoryStore mirrors the Postgres repository's row semantics in memory.
type memoryStore struct {
	mu        sync.Mutex
	users     map[string]User
	blacklist map[string]BlacklistedToken
	attempts  map[string]LoginAttempt
	resets    map[string]PasswordResetToken

	blacklistErr error
	emailLookups int
	failedWrites int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:     map[string]User{},
		blacklist: map[string]BlacklistedToken{},
		attempts:  map[string]LoginAttempt{},
		resets:    map[string]PasswordResetToken{},
	}
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailLookups++
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *memoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (m *memoryStore) CreateUser(_ context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return ErrDuplicateAccount
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryStore) UpdateUserProfile(_ context.Context, id string, profile Profile, now time.Time) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	for _, existing := range m.users {
		if existing.ID != id && existing.Email == profile.Email {
			return User{}, ErrDuplicateAccount
		}
	}
	user.FirstName = profile.FirstName
	user.LastName = profile.LastName
	user.Age = profile.Age
	user.Email = profile.Email
	user.UpdatedAt = now
	m.users[id] = user
	return user, nil
}

func (m *memoryStore) UpdateUserPassword(_ context.Context, id, passwordHash string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = now
	m.users[id] = user
	return nil
}

func (m *memoryStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, id)
	for fp, token := range m.resets {
		if token.UserID == id {
			delete(m.resets, fp)
		}
	}
	return nil
}

func (m *memoryStore) InsertBlacklistedToken(_ context.Context, entry BlacklistedToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blacklist[entry.Fingerprint]; !ok {
		m.blacklist[entry.Fingerprint] = entry
	}
	return nil
}

func (m *memoryStore) IsTokenBlacklisted(_ context.Context, fingerprint string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blacklistErr != nil {
		return false, m.blacklistErr
	}
	entry, ok := m.blacklist[fingerprint]
	return ok && entry.ExpiresAt.After(now), nil
}

func (m *memoryStore) DeleteExpiredBlacklistedTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for fp, entry := range m.blacklist {
		if !entry.ExpiresAt.After(now) {
			delete(m.blacklist, fp)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memoryStore) GetLoginAttempt(_ context.Context, ip string) (LoginAttempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.attempts[ip]
	return record, ok, nil
}

func (m *memoryStore) ClearExpiredLock(_ context.Context, ip string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.attempts[ip]
	if ok && record.BlockedUntil != nil && !record.BlockedUntil.After(now) {
		record.Attempts = 0
		record.BlockedUntil = nil
		m.attempts[ip] = record
	}
	return nil
}

func (m *memoryStore) RecordFailedLogin(_ context.Context, ip string, policy LockoutPolicy, now time.Time) (LoginAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedWrites++

	lockUntil := now.Add(policy.LockDuration)
	record, ok := m.attempts[ip]
	switch {
	case !ok:
		record = LoginAttempt{IP: ip, Attempts: 1}
		if 1 >= policy.MaxAttempts {
			record.BlockedUntil = &lockUntil
		}
	case record.BlockedUntil != nil && record.BlockedUntil.After(now):
		record.Attempts++
	case record.BlockedUntil != nil || record.LastAttempt.Before(now.Add(-policy.Window)):
		record.Attempts = 1
		record.BlockedUntil = nil
		if 1 >= policy.MaxAttempts {
			record.BlockedUntil = &lockUntil
		}
	default:
		record.Attempts++
		if record.Attempts >= policy.MaxAttempts {
			record.BlockedUntil = &lockUntil
		}
	}
	record.LastAttempt = now
	m.attempts[ip] = record
	return record, nil
}

func (m *memoryStore) RecordSuccessfulLogin(_ context.Context, ip string, now time.Time) (LoginAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := m.attempts[ip]
	record.IP = ip
	record.Attempts = 0
	record.BlockedUntil = nil
	record.LastAttempt = now
	record.SuccessfulLogins++
	m.attempts[ip] = record
	return record, nil
}

func (m *memoryStore) DeleteStaleLoginAttempts(_ context.Context, cutoff, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for ip, record := range m.attempts {
		if record.LastAttempt.Before(cutoff) && !record.LockedAt(now) {
			delete(m.attempts, ip)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memoryStore) ReplaceResetToken(_ context.Context, token PasswordResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for fp, existing := range m.resets {
		if existing.UserID == token.UserID {
			delete(m.resets, fp)
		}
	}
	m.resets[token.Fingerprint] = token
	return nil
}

func (m *memoryStore) FindValidResetToken(_ context.Context, fingerprint string, now time.Time) (PasswordResetToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.resets[fingerprint]
	if !ok || token.Used || !token.ExpiresAt.After(now) {
		return PasswordResetToken{}, false, nil
	}
	return token, true, nil
}

func (m *memoryStore) ConsumeResetToken(_ context.Context, fingerprint string, now time.Time) (PasswordResetToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.resets[fingerprint]
	if !ok || token.Used || !token.ExpiresAt.After(now) {
		return PasswordResetToken{}, false, nil
	}
	token.Used = true
	m.resets[fingerprint] = token
	return token, true, nil
}

func (m *memoryStore) DeleteResetTokensForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for fp, token := range m.resets {
		if token.UserID == userID {
			delete(m.resets, fp)
		}
	}
	return nil
}

func (m *memoryStore) DeleteExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for fp, token := range m.resets {
		if token.Used || !token.ExpiresAt.After(now) {
			delete(m.resets, fp)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memoryStore) lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emailLookups
}

type recordingMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	failure error
}

type sentMail struct {
	to, subject, body string
}

func (r *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failure != nil {
		return r.failure
	}
	r.sent = append(r.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

// plainHasher keeps service tests fast; bcrypt itself is covered in
// password_test.go.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	return "plain:" + password, nil
}

func (plainHasher) Verify(password, hash string) bool {
	return hash != "" && hash == "plain:"+password
}
