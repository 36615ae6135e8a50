package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"moviecatalog/internal/observability"
)

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	// CreateUser returns ErrDuplicateAccount when the email is taken.
	CreateUser(ctx context.Context, user User) error
	UpdateUserProfile(ctx context.Context, id string, profile Profile, now time.Time) (User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string, now time.Time) error
	DeleteUser(ctx context.Context, id string) error
}

// Mailer delivers one message. Errors are returned, never swallowed.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Age       int
	Email     string
	Password  string
}

type Service struct {
	users       UserStore
	hasher      PasswordHasher
	tokens      Authenticator
	attempts    *AttemptTracker
	resets      *ResetTokens
	mailer      Mailer
	frontendURL string
	logger      *observability.Logger
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewService(
	users UserStore,
	hasher PasswordHasher,
	tokens Authenticator,
	attempts *AttemptTracker,
	resets *ResetTokens,
	logger *observability.Logger,
) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		attempts: attempts,
		resets:   resets,
		logger:   logger,
		now:      time.Now,
	}
}

// WithMailer enables password reset emails. frontendURL is the base of the
// link that carries the raw reset secret.
func (s *Service) WithMailer(mailer Mailer, frontendURL string) *Service {
	s.mailer = mailer
	s.frontendURL = strings.TrimRight(strings.TrimSpace(frontendURL), "/")
	return s
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (User, IssuedToken, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return User{}, IssuedToken{}, fmt.Errorf("email and password are required")
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return User{}, IssuedToken{}, ErrDuplicateAccount
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, IssuedToken{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return User{}, IssuedToken{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return User{}, IssuedToken{}, fmt.Errorf("generate user id: %w", err)
	}

	now := s.now().UTC()
	user := User{
		ID:           id.String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Age:          input.Age,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return User{}, IssuedToken{}, err
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return User{}, IssuedToken{}, err
	}

	s.logger.Info("user_registered", map[string]any{"user_id": user.ID})
	return user, token, nil
}

// Login answers ErrInvalidCredentials for unknown emails and wrong passwords
// alike. A locked IP is rejected before the credential store is read.
func (s *Service) Login(ctx context.Context, ip, email, password string) (User, IssuedToken, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return User{}, IssuedToken{}, ErrInvalidCredentials
	}

	if err := s.attempts.Check(ctx, ip); err != nil {
		return User{}, IssuedToken{}, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	found := err == nil
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return User{}, IssuedToken{}, err
	}

	hash := user.PasswordHash
	if !found {
		hash = s.timingHash()
	}
	if !s.hasher.Verify(password, hash) || !found {
		if _, err := s.attempts.RecordFailure(ctx, ip); err != nil {
			return User{}, IssuedToken{}, err
		}
		return User{}, IssuedToken{}, ErrInvalidCredentials
	}

	if err := s.attempts.RecordSuccess(ctx, ip); err != nil {
		return User{}, IssuedToken{}, err
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return User{}, IssuedToken{}, err
	}

	s.logger.Info("user_logged_in", map[string]any{"user_id": user.ID, "ip": ip})
	return user, token, nil
}

func (s *Service) Logout(ctx context.Context, token, userID string) error {
	return s.tokens.Revoke(ctx, token, userID, ReasonLogout)
}

func (s *Service) Profile(ctx context.Context, userID string) (User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, profile Profile) (User, error) {
	profile.Email = NormalizeEmail(profile.Email)
	profile.FirstName = strings.TrimSpace(profile.FirstName)
	profile.LastName = strings.TrimSpace(profile.LastName)

	existing, err := s.users.GetUserByEmail(ctx, profile.Email)
	if err == nil && existing.ID != userID {
		return User{}, ErrDuplicateAccount
	}
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}

	return s.users.UpdateUserProfile(ctx, userID, profile, s.now().UTC())
}

// ChangePassword re-hashes the password and revokes the token that made the
// request.
func (s *Service) ChangePassword(ctx context.Context, userID, token, current, next string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdateUserPassword(ctx, userID, hash, s.now().UTC()); err != nil {
		return err
	}

	return s.tokens.Revoke(ctx, token, userID, ReasonPasswordChanged)
}

// DeleteAccount requires the current password again before removing the
// user and its outstanding reset tokens.
func (s *Service) DeleteAccount(ctx context.Context, userID, token, password string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	if err := s.resets.DeleteForUser(ctx, userID); err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("account_deleted", map[string]any{"user_id": userID})
	return s.tokens.Revoke(ctx, token, userID, ReasonSecurityRevocation)
}

// RequestPasswordReset returns nil for unknown emails so callers answer the
// same way whether or not the account exists. Without a mailer every email
// gets ErrResetUnavailable and no token is stored.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if s.mailer == nil {
		return ErrResetUnavailable
	}

	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Debug("password_reset_unknown_email", nil)
			return nil
		}
		return err
	}

	raw, err := s.resets.Create(ctx, user.ID)
	if err != nil {
		return err
	}

	subject, body := passwordResetEmail(user.FirstName, s.resetLink(raw))
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.logger.Error("password_reset_email_failed", map[string]any{"user_id": user.ID, "error": err.Error()})
		return fmt.Errorf("%w: %v", ErrEmailDeliveryFailed, err)
	}

	s.logger.Info("password_reset_requested", map[string]any{"user_id": user.ID})
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, raw, newPassword string) error {
	if _, err := s.resets.Validate(ctx, raw); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	token, err := s.resets.Consume(ctx, raw)
	if err != nil {
		return err
	}

	if err := s.users.UpdateUserPassword(ctx, token.UserID, hash, s.now().UTC()); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}

	s.logger.Info("password_reset_completed", map[string]any{"user_id": token.UserID})
	return nil
}

func (s *Service) resetLink(raw string) string {
	return s.frontendURL + "/reset-password?token=" + url.QueryEscape(raw)
}

// timingHash gives unknown-email logins a real hash to compare against so
// they cost the same as a wrong password.
func (s *Service) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
