package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"moviecatalog/internal/httpx"
	"moviecatalog/internal/observability"
)

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type contextKey int

const (
	identityKey contextKey = iota
	rawTokenKey
)

// IdentityFromContext returns the identity attached by Middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// TokenFromContext returns the raw bearer token of the current request.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(rawTokenKey).(string)
	return token
}

func WithIdentity(ctx context.Context, identity Identity, token string) context.Context {
	ctx = context.WithValue(ctx, identityKey, identity)
	return context.WithValue(ctx, rawTokenKey, token)
}

// Middleware gates protected routes. Expired tokens are routine and logged at
// info; blacklisted and invalid tokens may mean tampering and are logged at
// warn.
func Middleware(verifier TokenVerifier, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fields := map[string]any{"path": r.URL.Path, "ip": r.RemoteAddr}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				fields["error_type"] = "missing_token"
				logger.Warn("auth_rejected", fields)
				httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeMissingToken, "missing token")
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, ErrTokenExpired):
					fields["error_type"] = "token_expired"
					logger.Info("auth_token_expired", fields)
					httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeTokenExpired, "token expired, please log in again")
				case errors.Is(err, ErrTokenBlacklisted):
					fields["error_type"] = "token_blacklisted"
					logger.Warn("auth_rejected", fields)
					httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeTokenBlacklisted, "token revoked, please log in again")
				default:
					fields["error_type"] = "token_invalid"
					logger.Warn("auth_rejected", fields)
					httpx.WriteError(w, http.StatusForbidden, httpx.CodeTokenInvalid, "invalid or malformed token")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity, token)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
