package httpx

import (
	"encoding/json"
	"net/http"
)

const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeAccountLocked       = "ACCOUNT_LOCKED"
	CodeMissingToken        = "MISSING_TOKEN"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeTokenInvalid        = "TOKEN_INVALID"
	CodeTokenBlacklisted    = "TOKEN_BLACKLISTED"
	CodeResetTokenInvalid   = "RESET_TOKEN_INVALID"
	CodeEmailDeliveryFailed = "EMAIL_DELIVERY_FAILED"
	CodeResetUnavailable    = "RESET_UNAVAILABLE"
	CodeDuplicateAccount    = "DUPLICATE_ACCOUNT"
	CodeAlreadyFavorite     = "ALREADY_FAVORITE"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorWith(w, status, code, message, nil)
}

// WriteErrorWith adds extra top-level fields next to "error" and "code".
func WriteErrorWith(w http.ResponseWriter, status int, code, message string, extra map[string]any) {
	body := map[string]any{"error": message, "code": code}
	for k, v := range extra {
		body[k] = v
	}
	WriteJSON(w, status, body)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternal, message)
}
