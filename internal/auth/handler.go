package auth

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"moviecatalog/internal/httpx"
	"moviecatalog/internal/observability"
)

const forgotPasswordMessage = "if the email is registered, a password reset link has been sent"

type Handler struct {
	service *Service
	logger  *observability.Logger
}

func NewHandler(service *Service, logger *observability.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type registerRequest struct {
	FirstName       string `json:"first_name" validate:"required,min=2,max=50"`
	LastName        string `json:"last_name" validate:"required,min=2,max=50"`
	Age             int    `json:"age" validate:"required,min=13,max=120"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,passwordbytes,strongpassword"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,passwordbytes"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type resetPasswordRequest struct {
	Token           string `json:"token" validate:"required,len=64,hexadecimal"`
	NewPassword     string `json:"new_password" validate:"required,passwordbytes,strongpassword"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

type updateProfileRequest struct {
	FirstName string `json:"first_name" validate:"required,min=2,max=50"`
	LastName  string `json:"last_name" validate:"required,min=2,max=50"`
	Age       int    `json:"age" validate:"required,min=13,max=120"`
	Email     string `json:"email" validate:"required,email,max=254"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,passwordbytes"`
	NewPassword     string `json:"new_password" validate:"required,passwordbytes,strongpassword"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

type deleteAccountRequest struct {
	Password    string `json:"password" validate:"required,passwordbytes"`
	ConfirmText string `json:"confirm_text" validate:"required,eq=DELETE"`
}

type sessionResponse struct {
	IssuedToken
	User User `json:"user"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := httpx.DecodeAndValidate(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
		return
	}

	user, token, err := h.service.Register(r.Context(), RegisterInput{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Age:       body.Age,
		Email:     body.Email,
		Password:  body.Password,
	})
	if err != nil {
		h.fail(w, r, err, "failed to register user")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, sessionResponse{IssuedToken: token, User: user})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := httpx.DecodeAndValidate(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
		return
	}

	user, token, err := h.service.Login(r.Context(), r.RemoteAddr, body.Email, body.Password)
	if err != nil {
		h.fail(w, r, err, "failed to login")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sessionResponse{IssuedToken: token, User: user})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeMissingToken, "missing token")
		return
	}

	if err := h.service.Logout(r.Context(), TokenFromContext(r.Context()), identity.UserID); err != nil {
		h.fail(w, r, err, "failed to logout")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	user, err := h.service.Profile(r.Context(), identity.UserID)
	if err != nil {
		h.fail(w, r, err, "failed to load profile")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var body updateProfileRequest
	if err := httpx.DecodeAndValidate(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), identity.UserID, Profile{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Age:       body.Age,
		Email:     body.Email,
	})
	if err != nil {
		h.fail(w, r, err, "failed to update profile")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var body changePasswordRequest
	if err := httpx.DecodeAndValidate(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
		return
	}

	err := h.service.ChangePassword(r.Context(), identity.UserID, TokenFromContext(r.Context()), body.CurrentPassword, body.NewPassword)
	if err != nil {
		h.fail(w, r, err, "failed to change password")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "password changed, please log in again"})
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var body deleteAccountRequest
	if err := httpx.DecodeAndValidate(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
		return
	}

	if err := h.service.DeleteAccount(r.Context(), identity.UserID, TokenFromContext(r.Context()), body.Password); err != nil {
		h.fail(w, r, err, "failed to delete account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body forgotPasswordRequest
	if err := httpx.DecodeAndValidate(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), body.Email); err != nil {
		h.fail(w, r, err, "failed to request password reset")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": forgotPasswordMessage})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if err := httpx.DecodeAndValidate(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
		return
	}

	if err := h.service.ResetPassword(r.Context(), body.Token, body.NewPassword); err != nil {
		h.fail(w, r, err, "failed to reset password")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "password has been reset"})
}

// fail maps expected outcomes to 4xx answers. Anything else is logged,
// reported and answered with a bare 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, message string) {
	var locked AccountLockedError
	switch {
	case errors.As(err, &locked):
		w.Header().Set("Retry-After", strconv.Itoa(int(locked.Remaining().Round(time.Second).Seconds())))
		httpx.WriteErrorWith(w, http.StatusTooManyRequests, httpx.CodeAccountLocked,
			"too many failed login attempts, try again later",
			map[string]any{"remaining_minutes": locked.RemainingMinutes()})
	case errors.Is(err, ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, ErrDuplicateAccount):
		httpx.WriteError(w, http.StatusConflict, httpx.CodeDuplicateAccount, "email already registered")
	case errors.Is(err, ErrResetTokenInvalid):
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeResetTokenInvalid, "invalid or expired token")
	case errors.Is(err, ErrEmailDeliveryFailed):
		h.logger.Error("email_delivery_failed", map[string]any{"path": r.URL.Path, "error": err.Error()})
		httpx.WriteError(w, http.StatusBadGateway, httpx.CodeEmailDeliveryFailed, "reset email failed to send, try again later")
	case errors.Is(err, ErrResetUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable, httpx.CodeResetUnavailable, "password reset is not available")
	case errors.Is(err, ErrPasswordTooLong):
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "password must be at most 72 bytes")
	case errors.Is(err, ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "user not found")
	case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenBlacklisted):
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "please log in again")
	case errors.Is(err, ErrTokenInvalid):
		httpx.WriteError(w, http.StatusForbidden, httpx.CodeTokenInvalid, "invalid or malformed token")
	default:
		fields := map[string]any{"path": r.URL.Path, "method": r.Method, "error": err.Error()}
		h.logger.Error("auth_request_failed", fields)
		observability.CaptureError(err, fields)
		httpx.InternalError(w, message)
	}
}
