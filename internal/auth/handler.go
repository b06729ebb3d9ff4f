package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orgdesk/orgdesk-api/internal/account"
	"github.com/orgdesk/orgdesk-api/internal/httputil"
	"github.com/orgdesk/orgdesk-api/internal/logging"
)

// RateLimiter defines the abuse-prevention checks the handlers consult.
// Implemented by ratelimit.Limiter.
type RateLimiter interface {
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, email string) error
}

// Handler contains HTTP handlers for the auth endpoints
type Handler struct {
	service     *Service
	sessions    *SessionManager
	rateLimiter RateLimiter
	logger      *logging.Logger
}

func NewHandler(service *Service, sessions *SessionManager, rateLimiter RateLimiter, logger *logging.Logger) *Handler {
	return &Handler{
		service:     service,
		sessions:    sessions,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// SignUpRequest represents the signup request body
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInRequest represents the signin request body
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ActivateRequest represents the body-based verification request
type ActivateRequest struct {
	Token string `json:"token"`
}

// ForgotPasswordRequest represents the password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResendVerificationRequest represents the resend verification email request
type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// SignUp handles account registration
// @Summary      Register a new account
// @Description  Create an account with email and password. A verification email will be sent.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignUpRequest true "Registration credentials"
// @Success      201 {object} httputil.Response
// @Failure      400 {object} httputil.Response "Invalid request or validation error"
// @Failure      409 {object} httputil.Response "Email already exists"
// @Router       /auth/signup [post]
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.ipLimited(w, r, ip, "signup") {
		return
	}

	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid signup request body", "error", err.Error())
		httputil.RespondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "signup"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	newAccount, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrDuplicateEmail):
			logger.Warn("signup failed: email already exists")
			httputil.RespondError(w, "email already exists", http.StatusConflict)
		case errors.Is(err, ErrEmailRequired),
			errors.Is(err, ErrInvalidEmailFormat),
			errors.Is(err, ErrPasswordRequired),
			errors.Is(err, ErrPasswordTooShort):
			logger.Warn("signup failed: validation error", "error", err.Error())
			httputil.RespondError(w, err.Error(), http.StatusBadRequest)
		default:
			logger.Error("signup failed: internal error", "error", err.Error())
			httputil.RespondError(w, "failed to register account", http.StatusInternalServerError)
		}
		return
	}

	logger.Info("account registered", "account_id", newAccount.ID)

	httputil.RespondSuccess(w,
		"Registration successful. Please check your email to verify your account.",
		nil, http.StatusCreated)
}

// VerifyEmail handles email verification with the token in the path
// @Summary      Verify email address
// @Description  Verify an account's email using the token from the verification link
// @Tags         auth
// @Produce      json
// @Param        token path string true "Verification token"
// @Success      200 {object} httputil.Response
// @Failure      400 {object} httputil.Response "Invalid or expired token"
// @Router       /auth/verify/{token} [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, chi.URLParam(r, "token"))
}

// Activate handles email verification with the token in the body
// @Summary      Activate account
// @Description  Verify an account's email using a token submitted in the request body
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ActivateRequest true "Verification token"
// @Success      200 {object} httputil.Response
// @Failure      400 {object} httputil.Response "Invalid or expired token"
// @Router       /auth/activate [post]
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid activate request body", "error", err.Error())
		httputil.RespondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.verify(w, r, req.Token)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request, token string) {
	logger := logging.GetLoggerFromContext(r.Context())

	if token == "" {
		logger.Warn("email verification failed: token missing")
		httputil.RespondError(w, "verification token required", http.StatusBadRequest)
		return
	}

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			logger.Warn("email verification failed: token expired")
			httputil.RespondError(w, "Verification link has expired. Please request a new one.", http.StatusBadRequest)
		case errors.Is(err, ErrInvalidToken):
			logger.Warn("email verification failed: invalid token")
			httputil.RespondError(w, "Invalid verification token.", http.StatusBadRequest)
		default:
			logger.Error("email verification failed: internal error", "error", err.Error())
			httputil.RespondError(w, "failed to verify email", http.StatusInternalServerError)
		}
		return
	}

	logger.Info("email verified")

	httputil.RespondSuccess(w, "Email verified successfully. You can now sign in.", nil, http.StatusOK)
}

// SignIn handles credential checks and session issuance
// @Summary      Sign in
// @Description  Authenticate with email and password; a session cookie is set on success.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignInRequest true "Credentials"
// @Success      200 {object} httputil.Response
// @Failure      401 {object} httputil.Response "Invalid credentials"
// @Failure      403 {object} httputil.Response "Account not verified"
// @Router       /auth/signin [post]
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.ipLimited(w, r, ip, "signin") {
		return
	}

	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid signin request body", "error", err.Error())
		httputil.RespondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "signin"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	acc, session, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			logger.Warn("signin failed: invalid credentials")
			httputil.RespondError(w, "invalid email or password", http.StatusUnauthorized)
		case errors.Is(err, ErrAccountNotVerified):
			logger.Warn("signin failed: account not verified")
			httputil.RespondError(w, "account not verified, please check your inbox", http.StatusForbidden)
		default:
			logger.Error("signin failed: internal error", "error", err.Error())
			httputil.RespondError(w, "failed to sign in", http.StatusInternalServerError)
		}
		return
	}

	logger.Info("signed in", "account_id", acc.ID)

	http.SetCookie(w, h.sessions.Cookie(session))
	httputil.RespondSuccess(w, "signed in successfully", acc.Profile(), http.StatusOK)
}

// SignOut handles session invalidation
// @Summary      Sign out
// @Description  Invalidate the current session and clear the session cookie
// @Tags         auth
// @Produce      json
// @Success      200 {object} httputil.Response
// @Failure      401 {object} httputil.Response "Not authenticated"
// @Router       /auth/signout [post]
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if session, ok := SessionFromContext(r.Context()); ok {
		if err := h.service.SignOut(r.Context(), session.ID); err != nil {
			logger.Error("signout failed: internal error", "error", err.Error())
			httputil.RespondError(w, "failed to sign out", http.StatusInternalServerError)
			return
		}
	}

	http.SetCookie(w, h.sessions.BlankCookie())

	logger.Info("signed out")

	httputil.RespondSuccess(w, "signed out", nil, http.StatusOK)
}

// CurrentUser returns the authenticated account's public profile
// @Summary      Current account
// @Description  Return the public profile of the authenticated account
// @Tags         auth
// @Produce      json
// @Success      200 {object} httputil.Response
// @Failure      401 {object} httputil.Response "Not authenticated"
// @Router       /auth/user [get]
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	acc, ok := AccountFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	httputil.RespondSuccess(w, "ok", acc.Profile(), http.StatusOK)
}

// ForgotPassword handles password reset requests
// @Summary      Request password reset
// @Description  Send a password reset link. Always answers with the same message to prevent email enumeration.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordRequest true "Email address"
// @Success      200 {object} httputil.Response
// @Failure      429 {object} httputil.Response "Too many requests"
// @Router       /auth/forgot [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid forgot password request body", "error", err.Error())
		httputil.RespondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ip := getClientIP(r)
	if h.ipLimited(w, r, ip, "forgot") {
		return
	}
	if h.emailOnCooldown(w, r, req.Email) {
		return
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "forgot"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
	if err := h.rateLimiter.SetEmailCooldown(r.Context(), req.Email); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}

	// Always succeeds from the caller's perspective.
	_ = h.service.ForgotPassword(r.Context(), req.Email)

	httputil.RespondSuccess(w,
		"If an account exists with that email, a password reset link has been sent.",
		nil, http.StatusOK)
}

// ResetPassword handles password reset with token
// @Summary      Reset password
// @Description  Reset an account's password using a valid reset token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Reset token and new password"
// @Success      200 {object} httputil.Response
// @Failure      400 {object} httputil.Response "Invalid request or token"
// @Router       /auth/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		httputil.RespondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			logger.Warn("password reset failed: token expired")
			httputil.RespondError(w, "Reset link has expired. Please request a new one.", http.StatusBadRequest)
		case errors.Is(err, ErrInvalidToken):
			logger.Warn("password reset failed: invalid token")
			httputil.RespondError(w, "invalid reset token", http.StatusBadRequest)
		case errors.Is(err, ErrPasswordRequired), errors.Is(err, ErrPasswordTooShort):
			logger.Warn("password reset failed: validation error", "error", err.Error())
			httputil.RespondError(w, err.Error(), http.StatusBadRequest)
		default:
			logger.Error("password reset failed: internal error", "error", err.Error())
			httputil.RespondError(w, "failed to reset password", http.StatusInternalServerError)
		}
		return
	}

	logger.Info("password reset")

	httputil.RespondSuccess(w,
		"Password reset successfully. You can now sign in with your new password.",
		nil, http.StatusOK)
}

// ResendVerification handles resending the verification email
// @Summary      Resend verification email
// @Description  Send a new verification email. Always answers with the same message to prevent email enumeration.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResendVerificationRequest true "Email address"
// @Success      200 {object} httputil.Response
// @Failure      429 {object} httputil.Response "Too many requests"
// @Router       /auth/resend-verification [post]
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid resend verification request body", "error", err.Error())
		httputil.RespondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ip := getClientIP(r)
	if h.ipLimited(w, r, ip, "resend") {
		return
	}
	if h.emailOnCooldown(w, r, req.Email) {
		return
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "resend"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
	if err := h.rateLimiter.SetEmailCooldown(r.Context(), req.Email); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}

	_ = h.service.ResendVerification(r.Context(), req.Email)

	httputil.RespondSuccess(w,
		"If your email is registered and not verified, a new verification link has been sent.",
		nil, http.StatusOK)
}

// UpdateProfile updates the authenticated account's profile fields
// @Summary      Update profile
// @Description  Update owner-mutable profile fields of the authenticated account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body account.ProfileUpdate true "Profile fields"
// @Success      200 {object} httputil.Response
// @Failure      401 {object} httputil.Response "Not authenticated"
// @Router       /auth/updateProfile [post]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	acc, ok := AccountFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var update account.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		logger.Warn("invalid update profile request body", "error", err.Error())
		httputil.RespondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), acc.ID, update)
	if err != nil {
		logger.Error("profile update failed: internal error", "error", err.Error())
		httputil.RespondError(w, "failed to update profile", http.StatusInternalServerError)
		return
	}

	logger.Info("profile updated", "account_id", acc.ID)

	httputil.RespondSuccess(w, "profile updated", updated.Profile(), http.StatusOK)
}

// ipLimited answers true (and writes the response) when the IP is over its
// window for the purpose. Limiter failures never block the request.
func (h *Handler) ipLimited(w http.ResponseWriter, r *http.Request, ip, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
		return false
	}
	if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		httputil.RespondError(w, "too many requests, please try again later", http.StatusTooManyRequests)
		return true
	}

	return false
}

func (h *Handler) emailOnCooldown(w http.ResponseWriter, r *http.Request, email string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
		return false
	}
	if onCooldown {
		logger.Warn("email on cooldown", "email", email)
		httputil.RespondError(w, "please wait before requesting another email", http.StatusTooManyRequests)
		return true
	}

	return false
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr format is "IP:port", extract just the IP
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
