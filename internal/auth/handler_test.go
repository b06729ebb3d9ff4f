package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgdesk/orgdesk-api/internal/httputil"
	"github.com/orgdesk/orgdesk-api/internal/logging"
)

type testAPI struct {
	router   *chi.Mux
	accounts *fakeAccountRepo
	manager  *SessionManager
	mailer   *fakeEmailService
	service  *Service
}

func newTestAPI(t *testing.T, limiter RateLimiter) *testAPI {
	t.Helper()

	accounts := newFakeAccountRepo()
	sessions := newFakeSessionRepo()
	mailer := &fakeEmailService{}
	logger := logging.NewLogger(true)

	manager := NewSessionManager(sessions, accounts, SessionManagerConfig{
		Duration:   time.Hour,
		CookieName: "session_id",
	})
	service := NewService(accounts, manager, mailer, logger)
	handler := NewHandler(service, manager, limiter, logger)

	r := chi.NewRouter()
	r.Use(NewMiddleware(manager).SessionContext)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", handler.SignUp)
		r.Get("/verify/{token}", handler.VerifyEmail)
		r.Post("/activate", handler.Activate)
		r.Post("/signin", handler.SignIn)
		r.Post("/forgot", handler.ForgotPassword)
		r.Post("/reset-password", handler.ResetPassword)
		r.Post("/resend-verification", handler.ResendVerification)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)
			r.Post("/signout", handler.SignOut)
			r.Get("/user", handler.CurrentUser)
			r.Post("/updateProfile", handler.UpdateProfile)
		})
	})

	return &testAPI{
		router:   r,
		accounts: accounts,
		manager:  manager,
		mailer:   mailer,
		service:  service,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, cookie *http.Cookie) (*httptest.ResponseRecorder, httputil.Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var envelope httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return rec, envelope
}

// signUpAndVerify registers an account through the API and verifies it,
// returning the session cookie from a subsequent sign-in.
func (a *testAPI) signUpAndVerify(t *testing.T, email, password string) *http.Cookie {
	t.Helper()

	rec, _ := a.do(t, http.MethodPost, "/auth/signup", SignUpRequest{Email: email, Password: password}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	acc, err := a.accounts.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, acc.VerificationToken)

	rec, _ = a.do(t, http.MethodGet, "/auth/verify/"+*acc.VerificationToken, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/auth/signin", SignInRequest{Email: email, Password: password}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestSignUpEndpoint(t *testing.T) {
	api := newTestAPI(t, allowAllLimiter{})

	rec, envelope := api.do(t, http.MethodPost, "/auth/signup",
		SignUpRequest{Email: "a@x.com", Password: "P@ssw0rd1"}, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, envelope.Success)
	assert.Contains(t, envelope.Message, "check your email")
	assert.Nil(t, envelope.Data)

	t.Run("duplicate email", func(t *testing.T) {
		rec, envelope := api.do(t, http.MethodPost, "/auth/signup",
			SignUpRequest{Email: "a@x.com", Password: "otherpassword"}, nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.False(t, envelope.Success)
		assert.Equal(t, "email already exists", envelope.Message)
	})

	t.Run("short password", func(t *testing.T) {
		rec, envelope := api.do(t, http.MethodPost, "/auth/signup",
			SignUpRequest{Email: "b@x.com", Password: "short"}, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, envelope.Success)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestVerifyEndpoint(t *testing.T) {
	api := newTestAPI(t, allowAllLimiter{})

	rec, _ := api.do(t, http.MethodPost, "/auth/signup",
		SignUpRequest{Email: "a@x.com", Password: "P@ssw0rd1"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	acc, err := api.accounts.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	token := *acc.VerificationToken

	rec, envelope := api.do(t, http.MethodGet, "/auth/verify/"+token, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, envelope.Success)

	t.Run("replayed token", func(t *testing.T) {
		rec, envelope := api.do(t, http.MethodGet, "/auth/verify/"+token, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, envelope.Success)
	})
}

func TestActivateEndpoint(t *testing.T) {
	api := newTestAPI(t, allowAllLimiter{})

	rec, _ := api.do(t, http.MethodPost, "/auth/signup",
		SignUpRequest{Email: "a@x.com", Password: "P@ssw0rd1"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	acc, err := api.accounts.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)

	rec, envelope := api.do(t, http.MethodPost, "/auth/activate",
		ActivateRequest{Token: *acc.VerificationToken}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, envelope.Success)

	t.Run("missing token", func(t *testing.T) {
		rec, _ := api.do(t, http.MethodPost, "/auth/activate", ActivateRequest{}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSignInEndpoint(t *testing.T) {
	api := newTestAPI(t, allowAllLimiter{})

	rec, _ := api.do(t, http.MethodPost, "/auth/signup",
		SignUpRequest{Email: "a@x.com", Password: "P@ssw0rd1"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("unverified account", func(t *testing.T) {
		rec, envelope := api.do(t, http.MethodPost, "/auth/signin",
			SignInRequest{Email: "a@x.com", Password: "P@ssw0rd1"}, nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, envelope.Message, "not verified")
		assert.Empty(t, rec.Result().Cookies())
	})

	acc, err := api.accounts.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	rec, _ = api.do(t, http.MethodGet, "/auth/verify/"+*acc.VerificationToken, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("wrong password", func(t *testing.T) {
		rec, envelope := api.do(t, http.MethodPost, "/auth/signin",
			SignInRequest{Email: "a@x.com", Password: "wrongpassword"}, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid email or password", envelope.Message)
	})

	t.Run("unknown email answers the same", func(t *testing.T) {
		rec, envelope := api.do(t, http.MethodPost, "/auth/signin",
			SignInRequest{Email: "nobody@x.com", Password: "P@ssw0rd1"}, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid email or password", envelope.Message)
	})

	t.Run("success", func(t *testing.T) {
		rec, envelope := api.do(t, http.MethodPost, "/auth/signin",
			SignInRequest{Email: "a@x.com", Password: "P@ssw0rd1"}, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, envelope.Success)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "session_id", cookies[0].Name)
		assert.NotEmpty(t, cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)

		// The profile comes back, the credential material does not.
		body := rec.Body.String()
		assert.Contains(t, body, "a@x.com")
		assert.NotContains(t, body, "$argon2id$")
	})
}

func TestCurrentUserEndpoint(t *testing.T) {
	api := newTestAPI(t, allowAllLimiter{})
	cookie := api.signUpAndVerify(t, "a@x.com", "P@ssw0rd1")

	rec, envelope := api.do(t, http.MethodGet, "/auth/user", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, envelope.Success)
	assert.Contains(t, rec.Body.String(), "a@x.com")

	t.Run("anonymous", func(t *testing.T) {
		rec, envelope := api.do(t, http.MethodGet, "/auth/user", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", envelope.Message)
	})
}

func TestSignOutEndpoint(t *testing.T) {
	api := newTestAPI(t, allowAllLimiter{})
	cookie := api.signUpAndVerify(t, "a@x.com", "P@ssw0rd1")

	rec, envelope := api.do(t, http.MethodPost, "/auth/signout", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, envelope.Success)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)

	t.Run("replayed cookie", func(t *testing.T) {
		rec, _ := api.do(t, http.MethodPost, "/auth/signout", nil, cookie)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		rec, _ := api.do(t, http.MethodPost, "/auth/signout", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestForgotPasswordEndpoint(t *testing.T) {
	api := newTestAPI(t, allowAllLimiter{})
	api.signUpAndVerify(t, "a@x.com", "P@ssw0rd1")

	recKnown, envKnown := api.do(t, http.MethodPost, "/auth/forgot",
		ForgotPasswordRequest{Email: "a@x.com"}, nil)
	recUnknown, envUnknown := api.do(t, http.MethodPost, "/auth/forgot",
		ForgotPasswordRequest{Email: "nobody@x.com"}, nil)

	// Known and unknown addresses are indistinguishable to the caller.
	assert.Equal(t, http.StatusOK, recKnown.Code)
	assert.Equal(t, http.StatusOK, recUnknown.Code)
	assert.Equal(t, envKnown.Message, envUnknown.Message)

	require.Eventually(t, func() bool { return api.mailer.resetCount() == 1 }, emailSendWait, 10*time.Millisecond)
	assert.Equal(t, "a@x.com", api.mailer.lastReset().to)
}

func TestResetPasswordEndpoint(t *testing.T) {
	api := newTestAPI(t, allowAllLimiter{})
	api.signUpAndVerify(t, "a@x.com", "P@ssw0rd1")

	rec, _ := api.do(t, http.MethodPost, "/auth/forgot",
		ForgotPasswordRequest{Email: "a@x.com"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	acc, err := api.accounts.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, acc.ResetToken)

	rec, envelope := api.do(t, http.MethodPost, "/auth/reset-password",
		ResetPasswordRequest{Token: *acc.ResetToken, Password: "NewP@ssw0rd"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, envelope.Success)

	rec, _ = api.do(t, http.MethodPost, "/auth/signin",
		SignInRequest{Email: "a@x.com", Password: "NewP@ssw0rd"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("invalid token", func(t *testing.T) {
		rec, envelope := api.do(t, http.MethodPost, "/auth/reset-password",
			ResetPasswordRequest{Token: "bogus", Password: "NewP@ssw0rd"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid reset token", envelope.Message)
	})

	t.Run("expired token", func(t *testing.T) {
		token := "expired-reset-token"
		past := time.Now().Add(-time.Minute)
		acc, err := api.accounts.GetByEmail(context.Background(), "a@x.com")
		require.NoError(t, err)
		require.NoError(t, api.accounts.SetResetToken(context.Background(), acc.ID, token, past))

		rec, envelope := api.do(t, http.MethodPost, "/auth/reset-password",
			ResetPasswordRequest{Token: token, Password: "NewP@ssw0rd"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, envelope.Message, "expired")
	})
}

func TestUpdateProfileEndpoint(t *testing.T) {
	api := newTestAPI(t, allowAllLimiter{})
	cookie := api.signUpAndVerify(t, "a@x.com", "P@ssw0rd1")

	rec, envelope := api.do(t, http.MethodPost, "/auth/updateProfile",
		map[string]string{"fullname": "Ada Lovelace"}, cookie)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, envelope.Success)
	assert.Contains(t, rec.Body.String(), "Ada Lovelace")

	t.Run("anonymous", func(t *testing.T) {
		rec, _ := api.do(t, http.MethodPost, "/auth/updateProfile",
			map[string]string{"fullname": "Ada Lovelace"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

// overLimitLimiter reports every IP as over its window.
type overLimitLimiter struct{ allowAllLimiter }

func (overLimitLimiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	return true, nil
}

func TestRateLimitedSignUp(t *testing.T) {
	api := newTestAPI(t, overLimitLimiter{})

	rec, envelope := api.do(t, http.MethodPost, "/auth/signup",
		SignUpRequest{Email: "a@x.com", Password: "P@ssw0rd1"}, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, envelope.Success)
}

// cooldownLimiter reports every email as on cooldown.
type cooldownLimiter struct{ allowAllLimiter }

func (cooldownLimiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	return true, nil
}

func TestEmailCooldownForgotPassword(t *testing.T) {
	api := newTestAPI(t, cooldownLimiter{})

	rec, envelope := api.do(t, http.MethodPost, "/auth/forgot",
		ForgotPasswordRequest{Email: "a@x.com"}, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, envelope.Success)
	assert.Contains(t, envelope.Message, "wait")
}
