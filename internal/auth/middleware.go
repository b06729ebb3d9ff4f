package auth

import (
	"context"
	"net/http"

	"github.com/orgdesk/orgdesk-api/internal/account"
	"github.com/orgdesk/orgdesk-api/internal/httputil"
	"github.com/orgdesk/orgdesk-api/internal/logging"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	accountContextKey ContextKey = "account"
	sessionContextKey ContextKey = "session"
)

// Middleware resolves the caller's session on every request
type Middleware struct {
	sessions *SessionManager
}

func NewMiddleware(sessions *SessionManager) *Middleware {
	return &Middleware{sessions: sessions}
}

// SessionContext resolves the incoming session cookie and attaches the
// session and its account to the request context. No cookie means an
// anonymous request, not an error; most routes are public. A cookie that no
// longer resolves to a live session is actively cleared with a blank
// Set-Cookie, and a freshly renewed session gets its cookie re-issued.
func (m *Middleware) SessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.sessions.CookieName())
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		session, acc, err := m.sessions.Validate(r.Context(), cookie.Value)
		if err != nil {
			logger := logging.GetLoggerFromContext(r.Context())
			logger.Error("session validation failed", "error", err.Error())
			httputil.RespondError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		if session == nil {
			http.SetCookie(w, m.sessions.BlankCookie())
			next.ServeHTTP(w, r)
			return
		}

		if session.Fresh {
			http.SetCookie(w, m.sessions.Cookie(session))
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		ctx = context.WithValue(ctx, accountContextKey, acc)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests that did not resolve to an account. It is a
// separate guard from SessionContext because most routes are public.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AccountFromContext(r.Context()); !ok {
			httputil.RespondError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AccountFromContext extracts the authenticated account from the request context
func AccountFromContext(ctx context.Context) (*account.Account, bool) {
	acc, ok := ctx.Value(accountContextKey).(*account.Account)
	return acc, ok && acc != nil
}

// SessionFromContext extracts the current session from the request context
func SessionFromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	return session, ok && session != nil
}
