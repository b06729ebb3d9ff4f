package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/orgdesk/orgdesk-api/internal/account"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is a server-side authentication session. The ID is the bearer
// credential carried in the cookie. Fresh is set when a validation extended
// the expiry, telling the caller to re-issue the cookie; it is never persisted.
type Session struct {
	ID        string
	AccountID uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
	Fresh     bool
}

// SessionRepository defines the interface for session storage
type SessionRepository interface {
	Insert(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteByAccount(ctx context.Context, accountID uuid.UUID) error
}

// AccountGetter is the slice of the account repository the session manager needs.
type AccountGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

// SessionManagerConfig configures session lifetime and cookie attributes.
type SessionManagerConfig struct {
	Duration     time.Duration
	CookieName   string
	CookieDomain string
	Secure       bool // enabled in production-like deployments only
}

// SessionManager creates, validates, renews and invalidates sessions and
// owns the cookie representation.
type SessionManager struct {
	sessions SessionRepository
	accounts AccountGetter
	cfg      SessionManagerConfig
}

func NewSessionManager(sessions SessionRepository, accounts AccountGetter, cfg SessionManagerConfig) *SessionManager {
	if cfg.CookieName == "" {
		cfg.CookieName = "session_id"
	}
	return &SessionManager{
		sessions: sessions,
		accounts: accounts,
		cfg:      cfg,
	}
}

// CookieName returns the name of the session cookie.
func (m *SessionManager) CookieName() string {
	return m.cfg.CookieName
}

// Create mints and persists a new session for the account.
func (m *SessionManager) Create(ctx context.Context, accountID uuid.UUID) (*Session, error) {
	id, expiresAt, err := IssueToken(m.cfg.Duration)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	session := &Session{
		ID:        id,
		AccountID: accountID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	if err := m.sessions.Insert(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return session, nil
}

// Validate resolves a session id to its session and owning account.
// Absent and expired sessions both come back as (nil, nil, nil); expired rows
// are deleted lazily on the way. A validation that lands inside the renewal
// window (the second half of the lifetime) pushes the expiry forward and
// marks the session Fresh so the caller re-issues the cookie.
func (m *SessionManager) Validate(ctx context.Context, id string) (*Session, *account.Account, error) {
	if id == "" {
		return nil, nil, nil
	}

	session, err := m.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	now := time.Now()
	if !now.Before(session.ExpiresAt) {
		if err := m.sessions.Delete(ctx, id); err != nil {
			return nil, nil, fmt.Errorf("failed to delete expired session: %w", err)
		}
		return nil, nil, nil
	}

	owner, err := m.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			// Orphaned session, the account is gone.
			if err := m.sessions.Delete(ctx, id); err != nil {
				return nil, nil, fmt.Errorf("failed to delete orphaned session: %w", err)
			}
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to load session account: %w", err)
	}

	if session.ExpiresAt.Sub(now) < m.cfg.Duration/2 {
		session.ExpiresAt = now.Add(m.cfg.Duration)
		session.Fresh = true
		if err := m.sessions.UpdateExpiry(ctx, id, session.ExpiresAt); err != nil {
			return nil, nil, fmt.Errorf("failed to renew session: %w", err)
		}
	}

	return session, owner, nil
}

// Invalidate deletes a session. An unknown id is a no-op, not an error.
func (m *SessionManager) Invalidate(ctx context.Context, id string) error {
	if err := m.sessions.Delete(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

// InvalidateAll deletes every session belonging to the account.
func (m *SessionManager) InvalidateAll(ctx context.Context, accountID uuid.UUID) error {
	if err := m.sessions.DeleteByAccount(ctx, accountID); err != nil {
		return fmt.Errorf("failed to invalidate account sessions: %w", err)
	}
	return nil
}

// Cookie serializes a session into its Set-Cookie representation.
func (m *SessionManager) Cookie(session *Session) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   m.cfg.CookieDomain,
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// BlankCookie is an already-expired cookie that forces the client to drop
// its stored session id.
func (m *SessionManager) BlankCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.cfg.CookieDomain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
