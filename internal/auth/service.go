package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/orgdesk/orgdesk-api/internal/account"
	"github.com/orgdesk/orgdesk-api/internal/logging"
)

// Domain outcomes. These are expected results carried back to the handler
// boundary, not faults.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotVerified = errors.New("account not verified, please check your inbox")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
)

// EmailService defines the interface for outbound email
type EmailService interface {
	SendVerificationEmail(ctx context.Context, toEmail, token string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
}

// AccountRepository defines the account persistence the service depends on
type AccountRepository interface {
	Create(ctx context.Context, email, passwordHash, verificationToken string, verificationExpiresAt time.Time) (*account.Account, error)
	GetByEmail(ctx context.Context, email string) (*account.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*account.Account, error)
	GetByResetToken(ctx context.Context, token string) (*account.Account, error)
	MarkVerified(ctx context.Context, accountID uuid.UUID) error
	SetVerificationToken(ctx context.Context, accountID uuid.UUID, token string, expiresAt time.Time) error
	SetResetToken(ctx context.Context, accountID uuid.UUID, token string, expiresAt time.Time) error
	UpdatePassword(ctx context.Context, accountID uuid.UUID, passwordHash string) error
	UpdateProfile(ctx context.Context, accountID uuid.UUID, update account.ProfileUpdate) (*account.Account, error)
}

// Service handles the account lifecycle: signup, verification, signin,
// password recovery, signout and profile updates.
type Service struct {
	accounts     AccountRepository
	sessions     *SessionManager
	emailService EmailService
	logger       *logging.Logger
}

func NewService(accounts AccountRepository, sessions *SessionManager, emailService EmailService, logger *logging.Logger) *Service {
	return &Service{
		accounts:     accounts,
		sessions:     sessions,
		emailService: emailService,
		logger:       logger,
	}
}

// Register creates a new unverified account and requests a verification email.
// A duplicate email is an expected outcome, surfaced as account.ErrDuplicateEmail.
func (s *Service) Register(ctx context.Context, email, password string) (*account.Account, error) {
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(email) > 254 {
		return nil, ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmailFormat
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if len(password) < 8 {
		return nil, ErrPasswordTooShort
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken, expiresAt, err := IssueToken(VerificationTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	newAccount, err := s.accounts.Create(ctx, email, passwordHash, verificationToken, expiresAt)
	if err != nil {
		if errors.Is(err, account.ErrDuplicateEmail) {
			return nil, account.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	// Delivery must not block or fail the registration response. A fresh
	// context keeps the send alive after the request finishes.
	go func() {
		emailCtx := context.Background()
		if err := s.emailService.SendVerificationEmail(emailCtx, email, verificationToken); err != nil {
			s.logger.Warn("failed to send verification email", "email", email, "error", err)
		}
	}()

	return newAccount, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
// A consumed token is cleared, so presenting it again yields ErrInvalidToken.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	acc, err := s.accounts.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to find account by verification token: %w", err)
	}

	if TokenExpired(acc.VerificationExpiresAt) {
		return ErrTokenExpired
	}

	if err := s.accounts.MarkVerified(ctx, acc.ID); err != nil {
		return fmt.Errorf("failed to mark account verified: %w", err)
	}

	return nil
}

// SignIn checks credentials and opens a session. A missing account and a
// wrong password are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (*account.Account, *Session, error) {
	if email == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to get account: %w", err)
	}

	if !VerifyPassword(acc.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	if !acc.IsVerified && acc.VerificationToken != nil {
		return nil, nil, ErrAccountNotVerified
	}

	session, err := s.sessions.Create(ctx, acc.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	return acc, session, nil
}

// SignOut invalidates the current session. No session is a no-op.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Invalidate(ctx, sessionID)
}

// ForgotPassword issues a reset token and requests a reset email.
// Always returns nil to prevent email enumeration attacks.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil
		}
		s.logger.Warn("failed to get account for password reset", "error", err)
		return nil
	}

	token, expiresAt, err := IssueToken(ResetTokenTTL)
	if err != nil {
		s.logger.Warn("failed to generate password reset token", "error", err)
		return nil
	}

	// Overwrites any outstanding reset token; earlier links stop working.
	if err := s.accounts.SetResetToken(ctx, acc.ID, token, expiresAt); err != nil {
		s.logger.Warn("failed to store password reset token", "error", err)
		return nil
	}

	go func() {
		emailCtx := context.Background()
		if err := s.emailService.SendPasswordResetEmail(emailCtx, email, token); err != nil {
			s.logger.Warn("failed to send password reset email", "email", email, "error", err)
		}
	}()

	return nil
}

// ResetPassword consumes a reset token and stores a new credential. The
// account is marked verified, since completing a reset proves control of the
// email address. Other live sessions for the account are left untouched.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidToken
	}
	if newPassword == "" {
		return ErrPasswordRequired
	}
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}

	acc, err := s.accounts.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to find account by reset token: %w", err)
	}

	if TokenExpired(acc.ResetExpiresAt) {
		return ErrTokenExpired
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, acc.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// ResendVerification reissues the verification token for an unverified
// account. Always returns nil to prevent email enumeration attacks.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil
		}
		s.logger.Warn("failed to get account for resend verification", "error", err)
		return nil
	}

	if acc.IsVerified {
		return nil
	}

	token, expiresAt, err := IssueToken(VerificationTokenTTL)
	if err != nil {
		s.logger.Warn("failed to generate verification token", "error", err)
		return nil
	}

	if err := s.accounts.SetVerificationToken(ctx, acc.ID, token, expiresAt); err != nil {
		s.logger.Warn("failed to update verification token", "error", err)
		return nil
	}

	go func() {
		emailCtx := context.Background()
		if err := s.emailService.SendVerificationEmail(emailCtx, email, token); err != nil {
			s.logger.Warn("failed to resend verification email", "email", email, "error", err)
		}
	}()

	return nil
}

// UpdateProfile applies owner-mutable profile fields and returns the
// updated account.
func (s *Service) UpdateProfile(ctx context.Context, accountID uuid.UUID, update account.ProfileUpdate) (*account.Account, error) {
	if update.Empty() {
		return s.accounts.GetByID(ctx, accountID)
	}

	updated, err := s.accounts.UpdateProfile(ctx, accountID, update)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return updated, nil
}
