package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orgdesk/orgdesk-api/internal/account"
)

// -------- test fakes --------

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*account.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[uuid.UUID]*account.Account)}
}

func (f *fakeAccountRepo) add(acc *account.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *acc
	f.accounts[acc.ID] = &cp
}

func (f *fakeAccountRepo) Create(ctx context.Context, email, passwordHash, verificationToken string, verificationExpiresAt time.Time) (*account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, acc := range f.accounts {
		if acc.Email == email {
			return nil, account.ErrDuplicateEmail
		}
	}

	now := time.Now()
	acc := &account.Account{
		ID:                    uuid.New(),
		Email:                 email,
		PasswordHash:          passwordHash,
		VerificationToken:     &verificationToken,
		VerificationExpiresAt: &verificationExpiresAt,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	f.accounts[acc.ID] = acc

	cp := *acc
	return &cp, nil
}

func (f *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, acc := range f.accounts {
		if acc.Email == email {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, account.ErrNotFound
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	acc, ok := f.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeAccountRepo) GetByVerificationToken(ctx context.Context, token string) (*account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, acc := range f.accounts {
		if acc.VerificationToken != nil && *acc.VerificationToken == token {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, account.ErrNotFound
}

func (f *fakeAccountRepo) GetByResetToken(ctx context.Context, token string) (*account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, acc := range f.accounts {
		if acc.ResetToken != nil && *acc.ResetToken == token {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, account.ErrNotFound
}

func (f *fakeAccountRepo) MarkVerified(ctx context.Context, accountID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	acc, ok := f.accounts[accountID]
	if !ok {
		return account.ErrNotFound
	}
	acc.IsVerified = true
	acc.VerificationToken = nil
	acc.VerificationExpiresAt = nil
	acc.UpdatedAt = time.Now()
	return nil
}

func (f *fakeAccountRepo) SetVerificationToken(ctx context.Context, accountID uuid.UUID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	acc, ok := f.accounts[accountID]
	if !ok || acc.IsVerified {
		return account.ErrNotFound
	}
	acc.VerificationToken = &token
	acc.VerificationExpiresAt = &expiresAt
	acc.UpdatedAt = time.Now()
	return nil
}

func (f *fakeAccountRepo) SetResetToken(ctx context.Context, accountID uuid.UUID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	acc, ok := f.accounts[accountID]
	if !ok {
		return account.ErrNotFound
	}
	acc.ResetToken = &token
	acc.ResetExpiresAt = &expiresAt
	acc.UpdatedAt = time.Now()
	return nil
}

func (f *fakeAccountRepo) UpdatePassword(ctx context.Context, accountID uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	acc, ok := f.accounts[accountID]
	if !ok {
		return account.ErrNotFound
	}
	acc.PasswordHash = passwordHash
	acc.ResetToken = nil
	acc.ResetExpiresAt = nil
	acc.IsVerified = true
	acc.UpdatedAt = time.Now()
	return nil
}

func (f *fakeAccountRepo) UpdateProfile(ctx context.Context, accountID uuid.UUID, update account.ProfileUpdate) (*account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	acc, ok := f.accounts[accountID]
	if !ok {
		return nil, account.ErrNotFound
	}
	if update.Fullname != nil {
		acc.Fullname = update.Fullname
	}
	if update.Avatar != nil {
		acc.Avatar = update.Avatar
	}
	if update.DOB != nil {
		acc.DOB = update.DOB
	}
	if update.Gender != nil {
		acc.Gender = update.Gender
	}
	if update.Contact != nil {
		acc.Contact = update.Contact
	}
	if update.Address != nil {
		acc.Address = update.Address
	}
	acc.UpdatedAt = time.Now()

	cp := *acc
	return &cp, nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]Session)}
}

func (f *fakeSessionRepo) Insert(ctx context.Context, session *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ID] = *session
	return nil
}

func (f *fakeSessionRepo) Get(ctx context.Context, id string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := session
	cp.Fresh = false
	return &cp, nil
}

func (f *fakeSessionRepo) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.ExpiresAt = expiresAt
	f.sessions[id] = session
	return nil
}

func (f *fakeSessionRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionRepo) DeleteByAccount(ctx context.Context, accountID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, session := range f.sessions {
		if session.AccountID == accountID {
			delete(f.sessions, id)
		}
	}
	return nil
}

type sentEmail struct {
	to    string
	token string
}

type fakeEmailService struct {
	mu           sync.Mutex
	verification []sentEmail
	reset        []sentEmail
}

func (f *fakeEmailService) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verification = append(f.verification, sentEmail{to: toEmail, token: token})
	return nil
}

func (f *fakeEmailService) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset = append(f.reset, sentEmail{to: toEmail, token: token})
	return nil
}

func (f *fakeEmailService) verificationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.verification)
}

func (f *fakeEmailService) resetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reset)
}

func (f *fakeEmailService) lastVerification() sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verification[len(f.verification)-1]
}

func (f *fakeEmailService) lastReset() sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reset[len(f.reset)-1]
}

type allowAllLimiter struct{}

func (allowAllLimiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	return false, nil
}

func (allowAllLimiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	return nil
}

func (allowAllLimiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	return false, nil
}

func (allowAllLimiter) SetEmailCooldown(ctx context.Context, email string) error {
	return nil
}
