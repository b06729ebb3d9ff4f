package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/orgdesk/orgdesk-api/internal/database"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository handles account persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new account with an outstanding verification token.
// Email uniqueness is enforced by the database constraint, so two
// concurrent registrations for the same address cannot both succeed.
func (r *Repository) Create(ctx context.Context, email, passwordHash, verificationToken string, verificationExpiresAt time.Time) (*Account, error) {
	dbAccount := &database.Account{
		Email:                 email,
		PasswordHash:          passwordHash,
		IsVerified:            false,
		VerificationToken:     &verificationToken,
		VerificationExpiresAt: &verificationExpiresAt,
	}

	_, err := r.db.NewInsert().
		Model(dbAccount).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return mapDBAccountToModel(dbAccount), nil
}

// GetByEmail retrieves an account by email (case-sensitive, as stored).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	dbAccount := new(database.Account)
	err := r.db.NewSelect().
		Model(dbAccount).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	return mapDBAccountToModel(dbAccount), nil
}

// GetByID retrieves an account by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	dbAccount := new(database.Account)
	err := r.db.NewSelect().
		Model(dbAccount).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by id: %w", err)
	}

	return mapDBAccountToModel(dbAccount), nil
}

// GetByVerificationToken retrieves the account holding an outstanding
// verification token.
func (r *Repository) GetByVerificationToken(ctx context.Context, token string) (*Account, error) {
	dbAccount := new(database.Account)
	err := r.db.NewSelect().
		Model(dbAccount).
		Where("verification_token = ?", token).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by verification token: %w", err)
	}

	return mapDBAccountToModel(dbAccount), nil
}

// GetByResetToken retrieves the account holding an outstanding reset token.
func (r *Repository) GetByResetToken(ctx context.Context, token string) (*Account, error) {
	dbAccount := new(database.Account)
	err := r.db.NewSelect().
		Model(dbAccount).
		Where("reset_token = ?", token).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by reset token: %w", err)
	}

	return mapDBAccountToModel(dbAccount), nil
}

// MarkVerified marks the account verified and clears the verification slot.
func (r *Repository) MarkVerified(ctx context.Context, accountID uuid.UUID) error {
	result, err := r.db.NewUpdate().
		Model((*database.Account)(nil)).
		Set("is_verified = ?", true).
		Set("verification_token = NULL").
		Set("verification_expires_at = NULL").
		Set("updated_at = NOW()").
		Where("id = ?", accountID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to mark account verified: %w", err)
	}

	return requireRowsAffected(result)
}

// SetVerificationToken replaces the outstanding verification token.
// Any earlier unused token for this account stops working.
func (r *Repository) SetVerificationToken(ctx context.Context, accountID uuid.UUID, token string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.Account)(nil)).
		Set("verification_token = ?", token).
		Set("verification_expires_at = ?", expiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", accountID).
		Where("is_verified = ?", false).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set verification token: %w", err)
	}

	return requireRowsAffected(result)
}

// SetResetToken replaces the outstanding password-reset token.
func (r *Repository) SetResetToken(ctx context.Context, accountID uuid.UUID, token string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.Account)(nil)).
		Set("reset_token = ?", token).
		Set("reset_expires_at = ?", expiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", accountID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}

	return requireRowsAffected(result)
}

// UpdatePassword stores a new password hash, consumes the reset token and
// marks the account verified. Completing a reset proves control of the email.
func (r *Repository) UpdatePassword(ctx context.Context, accountID uuid.UUID, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.Account)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_token = NULL").
		Set("reset_expires_at = NULL").
		Set("is_verified = ?", true).
		Set("updated_at = NOW()").
		Where("id = ?", accountID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireRowsAffected(result)
}

// UpdateProfile applies owner-mutable fields and returns the updated account.
func (r *Repository) UpdateProfile(ctx context.Context, accountID uuid.UUID, update ProfileUpdate) (*Account, error) {
	q := r.db.NewUpdate().
		Model((*database.Account)(nil)).
		Set("updated_at = NOW()").
		Where("id = ?", accountID)

	if update.Fullname != nil {
		q = q.Set("fullname = ?", *update.Fullname)
	}
	if update.Avatar != nil {
		q = q.Set("avatar = ?", *update.Avatar)
	}
	if update.DOB != nil {
		q = q.Set("dob = ?", *update.DOB)
	}
	if update.Gender != nil {
		q = q.Set("gender = ?", *update.Gender)
	}
	if update.Contact != nil {
		q = q.Set("contact = ?", *update.Contact)
	}
	if update.Address != nil {
		q = q.Set("address = ?", *update.Address)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if err := requireRowsAffected(result); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, accountID)
}

func requireRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// mapDBAccountToModel converts database model to domain model
func mapDBAccountToModel(dba *database.Account) *Account {
	return &Account{
		ID:                    dba.ID,
		Email:                 dba.Email,
		PasswordHash:          dba.PasswordHash,
		IsVerified:            dba.IsVerified,
		VerificationToken:     dba.VerificationToken,
		VerificationExpiresAt: dba.VerificationExpiresAt,
		ResetToken:            dba.ResetToken,
		ResetExpiresAt:        dba.ResetExpiresAt,
		Fullname:              dba.Fullname,
		Avatar:                dba.Avatar,
		DOB:                   dba.DOB,
		Gender:                dba.Gender,
		Contact:               dba.Contact,
		Address:               dba.Address,
		CreatedAt:             dba.CreatedAt,
		UpdatedAt:             dba.UpdatedAt,
	}
}
