package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the persisted representation of a registered identity.
// Verification and password-reset tokens have separate slots so one
// flow cannot invalidate the other's outstanding link.
type Account struct {
	bun.BaseModel `bun:"table:accounts"`

	ID           uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	IsVerified   bool      `bun:"is_verified,notnull,default:false"`

	VerificationToken     *string    `bun:"verification_token"`
	VerificationExpiresAt *time.Time `bun:"verification_expires_at"`
	ResetToken            *string    `bun:"reset_token"`
	ResetExpiresAt        *time.Time `bun:"reset_expires_at"`

	Fullname *string `bun:"fullname"`
	Avatar   *string `bun:"avatar"`
	DOB      *string `bun:"dob"`
	Gender   *string `bun:"gender"`
	Contact  *string `bun:"contact"`
	Address  *string `bun:"address"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Session is a server-side session row. The primary key doubles as the
// bearer credential carried in the session cookie.
type Session struct {
	bun.BaseModel `bun:"table:sessions"`

	ID        string    `bun:"id,pk"`
	AccountID uuid.UUID `bun:"account_id,notnull,type:uuid"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
