package account

import (
	"time"

	"github.com/google/uuid"
)

// Account is the domain model for a registered identity.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON
	IsVerified   bool      `json:"is_verified"`

	VerificationToken     *string    `json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	ResetToken            *string    `json:"-"`
	ResetExpiresAt        *time.Time `json:"-"`

	Fullname *string `json:"fullname,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	DOB      *string `json:"dob,omitempty"`
	Gender   *string `json:"gender,omitempty"`
	Contact  *string `json:"contact,omitempty"`
	Address  *string `json:"address,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is the public projection of an account, safe to return to clients.
type Profile struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"is_verified"`
	Fullname   *string   `json:"fullname"`
	Avatar     *string   `json:"avatar"`
	DOB        *string   `json:"dob"`
	Gender     *string   `json:"gender"`
	Contact    *string   `json:"contact"`
	Address    *string   `json:"address"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Profile returns the public view of the account.
func (a *Account) Profile() Profile {
	return Profile{
		ID:         a.ID,
		Email:      a.Email,
		IsVerified: a.IsVerified,
		Fullname:   a.Fullname,
		Avatar:     a.Avatar,
		DOB:        a.DOB,
		Gender:     a.Gender,
		Contact:    a.Contact,
		Address:    a.Address,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// ProfileUpdate carries the owner-mutable fields. Nil means "leave unchanged".
type ProfileUpdate struct {
	Fullname *string `json:"fullname"`
	Avatar   *string `json:"avatar"`
	DOB      *string `json:"dob"`
	Gender   *string `json:"gender"`
	Contact  *string `json:"contact"`
	Address  *string `json:"address"`
}

// Empty reports whether the update would change nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Fullname == nil && u.Avatar == nil && u.DOB == nil &&
		u.Gender == nil && u.Contact == nil && u.Address == nil
}
