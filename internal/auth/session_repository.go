package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/orgdesk/orgdesk-api/internal/database"
)

// BunSessionRepository persists sessions in Postgres.
type BunSessionRepository struct {
	db *bun.DB
}

var _ SessionRepository = (*BunSessionRepository)(nil)

func NewBunSessionRepository(db *bun.DB) *BunSessionRepository {
	return &BunSessionRepository{db: db}
}

// Insert stores a new session row.
func (r *BunSessionRepository) Insert(ctx context.Context, session *Session) error {
	dbSession := &database.Session{
		ID:        session.ID,
		AccountID: session.AccountID,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	}

	_, err := r.db.NewInsert().
		Model(dbSession).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Get retrieves a session by id.
func (r *BunSessionRepository) Get(ctx context.Context, id string) (*Session, error) {
	dbSession := new(database.Session)
	err := r.db.NewSelect().
		Model(dbSession).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &Session{
		ID:        dbSession.ID,
		AccountID: dbSession.AccountID,
		ExpiresAt: dbSession.ExpiresAt,
		CreatedAt: dbSession.CreatedAt,
	}, nil
}

// UpdateExpiry pushes a session's expiry forward.
func (r *BunSessionRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.Session)(nil)).
		Set("expires_at = ?", expiresAt).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update session expiry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// Delete removes a session row.
func (r *BunSessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.NewDelete().
		Model((*database.Session)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// DeleteByAccount removes every session belonging to an account.
func (r *BunSessionRepository) DeleteByAccount(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*database.Session)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete account sessions: %w", err)
	}

	return nil
}

// DeleteExpired purges sessions past their expiry. Validation already treats
// expired rows as absent, so this only reclaims storage and can run from a
// periodic job.
func (r *BunSessionRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.db.NewDelete().
		Model((*database.Session)(nil)).
		Where("expires_at < NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return nil
}
