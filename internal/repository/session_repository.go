package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"licensedesk/api/internal/models"
)

type SessionRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewSessionRepository(pool *pgxpool.Pool, timeout time.Duration) *SessionRepository {
	return &SessionRepository{pool: pool, timeout: timeout}
}

func (r *SessionRepository) Create(ctx context.Context, session models.Session) error {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `
		INSERT INTO sessions (token_hash, account_id, created_at, last_activity_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		session.TokenHash,
		session.AccountID,
		session.CreatedAt,
		session.LastActivityAt,
		session.ExpiresAt,
	)
	return translate(err)
}

func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash []byte) (models.Session, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT token_hash, account_id, created_at, last_activity_at, expires_at
		FROM sessions
		WHERE token_hash = $1
	`
	row := r.pool.QueryRow(ctx, query, tokenHash)

	var session models.Session
	if err := row.Scan(
		&session.TokenHash,
		&session.AccountID,
		&session.CreatedAt,
		&session.LastActivityAt,
		&session.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, translate(err)
	}
	return session, nil
}

// TouchSliding extends a live session in one statement: the WHERE clause is
// the lazy expiry check, so an expired row is never refreshed.
func (r *SessionRepository) TouchSliding(ctx context.Context, tokenHash []byte, now, expiresAt time.Time) (models.Session, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `
		UPDATE sessions
		SET last_activity_at = $2, expires_at = $3
		WHERE token_hash = $1 AND expires_at > $2
		RETURNING token_hash, account_id, created_at, last_activity_at, expires_at
	`
	row := r.pool.QueryRow(ctx, query, tokenHash, now, expiresAt)

	var session models.Session
	if err := row.Scan(
		&session.TokenHash,
		&session.AccountID,
		&session.CreatedAt,
		&session.LastActivityAt,
		&session.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, translate(err)
	}
	return session, nil
}

// Delete is idempotent: removing an absent session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash []byte) error {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	return translate(err)
}

func (r *SessionRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE account_id = $1`, accountID)
	return translate(err)
}

func (r *SessionRepository) DeleteByAccountExcept(ctx context.Context, accountID string, keepTokenHash []byte) error {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `DELETE FROM sessions WHERE account_id = $1 AND token_hash <> $2`
	_, err := r.pool.Exec(ctx, query, accountID, keepTokenHash)
	return translate(err)
}

// DeleteExpired reclaims storage; correctness never depends on it because
// expiry is checked on every touch.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	cmd, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, translate(err)
	}
	return cmd.RowsAffected(), nil
}
