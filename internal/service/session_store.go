package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"licensedesk/api/internal/models"
	"licensedesk/api/internal/repository"
	"licensedesk/api/internal/security"
)

type SessionRepo interface {
	Create(ctx context.Context, session models.Session) error
	GetByTokenHash(ctx context.Context, tokenHash []byte) (models.Session, error)
	TouchSliding(ctx context.Context, tokenHash []byte, now, expiresAt time.Time) (models.Session, error)
	Delete(ctx context.Context, tokenHash []byte) error
	DeleteByAccount(ctx context.Context, accountID string) error
	DeleteByAccountExcept(ctx context.Context, accountID string, keepTokenHash []byte) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionStore owns the session lifecycle: issuance, sliding expiry on every
// touch, and invalidation. Expiry is evaluated lazily against the stored
// deadline, never by a client-side timer.
type SessionStore struct {
	repo SessionRepo
	ttl  time.Duration
	now  func() time.Time
	log  zerolog.Logger
}

func NewSessionStore(repo SessionRepo, ttl time.Duration, log zerolog.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
		log:  log,
	}
}

// Create issues an opaque token for the account and persists only its digest.
func (s *SessionStore) Create(ctx context.Context, accountID string) (string, models.Session, error) {
	token, tokenHash, err := security.GenerateSessionToken(32)
	if err != nil {
		return "", models.Session{}, err
	}

	now := s.now().UTC()
	session := models.Session{
		TokenHash:      tokenHash,
		AccountID:      accountID,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.ttl),
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return "", models.Session{}, err
	}
	return token, session, nil
}

// Touch validates the token and slides the expiry window. An expired session
// is removed on the spot and reported as not found.
func (s *SessionStore) Touch(ctx context.Context, token string) (models.Session, error) {
	tokenHash := security.HashSessionToken(token)
	now := s.now().UTC()

	session, err := s.repo.TouchSliding(ctx, tokenHash, now, now.Add(s.ttl))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, repository.ErrSessionNotFound) {
		return models.Session{}, err
	}

	// The row may still exist but be past its deadline; reclaim it now so
	// the reaper is purely optional.
	if stale, getErr := s.repo.GetByTokenHash(ctx, tokenHash); getErr == nil && !stale.ExpiresAt.After(now) {
		if delErr := s.repo.Delete(ctx, tokenHash); delErr != nil {
			s.log.Warn().Err(delErr).Msg("delete expired session failed")
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

// Invalidate removes the session; unknown tokens are not an error.
func (s *SessionStore) Invalidate(ctx context.Context, token string) error {
	return s.repo.Delete(ctx, security.HashSessionToken(token))
}

// InvalidateAccount revokes every session belonging to the account.
func (s *SessionStore) InvalidateAccount(ctx context.Context, accountID string) error {
	return s.repo.DeleteByAccount(ctx, accountID)
}

// InvalidateAccountExcept revokes all of the account's sessions except the
// one identified by token, so a password change keeps the caller signed in.
func (s *SessionStore) InvalidateAccountExcept(ctx context.Context, accountID string, token string) error {
	return s.repo.DeleteByAccountExcept(ctx, accountID, security.HashSessionToken(token))
}

// PurgeExpired deletes rows past their deadline. Storage hygiene only.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now().UTC())
}
