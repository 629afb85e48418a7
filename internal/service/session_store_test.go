package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"licensedesk/api/internal/models"
	"licensedesk/api/internal/repository"
	"licensedesk/api/internal/security"
)

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]models.Session)}
}

func (r *memSessionRepo) Create(ctx context.Context, session models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[string(session.TokenHash)] = session
	return nil
}

func (r *memSessionRepo) GetByTokenHash(ctx context.Context, tokenHash []byte) (models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[string(tokenHash)]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return s, nil
}

func (r *memSessionRepo) TouchSliding(ctx context.Context, tokenHash []byte, now, expiresAt time.Time) (models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[string(tokenHash)]
	if !ok || !s.ExpiresAt.After(now) {
		return models.Session{}, repository.ErrSessionNotFound
	}
	s.LastActivityAt = now
	s.ExpiresAt = expiresAt
	r.sessions[string(tokenHash)] = s
	return s, nil
}

func (r *memSessionRepo) Delete(ctx context.Context, tokenHash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, string(tokenHash))
	return nil
}

func (r *memSessionRepo) DeleteByAccount(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, s := range r.sessions {
		if s.AccountID == accountID {
			delete(r.sessions, key)
		}
	}
	return nil
}

func (r *memSessionRepo) DeleteByAccountExcept(ctx context.Context, accountID string, keepTokenHash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, s := range r.sessions {
		if s.AccountID == accountID && key != string(keepTokenHash) {
			delete(r.sessions, key)
		}
	}
	return nil
}

func (r *memSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, s := range r.sessions {
		if !s.ExpiresAt.After(now) {
			delete(r.sessions, key)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func newTestSessionStore(repo *memSessionRepo, clock *time.Time) *SessionStore {
	store := NewSessionStore(repo, 30*time.Minute, zerolog.Nop())
	store.now = func() time.Time { return *clock }
	return store
}

func TestSessionStoreCreateAndTouch(t *testing.T) {
	repo := newMemSessionRepo()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newTestSessionStore(repo, &clock)

	token, session, err := store.Create(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if token == "" {
		t.Fatal("Create returned empty token")
	}
	if got, want := session.ExpiresAt, clock.Add(30*time.Minute); !got.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", got, want)
	}

	clock = clock.Add(10 * time.Minute)
	touched, err := store.Touch(context.Background(), token)
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if got, want := touched.ExpiresAt, clock.Add(30*time.Minute); !got.Equal(want) {
		t.Fatalf("sliding ExpiresAt = %v, want %v", got, want)
	}
	if touched.AccountID != "acct-1" {
		t.Fatalf("AccountID = %q, want acct-1", touched.AccountID)
	}
}

func TestSessionStoreSlidingWindowExtends(t *testing.T) {
	repo := newMemSessionRepo()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newTestSessionStore(repo, &clock)

	token, _, err := store.Create(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Touch every 20 minutes for two hours; each one slides the deadline.
	for i := 0; i < 6; i++ {
		clock = clock.Add(20 * time.Minute)
		if _, err := store.Touch(context.Background(), token); err != nil {
			t.Fatalf("Touch after %d intervals: %v", i+1, err)
		}
	}
}

func TestSessionStoreExpiredSessionRejectedAndReclaimed(t *testing.T) {
	repo := newMemSessionRepo()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newTestSessionStore(repo, &clock)

	token, _, err := store.Create(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	clock = clock.Add(31 * time.Minute)
	if _, err := store.Touch(context.Background(), token); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("Touch expired = %v, want ErrSessionNotFound", err)
	}
	if repo.count() != 0 {
		t.Fatalf("expired row still present, count = %d", repo.count())
	}
}

func TestSessionStoreExpiryIsExactBoundary(t *testing.T) {
	repo := newMemSessionRepo()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newTestSessionStore(repo, &clock)

	token, _, err := store.Create(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// At exactly the deadline the session is no longer valid.
	clock = clock.Add(30 * time.Minute)
	if _, err := store.Touch(context.Background(), token); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("Touch at deadline = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStoreInvalidateIsIdempotent(t *testing.T) {
	repo := newMemSessionRepo()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newTestSessionStore(repo, &clock)

	token, _, err := store.Create(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.Invalidate(context.Background(), token); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := store.Invalidate(context.Background(), token); err != nil {
		t.Fatalf("second Invalidate: %v", err)
	}
	if _, err := store.Touch(context.Background(), token); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("Touch after invalidate = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStoreInvalidateAccountExceptKeepsCaller(t *testing.T) {
	repo := newMemSessionRepo()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newTestSessionStore(repo, &clock)

	keep, _, err := store.Create(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	drop, _, err := store.Create(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	other, _, err := store.Create(context.Background(), "acct-2")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.InvalidateAccountExcept(context.Background(), "acct-1", keep); err != nil {
		t.Fatalf("InvalidateAccountExcept: %v", err)
	}

	if _, err := store.Touch(context.Background(), keep); err != nil {
		t.Fatalf("caller session gone: %v", err)
	}
	if _, err := store.Touch(context.Background(), drop); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("sibling session survived: %v", err)
	}
	if _, err := store.Touch(context.Background(), other); err != nil {
		t.Fatalf("unrelated account session gone: %v", err)
	}
}

func TestSessionStorePurgeExpired(t *testing.T) {
	repo := newMemSessionRepo()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newTestSessionStore(repo, &clock)

	if _, _, err := store.Create(context.Background(), "acct-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock = clock.Add(20 * time.Minute)
	fresh, _, err := store.Create(context.Background(), "acct-2")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	clock = clock.Add(15 * time.Minute) // first is past 30m, second is not
	purged, err := store.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
	if _, err := store.Touch(context.Background(), fresh); err != nil {
		t.Fatalf("fresh session purged: %v", err)
	}
}

func TestSessionTokenIsOpaqueAndHashed(t *testing.T) {
	repo := newMemSessionRepo()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newTestSessionStore(repo, &clock)

	token, session, err := store.Create(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Only the digest is persisted; the raw token must not appear in the row.
	if string(session.TokenHash) == token {
		t.Fatal("raw token stored instead of digest")
	}
	if got := security.HashSessionToken(token); string(got) != string(session.TokenHash) {
		t.Fatal("stored digest does not match token digest")
	}
}
