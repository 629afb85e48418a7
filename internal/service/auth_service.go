package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"licensedesk/api/internal/authz"
	"licensedesk/api/internal/config"
	"licensedesk/api/internal/ids"
	"licensedesk/api/internal/models"
	"licensedesk/api/internal/repository"
	"licensedesk/api/internal/security"
)

const (
	loginFailWindow = 15 * time.Minute
	loginFailLimit  = 10
)

// decoyHash is verified against when a username does not exist, so the
// response pays the same argon2 cost on both paths.
var decoyHash []byte

func init() {
	var err error
	decoyHash, err = security.HashPassword(ids.New())
	if err != nil {
		panic(fmt.Sprintf("generate decoy hash: %v", err))
	}
}

type AccountRepo interface {
	GetByID(ctx context.Context, id string) (models.Account, error)
	GetByUsername(ctx context.Context, username string) (models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	Create(ctx context.Context, account models.Account, entry models.AuditLog) error
	Delete(ctx context.Context, id string, entry models.AuditLog) error
	UpdatePassword(ctx context.Context, id string, hash []byte, entry *models.AuditLog) error
	TransferOwnership(ctx context.Context, priorOwnerID, newOwnerID string, entry models.AuditLog) error
}

type AuthService struct {
	accounts AccountRepo
	sessions *SessionStore
	limiter  *redis.Client
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewAuthService(
	accounts AccountRepo,
	sessions *SessionStore,
	limiter *redis.Client,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		accounts: accounts,
		sessions: sessions,
		limiter:  limiter,
		cfg:      cfg,
		log:      log,
	}
}

type LoginResult struct {
	Account models.Account
	Token   string
}

func (s *AuthService) Login(ctx context.Context, username, password, clientIP string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: username and password required", ErrValidation)
	}

	if s.throttled(ctx, username, clientIP) {
		return LoginResult{}, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			_, _ = security.VerifyPassword(password, decoyHash)
			s.recordFailure(ctx, username, clientIP)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	ok, err := security.VerifyPassword(password, account.PasswordHash)
	if err != nil || !ok {
		s.recordFailure(ctx, username, clientIP)
		return LoginResult{}, ErrInvalidCredentials
	}

	token, _, err := s.sessions.Create(ctx, account.ID)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Account: account, Token: token}, nil
}

// Logout is idempotent; invalidating an already-invalid token is fine.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Invalidate(ctx, token)
}

// ChangePassword re-hashes the caller's credential and revokes every other
// session of the account; the caller stays signed in.
func (s *AuthService) ChangePassword(ctx context.Context, actor models.Account, token, current, newPassword string) error {
	if !authz.Permits(actor.Role, authz.ActionChangeOwnPassword) {
		return ErrForbidden
	}

	ok, err := security.VerifyPassword(current, actor.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}
	if err := s.checkPasswordPolicy(newPassword, actor.Username); err != nil {
		return err
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	entry := auditEntry(models.AuditChangePassword, actor.Username, actor.Username, "")
	if err := s.accounts.UpdatePassword(ctx, actor.ID, hash, &entry); err != nil {
		return err
	}

	if err := s.sessions.InvalidateAccountExcept(ctx, actor.ID, token); err != nil {
		s.log.Warn().Err(err).Str("account_id", actor.ID).Msg("revoke sibling sessions failed")
	}
	return nil
}

// ResetPassword sets a new credential for another account. Owners may reset
// anyone; admins only viewers. All of the target's sessions are revoked.
// The role check runs before any lookup, and an admin gets the same answer
// for an unknown username as for a privileged one, so the endpoint does not
// reveal which usernames exist.
func (s *AuthService) ResetPassword(ctx context.Context, actor models.Account, targetUsername, newPassword string) error {
	switch actor.Role {
	case models.RoleOwner, models.RoleAdmin:
	default:
		return ErrForbidden
	}

	target, err := s.accounts.GetByUsername(ctx, strings.TrimSpace(targetUsername))
	if err != nil {
		if actor.Role != models.RoleOwner && errors.Is(err, repository.ErrAccountNotFound) {
			return ErrForbidden
		}
		return err
	}
	if actor.Role == models.RoleAdmin && target.Role != models.RoleViewer {
		return ErrForbidden
	}

	if err := s.checkPasswordPolicy(newPassword, target.Username); err != nil {
		return err
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	entry := auditEntry(models.AuditResetPassword, actor.Username, target.Username, "")
	if err := s.accounts.UpdatePassword(ctx, target.ID, hash, &entry); err != nil {
		return err
	}

	if err := s.sessions.InvalidateAccount(ctx, target.ID); err != nil {
		s.log.Warn().Err(err).Str("account_id", target.ID).Msg("revoke target sessions failed")
	}
	return nil
}

func (s *AuthService) ListAccounts(ctx context.Context, actor models.Account) ([]models.Account, error) {
	if !authz.Permits(actor.Role, authz.ActionViewAccounts) {
		return nil, ErrForbidden
	}
	return s.accounts.List(ctx)
}

// CreateAccount adds an admin or viewer account. The owner role is never
// assignable directly; it moves only through TransferOwnership.
func (s *AuthService) CreateAccount(ctx context.Context, actor models.Account, username, password string, role models.Role) (models.Account, error) {
	if !authz.Permits(actor.Role, authz.ActionManageAccounts) {
		return models.Account{}, ErrForbidden
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return models.Account{}, fmt.Errorf("%w: username required", ErrValidation)
	}
	if role == models.RoleOwner || !role.Valid() {
		return models.Account{}, ErrRoleInvalid
	}
	if err := s.checkPasswordPolicy(password, username); err != nil {
		return models.Account{}, err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return models.Account{}, err
	}

	account := models.Account{
		ID:           ids.New(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}

	entry := auditEntry(models.AuditCreateAccount, actor.Username, username, string(role))
	if err := s.accounts.Create(ctx, account, entry); err != nil {
		return models.Account{}, err
	}
	return account, nil
}

func (s *AuthService) DeleteAccount(ctx context.Context, actor models.Account, accountID string) error {
	if !authz.Permits(actor.Role, authz.ActionManageAccounts) {
		return ErrForbidden
	}

	target, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if target.Role == models.RoleOwner {
		return ErrCannotDeleteOwner
	}

	entry := auditEntry(models.AuditDeleteAccount, actor.Username, target.Username, string(target.Role))
	return s.accounts.Delete(ctx, target.ID, entry)
}

// TransferOwnership atomically demotes the current owner and promotes the
// named admin, then invalidates the caller's session server-side: the
// privilege of that session changed, so it must not outlive the transfer.
func (s *AuthService) TransferOwnership(ctx context.Context, actor models.Account, token, newOwnerUsername string) error {
	if !authz.Permits(actor.Role, authz.ActionTransferOwnership) {
		return ErrForbidden
	}

	target, err := s.accounts.GetByUsername(ctx, strings.TrimSpace(newOwnerUsername))
	if err != nil {
		return err
	}
	if target.Role != models.RoleAdmin {
		return ErrTargetNotAdmin
	}

	entry := auditEntry(models.AuditTransferOwnership, actor.Username, target.Username, "")
	if err := s.accounts.TransferOwnership(ctx, actor.ID, target.ID, entry); err != nil {
		if errors.Is(err, repository.ErrRoleConflict) {
			return ErrTargetNotAdmin
		}
		return err
	}

	if err := s.sessions.Invalidate(ctx, token); err != nil {
		s.log.Warn().Err(err).Str("account_id", actor.ID).Msg("invalidate transferring session failed")
	}
	return nil
}

func (s *AuthService) checkPasswordPolicy(password, username string) error {
	min := s.cfg.Security.MinPasswordLength
	if min <= 0 {
		min = 8
	}
	if len(password) < min {
		return fmt.Errorf("%w: minimum length is %d", ErrWeakPassword, min)
	}
	if strings.EqualFold(password, username) {
		return fmt.Errorf("%w: password must not equal username", ErrWeakPassword)
	}
	return nil
}

// throttled and recordFailure keep a failed-login counter per username and
// client in redis. Best effort: with no redis, or redis down, logins proceed.
func (s *AuthService) throttled(ctx context.Context, username, clientIP string) bool {
	if s.limiter == nil {
		return false
	}
	count, err := s.limiter.Get(ctx, loginFailKey(username, clientIP)).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("login throttle read failed")
		}
		return false
	}
	return count >= loginFailLimit
}

func (s *AuthService) recordFailure(ctx context.Context, username, clientIP string) {
	if s.limiter == nil {
		return
	}
	key := loginFailKey(username, clientIP)
	pipe := s.limiter.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, loginFailWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Msg("login throttle update failed")
	}
}

func loginFailKey(username, clientIP string) string {
	return fmt.Sprintf("login_fail:%s:%s", username, clientIP)
}
