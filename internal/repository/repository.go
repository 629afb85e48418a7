package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"licensedesk/api/internal/models"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrEmployeeNotFound    = errors.New("employee not found")
	ErrLicenseNotFound     = errors.New("license not found")
	ErrLicenseTypeNotFound = errors.New("license type not found")

	ErrDuplicateUsername        = errors.New("username already taken")
	ErrDuplicateEmail           = errors.New("employee with this email already exists")
	ErrDuplicateLicenseTypeName = errors.New("license type with this name already exists")
	ErrLicenseTypeInUse         = errors.New("license type is referenced by licenses")

	// ErrRoleConflict means a role precondition no longer held once the rows
	// were locked, e.g. two ownership transfers racing.
	ErrRoleConflict = errors.New("account roles changed concurrently")

	// ErrStorageUnavailable marks timeouts and connection failures; the only
	// error class a client may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx, so the same
// statement helpers run inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func queryCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return translate(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return translate(tx.Commit(ctx))
}

// translate maps driver-level failures onto the repository error taxonomy.
// Unique and foreign-key violations are handled per statement by the callers.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
}

func isForeignKeyViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503" && (constraint == "" || pgErr.ConstraintName == constraint)
}

// insertAudit appends one audit row using the caller's transaction, so a
// privileged mutation and its trail commit or roll back together.
func insertAudit(ctx context.Context, q DBTX, entry models.AuditLog) error {
	const query = `
		INSERT INTO audit_logs (id, action, performed_by, target, details, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := q.Exec(ctx, query,
		entry.ID,
		entry.Action,
		entry.PerformedBy,
		entry.Target,
		entry.Details,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", translate(err))
	}
	return nil
}
