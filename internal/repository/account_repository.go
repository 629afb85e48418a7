package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"licensedesk/api/internal/models"
)

type AccountRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewAccountRepository(pool *pgxpool.Pool, timeout time.Duration) *AccountRepository {
	return &AccountRepository{pool: pool, timeout: timeout}
}

const accountColumns = `id, username, password_hash, role, created_at, updated_at`

func scanAccount(row pgx.Row) (models.Account, error) {
	var account models.Account
	if err := row.Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.Role,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, translate(err)
	}
	return account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (models.Account, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (models.Account, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, username))
}

func (r *AccountRepository) List(ctx context.Context) ([]models.Account, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, translate(rows.Err())
}

// Create inserts the account and its audit entry in one transaction.
func (r *AccountRepository) Create(ctx context.Context, account models.Account, entry models.AuditLog) error {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
			INSERT INTO accounts (id, username, password_hash, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
		`
		if _, err := tx.Exec(ctx, query,
			account.ID,
			account.Username,
			account.PasswordHash,
			account.Role,
		); err != nil {
			if isUniqueViolation(err, "accounts_username_key") {
				return ErrDuplicateUsername
			}
			return translate(err)
		}
		return insertAudit(ctx, tx, entry)
	})
}

// Delete removes the account and writes the audit entry atomically. Sessions
// go with it via the FK cascade.
func (r *AccountRepository) Delete(ctx context.Context, id string, entry models.AuditLog) error {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
		if err != nil {
			return translate(err)
		}
		if cmd.RowsAffected() == 0 {
			return ErrAccountNotFound
		}
		return insertAudit(ctx, tx, entry)
	})
}

// UpdatePassword stores a new hash; entry is written in the same transaction
// when provided.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, hash []byte, entry *models.AuditLog) error {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1`
		cmd, err := tx.Exec(ctx, query, id, hash)
		if err != nil {
			return translate(err)
		}
		if cmd.RowsAffected() == 0 {
			return ErrAccountNotFound
		}
		if entry != nil {
			return insertAudit(ctx, tx, *entry)
		}
		return nil
	})
}

// TransferOwnership swaps the owner role from one account to another. Both
// rows are locked so the single-owner invariant holds under concurrent
// transfers; the role preconditions are rechecked once the locks are held.
func (r *AccountRepository) TransferOwnership(ctx context.Context, priorOwnerID, newOwnerID string, entry models.AuditLog) error {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		const lock = `
			SELECT id, role FROM accounts
			WHERE id = ANY($1::text[])
			ORDER BY id
			FOR UPDATE
		`
		rows, err := tx.Query(ctx, lock, []string{priorOwnerID, newOwnerID})
		if err != nil {
			return translate(err)
		}

		roles := make(map[string]models.Role, 2)
		for rows.Next() {
			var id string
			var role models.Role
			if err := rows.Scan(&id, &role); err != nil {
				rows.Close()
				return translate(err)
			}
			roles[id] = role
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return translate(err)
		}

		if len(roles) != 2 {
			return ErrAccountNotFound
		}
		if roles[priorOwnerID] != models.RoleOwner || roles[newOwnerID] != models.RoleAdmin {
			return ErrRoleConflict
		}

		const update = `UPDATE accounts SET role = $2, updated_at = NOW() WHERE id = $1`
		if _, err := tx.Exec(ctx, update, priorOwnerID, models.RoleAdmin); err != nil {
			return translate(err)
		}
		if _, err := tx.Exec(ctx, update, newOwnerID, models.RoleOwner); err != nil {
			return translate(err)
		}
		return insertAudit(ctx, tx, entry)
	})
}
