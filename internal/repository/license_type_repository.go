package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"licensedesk/api/internal/models"
)

type LicenseTypeRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewLicenseTypeRepository(pool *pgxpool.Pool, timeout time.Duration) *LicenseTypeRepository {
	return &LicenseTypeRepository{pool: pool, timeout: timeout}
}

func scanLicenseType(row pgx.Row) (models.LicenseType, error) {
	var lt models.LicenseType
	if err := row.Scan(&lt.ID, &lt.Name, &lt.IconObject, &lt.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.LicenseType{}, ErrLicenseTypeNotFound
		}
		return models.LicenseType{}, translate(err)
	}
	return lt, nil
}

func (r *LicenseTypeRepository) List(ctx context.Context) ([]models.LicenseType, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `SELECT id, name, icon_object, created_at FROM license_types ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var types []models.LicenseType
	for rows.Next() {
		lt, err := scanLicenseType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, lt)
	}
	return types, translate(rows.Err())
}

func (r *LicenseTypeRepository) Get(ctx context.Context, id string) (models.LicenseType, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `SELECT id, name, icon_object, created_at FROM license_types WHERE id = $1`
	return scanLicenseType(r.pool.QueryRow(ctx, query, id))
}

func (r *LicenseTypeRepository) Create(ctx context.Context, lt models.LicenseType, entry models.AuditLog) error {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
			INSERT INTO license_types (id, name, icon_object, created_at)
			VALUES ($1, $2, $3, NOW())
		`
		if _, err := tx.Exec(ctx, query, lt.ID, lt.Name, lt.IconObject); err != nil {
			if isUniqueViolation(err, "license_types_name_key") {
				return ErrDuplicateLicenseTypeName
			}
			return translate(err)
		}
		return insertAudit(ctx, tx, entry)
	})
}

// Delete refuses while licenses still reference the type, and returns the
// removed row so the caller can clean up its icon object.
func (r *LicenseTypeRepository) Delete(ctx context.Context, id string, entry models.AuditLog) (models.LicenseType, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	var deleted models.LicenseType
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `DELETE FROM license_types WHERE id = $1 RETURNING id, name, icon_object, created_at`
		row := tx.QueryRow(ctx, query, id)
		lt, err := scanLicenseType(row)
		if err != nil {
			if isForeignKeyViolation(err, "licenses_license_type_id_fkey") {
				return ErrLicenseTypeInUse
			}
			return err
		}
		deleted = lt
		return insertAudit(ctx, tx, entry)
	})
	if err != nil {
		return models.LicenseType{}, err
	}
	return deleted, nil
}

// ListIconObjects returns the icon object keys currently referenced, for the
// orphan sweep.
func (r *LicenseTypeRepository) ListIconObjects(ctx context.Context) ([]string, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `SELECT icon_object FROM license_types WHERE icon_object IS NOT NULL`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, translate(err)
		}
		keys = append(keys, key)
	}
	return keys, translate(rows.Err())
}
