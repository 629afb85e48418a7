package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"licensedesk/api/internal/models"
)

type LicenseRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewLicenseRepository(pool *pgxpool.Pool, timeout time.Duration) *LicenseRepository {
	return &LicenseRepository{pool: pool, timeout: timeout}
}

const licenseColumns = `l.id, l.employee_id, l.license_type_id, l.software_name, l.license_key, l.status, l.assigned_at, l.revoked_at, l.notes`

func scanLicense(row pgx.Row) (models.License, error) {
	var lic models.License
	if err := row.Scan(
		&lic.ID,
		&lic.EmployeeID,
		&lic.LicenseTypeID,
		&lic.SoftwareName,
		&lic.LicenseKey,
		&lic.Status,
		&lic.AssignedAt,
		&lic.RevokedAt,
		&lic.Notes,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.License{}, ErrLicenseNotFound
		}
		return models.License{}, translate(err)
	}
	return lic, nil
}

// ListJoined returns every license with the owning employee's name and email,
// ordered the way the directory UI shows them.
func (r *LicenseRepository) ListJoined(ctx context.Context) ([]models.LicenseWithEmployee, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT ` + licenseColumns + `, e.name, e.email
		FROM licenses l
		JOIN employees e ON l.employee_id = e.id
		ORDER BY e.name, l.software_name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var licenses []models.LicenseWithEmployee
	for rows.Next() {
		var lic models.LicenseWithEmployee
		if err := rows.Scan(
			&lic.ID,
			&lic.EmployeeID,
			&lic.LicenseTypeID,
			&lic.SoftwareName,
			&lic.LicenseKey,
			&lic.Status,
			&lic.AssignedAt,
			&lic.RevokedAt,
			&lic.Notes,
			&lic.EmployeeName,
			&lic.EmployeeEmail,
		); err != nil {
			return nil, translate(err)
		}
		licenses = append(licenses, lic)
	}
	return licenses, translate(rows.Err())
}

func (r *LicenseRepository) ListByEmployee(ctx context.Context, employeeID string) ([]models.License, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT ` + licenseColumns + `
		FROM licenses l
		WHERE l.employee_id = $1
		ORDER BY l.software_name
	`
	rows, err := r.pool.Query(ctx, query, employeeID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var licenses []models.License
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, lic)
	}
	return licenses, translate(rows.Err())
}

func (r *LicenseRepository) Get(ctx context.Context, id string) (models.License, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `SELECT ` + licenseColumns + ` FROM licenses l WHERE l.id = $1`
	return scanLicense(r.pool.QueryRow(ctx, query, id))
}

func (r *LicenseRepository) Create(ctx context.Context, lic models.License, entry models.AuditLog) error {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
			INSERT INTO licenses (id, employee_id, license_type_id, software_name, license_key, status, assigned_at, notes)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7)
		`
		if _, err := tx.Exec(ctx, query,
			lic.ID,
			lic.EmployeeID,
			lic.LicenseTypeID,
			lic.SoftwareName,
			lic.LicenseKey,
			lic.Status,
			lic.Notes,
		); err != nil {
			if isForeignKeyViolation(err, "licenses_employee_id_fkey") {
				return ErrEmployeeNotFound
			}
			if isForeignKeyViolation(err, "licenses_license_type_id_fkey") {
				return ErrLicenseTypeNotFound
			}
			return translate(err)
		}
		return insertAudit(ctx, tx, entry)
	})
}

func (r *LicenseRepository) Delete(ctx context.Context, id string, entry models.AuditLog) error {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM licenses WHERE id = $1`, id)
		if err != nil {
			return translate(err)
		}
		if cmd.RowsAffected() == 0 {
			return ErrLicenseNotFound
		}
		return insertAudit(ctx, tx, entry)
	})
}
