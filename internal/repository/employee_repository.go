package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"licensedesk/api/internal/models"
)

type EmployeeRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewEmployeeRepository(pool *pgxpool.Pool, timeout time.Duration) *EmployeeRepository {
	return &EmployeeRepository{pool: pool, timeout: timeout}
}

const employeeColumns = `id, name, email, title, department, manager, created_at, updated_at`

func scanEmployee(row pgx.Row) (models.Employee, error) {
	var emp models.Employee
	if err := row.Scan(
		&emp.ID,
		&emp.Name,
		&emp.Email,
		&emp.Title,
		&emp.Department,
		&emp.Manager,
		&emp.CreatedAt,
		&emp.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Employee{}, ErrEmployeeNotFound
		}
		return models.Employee{}, translate(err)
	}
	return emp, nil
}

func (r *EmployeeRepository) List(ctx context.Context) ([]models.Employee, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `SELECT ` + employeeColumns + ` FROM employees ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, translate(rows.Err())
}

func (r *EmployeeRepository) Get(ctx context.Context, id string) (models.Employee, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`
	return scanEmployee(r.pool.QueryRow(ctx, query, id))
}

func (r *EmployeeRepository) Create(ctx context.Context, emp models.Employee, entry models.AuditLog) error {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
			INSERT INTO employees (id, name, email, title, department, manager, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		`
		if _, err := tx.Exec(ctx, query,
			emp.ID,
			emp.Name,
			emp.Email,
			emp.Title,
			emp.Department,
			emp.Manager,
		); err != nil {
			if isUniqueViolation(err, "employees_email_key") {
				return ErrDuplicateEmail
			}
			return translate(err)
		}
		return insertAudit(ctx, tx, entry)
	})
}

func (r *EmployeeRepository) Update(ctx context.Context, emp models.Employee, entry models.AuditLog) error {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
			UPDATE employees
			SET name = $2, email = $3, title = $4, department = $5, manager = $6, updated_at = NOW()
			WHERE id = $1
		`
		cmd, err := tx.Exec(ctx, query,
			emp.ID,
			emp.Name,
			emp.Email,
			emp.Title,
			emp.Department,
			emp.Manager,
		)
		if err != nil {
			if isUniqueViolation(err, "employees_email_key") {
				return ErrDuplicateEmail
			}
			return translate(err)
		}
		if cmd.RowsAffected() == 0 {
			return ErrEmployeeNotFound
		}
		return insertAudit(ctx, tx, entry)
	})
}

// DeleteCascade removes the employee together with every license assigned to
// them, and reports how many licenses went with the row.
func (r *EmployeeRepository) DeleteCascade(ctx context.Context, id string, entry models.AuditLog) (int64, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	var licensesDeleted int64
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM licenses WHERE employee_id = $1`, id)
		if err != nil {
			return translate(err)
		}
		licensesDeleted = cmd.RowsAffected()

		cmd, err = tx.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
		if err != nil {
			return translate(err)
		}
		if cmd.RowsAffected() == 0 {
			return ErrEmployeeNotFound
		}
		return insertAudit(ctx, tx, entry)
	})
	if err != nil {
		return 0, err
	}
	return licensesDeleted, nil
}
