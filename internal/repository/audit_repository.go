package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"licensedesk/api/internal/models"
)

// AuditRepository is the read side of the audit log. Writes happen through
// insertAudit inside the mutating repositories' transactions; nothing ever
// updates or deletes a row.
type AuditRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewAuditRepository(pool *pgxpool.Pool, timeout time.Duration) *AuditRepository {
	return &AuditRepository{pool: pool, timeout: timeout}
}

func (r *AuditRepository) List(ctx context.Context, limit int) ([]models.AuditLog, error) {
	ctx, cancel := queryCtx(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT id, action, performed_by, target, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var entries []models.AuditLog
	for rows.Next() {
		var entry models.AuditLog
		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.PerformedBy,
			&entry.Target,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, translate(err)
		}
		entries = append(entries, entry)
	}
	return entries, translate(rows.Err())
}
