package service

import (
	"licensedesk/api/internal/ids"
	"licensedesk/api/internal/models"
)

// auditEntry builds the append-only record for a privileged action. The
// repositories insert it inside the same transaction as the mutation, so an
// action without its trail cannot commit.
func auditEntry(action, performedBy, target, details string) models.AuditLog {
	return models.AuditLog{
		ID:          ids.New(),
		Action:      action,
		PerformedBy: performedBy,
		Target:      target,
		Details:     details,
	}
}
