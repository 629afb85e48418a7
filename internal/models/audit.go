package models

import "time"

// Audit action names, one per privileged operation.
const (
	AuditCreateUser        = "create_user"
	AuditUpdateUser        = "update_user"
	AuditDeleteUser        = "delete_user"
	AuditAssignLicense     = "assign_license"
	AuditRevokeLicense     = "revoke_license"
	AuditCreateLicenseType = "create_license_type"
	AuditDeleteLicenseType = "delete_license_type"
	AuditCreateAccount     = "create_account"
	AuditDeleteAccount     = "delete_account"
	AuditChangePassword    = "change_password"
	AuditResetPassword     = "reset_password"
	AuditTransferOwnership = "transfer_ownership"
)

type AuditLog struct {
	ID          string
	Action      string
	PerformedBy string
	Target      string
	Details     string
	CreatedAt   time.Time
}
