// Package authz is the single place where roles are mapped to permitted
// actions. Handlers and middleware ask for a decision; nothing outside this
// package compares role strings.
package authz

import "licensedesk/api/internal/models"

type Action string

const (
	ActionViewDirectory      Action = "directory.view"
	ActionManageEmployees    Action = "employees.manage"
	ActionManageLicenses     Action = "licenses.manage"
	ActionManageLicenseTypes Action = "license_types.manage"
	ActionViewAccounts       Action = "accounts.view"
	ActionManageAccounts     Action = "accounts.manage"
	ActionTransferOwnership  Action = "accounts.transfer_ownership"
	ActionViewAuditLog       Action = "audit.view"
	ActionChangeOwnPassword  Action = "accounts.change_own_password"
)

var permissions = map[Action]map[models.Role]bool{
	ActionViewDirectory:      {models.RoleViewer: true, models.RoleAdmin: true, models.RoleOwner: true},
	ActionManageEmployees:    {models.RoleAdmin: true, models.RoleOwner: true},
	ActionManageLicenses:     {models.RoleAdmin: true, models.RoleOwner: true},
	ActionManageLicenseTypes: {models.RoleAdmin: true, models.RoleOwner: true},
	ActionViewAccounts:       {models.RoleOwner: true},
	ActionManageAccounts:     {models.RoleOwner: true},
	ActionTransferOwnership:  {models.RoleOwner: true},
	ActionViewAuditLog:       {models.RoleOwner: true},
	ActionChangeOwnPassword:  {models.RoleAdmin: true, models.RoleOwner: true},
}

// Permits reports whether role may perform action. Unknown roles and unknown
// actions are denied.
func Permits(role models.Role, action Action) bool {
	return permissions[action][role]
}
