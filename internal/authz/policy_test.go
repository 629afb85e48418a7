package authz

import (
	"testing"

	"licensedesk/api/internal/models"
)

func TestPermits(t *testing.T) {
	tests := []struct {
		action Action
		viewer bool
		admin  bool
		owner  bool
	}{
		{ActionViewDirectory, true, true, true},
		{ActionManageEmployees, false, true, true},
		{ActionManageLicenses, false, true, true},
		{ActionManageLicenseTypes, false, true, true},
		{ActionViewAccounts, false, false, true},
		{ActionManageAccounts, false, false, true},
		{ActionTransferOwnership, false, false, true},
		{ActionViewAuditLog, false, false, true},
		{ActionChangeOwnPassword, false, true, true},
	}

	for _, tt := range tests {
		if got := Permits(models.RoleViewer, tt.action); got != tt.viewer {
			t.Errorf("Permits(viewer, %s) = %v, want %v", tt.action, got, tt.viewer)
		}
		if got := Permits(models.RoleAdmin, tt.action); got != tt.admin {
			t.Errorf("Permits(admin, %s) = %v, want %v", tt.action, got, tt.admin)
		}
		if got := Permits(models.RoleOwner, tt.action); got != tt.owner {
			t.Errorf("Permits(owner, %s) = %v, want %v", tt.action, got, tt.owner)
		}
	}
}

func TestPermitsUnknown(t *testing.T) {
	if Permits(models.Role("intern"), ActionViewDirectory) {
		t.Error("unknown role should be denied")
	}
	if Permits(models.RoleOwner, Action("nonsense")) {
		t.Error("unknown action should be denied")
	}
}
