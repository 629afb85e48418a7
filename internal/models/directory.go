package models

import "time"

type Employee struct {
	ID         string
	Name       string
	Email      string
	Title      string
	Department string
	Manager    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type LicenseStatus string

const (
	LicenseStatusActive  LicenseStatus = "active"
	LicenseStatusRevoked LicenseStatus = "revoked"
)

type License struct {
	ID            string
	EmployeeID    string
	LicenseTypeID *string
	SoftwareName  string
	LicenseKey    string
	Status        LicenseStatus
	AssignedAt    time.Time
	RevokedAt     *time.Time
	Notes         string
}

// LicenseWithEmployee is the joined row used by license listings.
type LicenseWithEmployee struct {
	License
	EmployeeName  string
	EmployeeEmail string
}

type LicenseType struct {
	ID         string
	Name       string
	IconObject *string
	CreatedAt  time.Time
}
