package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"licensedesk/api/internal/config"
	"licensedesk/api/internal/ids"
	"licensedesk/api/internal/models"
)

type EmployeeRepo interface {
	List(ctx context.Context) ([]models.Employee, error)
	Get(ctx context.Context, id string) (models.Employee, error)
	Create(ctx context.Context, emp models.Employee, entry models.AuditLog) error
	Update(ctx context.Context, emp models.Employee, entry models.AuditLog) error
	DeleteCascade(ctx context.Context, id string, entry models.AuditLog) (int64, error)
}

type LicenseRepo interface {
	ListJoined(ctx context.Context) ([]models.LicenseWithEmployee, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]models.License, error)
	Get(ctx context.Context, id string) (models.License, error)
	Create(ctx context.Context, lic models.License, entry models.AuditLog) error
	Delete(ctx context.Context, id string, entry models.AuditLog) error
}

type LicenseTypeRepo interface {
	List(ctx context.Context) ([]models.LicenseType, error)
	Get(ctx context.Context, id string) (models.LicenseType, error)
	Create(ctx context.Context, lt models.LicenseType, entry models.AuditLog) error
	Delete(ctx context.Context, id string, entry models.AuditLog) (models.LicenseType, error)
	ListIconObjects(ctx context.Context) ([]string, error)
}

type IconStore interface {
	PutIcon(ctx context.Context, objectKey string, contentType string, data io.Reader, size int64) error
	GetIcon(ctx context.Context, objectKey string) (io.ReadCloser, string, int64, error)
	RemoveIcon(ctx context.Context, objectKey string) error
}

// DirectoryService covers the CRUD surface: employees, their licenses, and
// the license-type catalog with icons.
type DirectoryService struct {
	employees    EmployeeRepo
	licenses     LicenseRepo
	licenseTypes LicenseTypeRepo
	icons        IconStore
	cfg          *config.AppConfig
	log          zerolog.Logger
}

func NewDirectoryService(
	employees EmployeeRepo,
	licenses LicenseRepo,
	licenseTypes LicenseTypeRepo,
	icons IconStore,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *DirectoryService {
	return &DirectoryService{
		employees:    employees,
		licenses:     licenses,
		licenseTypes: licenseTypes,
		icons:        icons,
		cfg:          cfg,
		log:          log,
	}
}

type EmployeeWithLicenses struct {
	models.Employee
	Licenses []models.License
}

func (s *DirectoryService) ListEmployees(ctx context.Context) ([]EmployeeWithLicenses, error) {
	employees, err := s.employees.List(ctx)
	if err != nil {
		return nil, err
	}
	licenses, err := s.licenses.ListJoined(ctx)
	if err != nil {
		return nil, err
	}

	byEmployee := make(map[string][]models.License, len(employees))
	for _, lic := range licenses {
		byEmployee[lic.EmployeeID] = append(byEmployee[lic.EmployeeID], lic.License)
	}

	result := make([]EmployeeWithLicenses, 0, len(employees))
	for _, emp := range employees {
		result = append(result, EmployeeWithLicenses{
			Employee: emp,
			Licenses: byEmployee[emp.ID],
		})
	}
	return result, nil
}

func (s *DirectoryService) GetEmployee(ctx context.Context, id string) (EmployeeWithLicenses, error) {
	emp, err := s.employees.Get(ctx, id)
	if err != nil {
		return EmployeeWithLicenses{}, err
	}
	licenses, err := s.licenses.ListByEmployee(ctx, id)
	if err != nil {
		return EmployeeWithLicenses{}, err
	}
	return EmployeeWithLicenses{Employee: emp, Licenses: licenses}, nil
}

type EmployeeInput struct {
	Name       string
	Email      string
	Title      string
	Department string
	Manager    string
}

func (s *DirectoryService) CreateEmployee(ctx context.Context, actor models.Account, input EmployeeInput) (models.Employee, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Name == "" || input.Email == "" {
		return models.Employee{}, fmt.Errorf("%w: name and email required", ErrValidation)
	}

	emp := models.Employee{
		ID:         ids.New(),
		Name:       input.Name,
		Email:      input.Email,
		Title:      input.Title,
		Department: input.Department,
		Manager:    input.Manager,
	}

	entry := auditEntry(models.AuditCreateUser, actor.Username, emp.Email, emp.Name)
	if err := s.employees.Create(ctx, emp, entry); err != nil {
		return models.Employee{}, err
	}
	return emp, nil
}

type EmployeeUpdate struct {
	Name       *string
	Email      *string
	Title      *string
	Department *string
	Manager    *string
}

func (u EmployeeUpdate) empty() bool {
	return u.Name == nil && u.Email == nil && u.Title == nil && u.Department == nil && u.Manager == nil
}

func (s *DirectoryService) UpdateEmployee(ctx context.Context, actor models.Account, id string, update EmployeeUpdate) (models.Employee, error) {
	if update.empty() {
		return models.Employee{}, fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	emp, err := s.employees.Get(ctx, id)
	if err != nil {
		return models.Employee{}, err
	}

	if update.Name != nil {
		emp.Name = strings.TrimSpace(*update.Name)
	}
	if update.Email != nil {
		emp.Email = strings.TrimSpace(strings.ToLower(*update.Email))
	}
	if update.Title != nil {
		emp.Title = *update.Title
	}
	if update.Department != nil {
		emp.Department = *update.Department
	}
	if update.Manager != nil {
		emp.Manager = *update.Manager
	}
	if emp.Name == "" || emp.Email == "" {
		return models.Employee{}, fmt.Errorf("%w: name and email must not be empty", ErrValidation)
	}

	entry := auditEntry(models.AuditUpdateUser, actor.Username, emp.Email, emp.Name)
	if err := s.employees.Update(ctx, emp, entry); err != nil {
		return models.Employee{}, err
	}
	return emp, nil
}

// DeleteEmployee removes the employee and cascades to every license they
// hold; the count of removed licenses is reported back.
func (s *DirectoryService) DeleteEmployee(ctx context.Context, actor models.Account, id string) (int64, error) {
	emp, err := s.employees.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	entry := auditEntry(models.AuditDeleteUser, actor.Username, emp.Email, emp.Name)
	return s.employees.DeleteCascade(ctx, id, entry)
}

func (s *DirectoryService) ListLicenses(ctx context.Context) ([]models.LicenseWithEmployee, error) {
	return s.licenses.ListJoined(ctx)
}

type LicenseInput struct {
	EmployeeID    string
	LicenseTypeID *string
	SoftwareName  string
	LicenseKey    string
	Notes         string
}

func (s *DirectoryService) AssignLicense(ctx context.Context, actor models.Account, input LicenseInput) (models.License, error) {
	input.SoftwareName = strings.TrimSpace(input.SoftwareName)
	if input.EmployeeID == "" || input.SoftwareName == "" {
		return models.License{}, fmt.Errorf("%w: employee_id and software_name required", ErrValidation)
	}

	emp, err := s.employees.Get(ctx, input.EmployeeID)
	if err != nil {
		return models.License{}, err
	}
	if input.LicenseTypeID != nil {
		if _, err := s.licenseTypes.Get(ctx, *input.LicenseTypeID); err != nil {
			return models.License{}, err
		}
	}

	lic := models.License{
		ID:            ids.New(),
		EmployeeID:    emp.ID,
		LicenseTypeID: input.LicenseTypeID,
		SoftwareName:  input.SoftwareName,
		LicenseKey:    input.LicenseKey,
		Status:        models.LicenseStatusActive,
		Notes:         input.Notes,
	}

	entry := auditEntry(models.AuditAssignLicense, actor.Username, emp.Email, lic.SoftwareName)
	if err := s.licenses.Create(ctx, lic, entry); err != nil {
		return models.License{}, err
	}
	return lic, nil
}

func (s *DirectoryService) RevokeLicense(ctx context.Context, actor models.Account, id string) error {
	lic, err := s.licenses.Get(ctx, id)
	if err != nil {
		return err
	}

	entry := auditEntry(models.AuditRevokeLicense, actor.Username, lic.EmployeeID, lic.SoftwareName)
	return s.licenses.Delete(ctx, id, entry)
}

func (s *DirectoryService) ListLicenseTypes(ctx context.Context) ([]models.LicenseType, error) {
	return s.licenseTypes.List(ctx)
}

var iconExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// CreateLicenseType stores the optional icon in the object store first and
// rolls the upload back if the catalog row cannot be written.
func (s *DirectoryService) CreateLicenseType(ctx context.Context, actor models.Account, name string, icon []byte) (models.LicenseType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.LicenseType{}, fmt.Errorf("%w: name required", ErrValidation)
	}

	lt := models.LicenseType{
		ID:   ids.New(),
		Name: name,
	}

	if len(icon) > 0 {
		if s.icons == nil {
			return models.LicenseType{}, fmt.Errorf("%w: icon storage not configured", ErrValidation)
		}
		if max := s.cfg.Security.MaxIconBytes; max > 0 && int64(len(icon)) > max {
			return models.LicenseType{}, fmt.Errorf("%w: icon exceeds %d bytes", ErrValidation, max)
		}

		contentType := http.DetectContentType(icon)
		ext, ok := iconExtensions[contentType]
		if !ok {
			return models.LicenseType{}, fmt.Errorf("%w: unsupported icon type %s", ErrValidation, contentType)
		}

		objectKey := fmt.Sprintf("%s.%s", lt.ID, ext)
		if err := s.icons.PutIcon(ctx, objectKey, contentType, bytes.NewReader(icon), int64(len(icon))); err != nil {
			return models.LicenseType{}, err
		}
		lt.IconObject = &objectKey
	}

	entry := auditEntry(models.AuditCreateLicenseType, actor.Username, lt.Name, "")
	if err := s.licenseTypes.Create(ctx, lt, entry); err != nil {
		if lt.IconObject != nil {
			if rmErr := s.icons.RemoveIcon(ctx, *lt.IconObject); rmErr != nil {
				s.log.Warn().Err(rmErr).Str("object", *lt.IconObject).Msg("cleanup orphaned icon failed")
			}
		}
		return models.LicenseType{}, err
	}
	return lt, nil
}

func (s *DirectoryService) DeleteLicenseType(ctx context.Context, actor models.Account, id string) error {
	lt, err := s.licenseTypes.Get(ctx, id)
	if err != nil {
		return err
	}

	entry := auditEntry(models.AuditDeleteLicenseType, actor.Username, lt.Name, "")
	deleted, err := s.licenseTypes.Delete(ctx, id, entry)
	if err != nil {
		return err
	}

	if deleted.IconObject != nil && s.icons != nil {
		if err := s.icons.RemoveIcon(ctx, *deleted.IconObject); err != nil {
			s.log.Warn().Err(err).Str("object", *deleted.IconObject).Msg("remove icon failed")
		}
	}
	return nil
}

// GetIcon streams a stored icon. The caller closes the reader.
func (s *DirectoryService) GetIcon(ctx context.Context, objectKey string) (io.ReadCloser, string, int64, error) {
	if s.icons == nil {
		return nil, "", 0, fmt.Errorf("%w: icon storage not configured", ErrValidation)
	}
	return s.icons.GetIcon(ctx, objectKey)
}
