package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"licensedesk/api/internal/ids"
	"licensedesk/api/internal/models"
	"licensedesk/api/internal/repository"
	"licensedesk/api/internal/storage"
)

type memEmployeeRepo struct {
	mu        sync.Mutex
	employees map[string]models.Employee
	licenses  *memLicenseRepo
	audits    []models.AuditLog
}

func newMemEmployeeRepo(licenses *memLicenseRepo) *memEmployeeRepo {
	return &memEmployeeRepo{employees: make(map[string]models.Employee), licenses: licenses}
}

func (r *memEmployeeRepo) List(ctx context.Context) ([]models.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Employee, 0, len(r.employees))
	for _, e := range r.employees {
		out = append(out, e)
	}
	return out, nil
}

func (r *memEmployeeRepo) Get(ctx context.Context, id string) (models.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.employees[id]
	if !ok {
		return models.Employee{}, repository.ErrEmployeeNotFound
	}
	return e, nil
}

func (r *memEmployeeRepo) Create(ctx context.Context, emp models.Employee, entry models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.employees {
		if e.Email == emp.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.employees[emp.ID] = emp
	r.audits = append(r.audits, entry)
	return nil
}

func (r *memEmployeeRepo) Update(ctx context.Context, emp models.Employee, entry models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.employees[emp.ID]; !ok {
		return repository.ErrEmployeeNotFound
	}
	for id, e := range r.employees {
		if id != emp.ID && e.Email == emp.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.employees[emp.ID] = emp
	r.audits = append(r.audits, entry)
	return nil
}

func (r *memEmployeeRepo) DeleteCascade(ctx context.Context, id string, entry models.AuditLog) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.employees[id]; !ok {
		return 0, repository.ErrEmployeeNotFound
	}
	delete(r.employees, id)
	r.audits = append(r.audits, entry)
	return r.licenses.deleteByEmployee(id), nil
}

type memLicenseRepo struct {
	mu        sync.Mutex
	licenses  map[string]models.License
	employees *memEmployeeRepo
	audits    []models.AuditLog
}

func newMemLicenseRepo() *memLicenseRepo {
	return &memLicenseRepo{licenses: make(map[string]models.License)}
}

func (r *memLicenseRepo) ListJoined(ctx context.Context) ([]models.LicenseWithEmployee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.LicenseWithEmployee, 0, len(r.licenses))
	for _, lic := range r.licenses {
		row := models.LicenseWithEmployee{License: lic}
		if r.employees != nil {
			if emp, ok := r.employees.employees[lic.EmployeeID]; ok {
				row.EmployeeName = emp.Name
				row.EmployeeEmail = emp.Email
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *memLicenseRepo) ListByEmployee(ctx context.Context, employeeID string) ([]models.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.License
	for _, lic := range r.licenses {
		if lic.EmployeeID == employeeID {
			out = append(out, lic)
		}
	}
	return out, nil
}

func (r *memLicenseRepo) Get(ctx context.Context, id string) (models.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lic, ok := r.licenses[id]
	if !ok {
		return models.License{}, repository.ErrLicenseNotFound
	}
	return lic, nil
}

func (r *memLicenseRepo) Create(ctx context.Context, lic models.License, entry models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.licenses[lic.ID] = lic
	r.audits = append(r.audits, entry)
	return nil
}

func (r *memLicenseRepo) Delete(ctx context.Context, id string, entry models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.licenses[id]; !ok {
		return repository.ErrLicenseNotFound
	}
	delete(r.licenses, id)
	r.audits = append(r.audits, entry)
	return nil
}

func (r *memLicenseRepo) deleteByEmployee(employeeID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, lic := range r.licenses {
		if lic.EmployeeID == employeeID {
			delete(r.licenses, id)
			n++
		}
	}
	return n
}

type memLicenseTypeRepo struct {
	mu     sync.Mutex
	types  map[string]models.LicenseType
	inUse  map[string]bool
	failOn string
	audits []models.AuditLog
}

func newMemLicenseTypeRepo() *memLicenseTypeRepo {
	return &memLicenseTypeRepo{types: make(map[string]models.LicenseType), inUse: make(map[string]bool)}
}

func (r *memLicenseTypeRepo) List(ctx context.Context) ([]models.LicenseType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.LicenseType, 0, len(r.types))
	for _, lt := range r.types {
		out = append(out, lt)
	}
	return out, nil
}

func (r *memLicenseTypeRepo) Get(ctx context.Context, id string) (models.LicenseType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lt, ok := r.types[id]
	if !ok {
		return models.LicenseType{}, repository.ErrLicenseTypeNotFound
	}
	return lt, nil
}

func (r *memLicenseTypeRepo) Create(ctx context.Context, lt models.LicenseType, entry models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == lt.Name {
		return repository.ErrDuplicateLicenseTypeName
	}
	for _, existing := range r.types {
		if existing.Name == lt.Name {
			return repository.ErrDuplicateLicenseTypeName
		}
	}
	r.types[lt.ID] = lt
	r.audits = append(r.audits, entry)
	return nil
}

func (r *memLicenseTypeRepo) Delete(ctx context.Context, id string, entry models.AuditLog) (models.LicenseType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lt, ok := r.types[id]
	if !ok {
		return models.LicenseType{}, repository.ErrLicenseTypeNotFound
	}
	if r.inUse[id] {
		return models.LicenseType{}, repository.ErrLicenseTypeInUse
	}
	delete(r.types, id)
	r.audits = append(r.audits, entry)
	return lt, nil
}

func (r *memLicenseTypeRepo) ListIconObjects(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, lt := range r.types {
		if lt.IconObject != nil {
			out = append(out, *lt.IconObject)
		}
	}
	return out, nil
}

type memIconStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	ctypes  map[string]string
}

func newMemIconStore() *memIconStore {
	return &memIconStore{objects: make(map[string][]byte), ctypes: make(map[string]string)}
}

func (s *memIconStore) PutIcon(ctx context.Context, objectKey string, contentType string, data io.Reader, size int64) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey] = buf
	s.ctypes[objectKey] = contentType
	return nil
}

func (s *memIconStore) GetIcon(ctx context.Context, objectKey string) (io.ReadCloser, string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.objects[objectKey]
	if !ok {
		return nil, "", 0, storage.ErrIconNotFound
	}
	return io.NopCloser(bytes.NewReader(buf)), s.ctypes[objectKey], int64(len(buf)), nil
}

func (s *memIconStore) RemoveIcon(ctx context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey)
	delete(s.ctypes, objectKey)
	return nil
}

func (s *memIconStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type directoryFixture struct {
	employees    *memEmployeeRepo
	licenses     *memLicenseRepo
	licenseTypes *memLicenseTypeRepo
	icons        *memIconStore
	svc          *DirectoryService
	actor        models.Account
}

func newDirectoryFixture(t *testing.T) *directoryFixture {
	t.Helper()
	licenses := newMemLicenseRepo()
	employees := newMemEmployeeRepo(licenses)
	licenses.employees = employees
	licenseTypes := newMemLicenseTypeRepo()
	icons := newMemIconStore()

	svc := NewDirectoryService(employees, licenses, licenseTypes, icons, testConfig(), zerolog.Nop())
	return &directoryFixture{
		employees:    employees,
		licenses:     licenses,
		licenseTypes: licenseTypes,
		icons:        icons,
		svc:          svc,
		actor:        models.Account{ID: ids.New(), Username: "adam", Role: models.RoleAdmin},
	}
}

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}

func TestCreateEmployee(t *testing.T) {
	f := newDirectoryFixture(t)

	emp, err := f.svc.CreateEmployee(context.Background(), f.actor, EmployeeInput{
		Name:  "  Dana Smith ",
		Email: "Dana@Example.Com",
		Title: "Engineer",
	})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	if emp.Name != "Dana Smith" {
		t.Fatalf("Name = %q, want trimmed", emp.Name)
	}
	if emp.Email != "dana@example.com" {
		t.Fatalf("Email = %q, want lowercased", emp.Email)
	}

	if _, err := f.svc.CreateEmployee(context.Background(), f.actor, EmployeeInput{Name: "Other", Email: "dana@example.com"}); !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Fatalf("duplicate email: %v", err)
	}
	if _, err := f.svc.CreateEmployee(context.Background(), f.actor, EmployeeInput{Name: "No Email"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing email: %v", err)
	}
}

func TestUpdateEmployeePartial(t *testing.T) {
	f := newDirectoryFixture(t)
	emp, err := f.svc.CreateEmployee(context.Background(), f.actor, EmployeeInput{Name: "Dana", Email: "dana@example.com", Department: "Eng"})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}

	title := "Staff Engineer"
	updated, err := f.svc.UpdateEmployee(context.Background(), f.actor, emp.ID, EmployeeUpdate{Title: &title})
	if err != nil {
		t.Fatalf("UpdateEmployee: %v", err)
	}
	if updated.Title != "Staff Engineer" {
		t.Fatalf("Title = %q", updated.Title)
	}
	if updated.Department != "Eng" {
		t.Fatalf("untouched field changed: %q", updated.Department)
	}

	if _, err := f.svc.UpdateEmployee(context.Background(), f.actor, emp.ID, EmployeeUpdate{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty update: %v", err)
	}
	if _, err := f.svc.UpdateEmployee(context.Background(), f.actor, "missing", EmployeeUpdate{Title: &title}); !errors.Is(err, repository.ErrEmployeeNotFound) {
		t.Fatalf("unknown employee: %v", err)
	}
}

func TestDeleteEmployeeCascadesLicenses(t *testing.T) {
	f := newDirectoryFixture(t)
	emp, err := f.svc.CreateEmployee(context.Background(), f.actor, EmployeeInput{Name: "Dana", Email: "dana@example.com"})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	for _, sw := range []string{"IDE", "Office"} {
		if _, err := f.svc.AssignLicense(context.Background(), f.actor, LicenseInput{EmployeeID: emp.ID, SoftwareName: sw}); err != nil {
			t.Fatalf("AssignLicense: %v", err)
		}
	}

	deleted, err := f.svc.DeleteEmployee(context.Background(), f.actor, emp.ID)
	if err != nil {
		t.Fatalf("DeleteEmployee: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("licenses deleted = %d, want 2", deleted)
	}
	if remaining, _ := f.licenses.ListJoined(context.Background()); len(remaining) != 0 {
		t.Fatalf("licenses left behind: %d", len(remaining))
	}
}

func TestListEmployeesGroupsLicenses(t *testing.T) {
	f := newDirectoryFixture(t)
	dana, _ := f.svc.CreateEmployee(context.Background(), f.actor, EmployeeInput{Name: "Dana", Email: "dana@example.com"})
	omar, _ := f.svc.CreateEmployee(context.Background(), f.actor, EmployeeInput{Name: "Omar", Email: "omar@example.com"})
	if _, err := f.svc.AssignLicense(context.Background(), f.actor, LicenseInput{EmployeeID: dana.ID, SoftwareName: "IDE"}); err != nil {
		t.Fatalf("AssignLicense: %v", err)
	}

	listed, err := f.svc.ListEmployees(context.Background())
	if err != nil {
		t.Fatalf("ListEmployees: %v", err)
	}
	byID := make(map[string]EmployeeWithLicenses, len(listed))
	for _, e := range listed {
		byID[e.ID] = e
	}
	if got := len(byID[dana.ID].Licenses); got != 1 {
		t.Fatalf("dana licenses = %d, want 1", got)
	}
	if got := len(byID[omar.ID].Licenses); got != 0 {
		t.Fatalf("omar licenses = %d, want 0", got)
	}
}

func TestAssignLicenseValidation(t *testing.T) {
	f := newDirectoryFixture(t)
	emp, _ := f.svc.CreateEmployee(context.Background(), f.actor, EmployeeInput{Name: "Dana", Email: "dana@example.com"})

	if _, err := f.svc.AssignLicense(context.Background(), f.actor, LicenseInput{EmployeeID: "missing", SoftwareName: "IDE"}); !errors.Is(err, repository.ErrEmployeeNotFound) {
		t.Fatalf("unknown employee: %v", err)
	}
	if _, err := f.svc.AssignLicense(context.Background(), f.actor, LicenseInput{EmployeeID: emp.ID}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing software name: %v", err)
	}

	bogus := "missing-type"
	if _, err := f.svc.AssignLicense(context.Background(), f.actor, LicenseInput{EmployeeID: emp.ID, SoftwareName: "IDE", LicenseTypeID: &bogus}); !errors.Is(err, repository.ErrLicenseTypeNotFound) {
		t.Fatalf("unknown license type: %v", err)
	}

	lic, err := f.svc.AssignLicense(context.Background(), f.actor, LicenseInput{EmployeeID: emp.ID, SoftwareName: "IDE", LicenseKey: "ABC-123"})
	if err != nil {
		t.Fatalf("AssignLicense: %v", err)
	}
	if lic.Status != models.LicenseStatusActive {
		t.Fatalf("Status = %q, want active", lic.Status)
	}
}

func TestRevokeLicense(t *testing.T) {
	f := newDirectoryFixture(t)
	emp, _ := f.svc.CreateEmployee(context.Background(), f.actor, EmployeeInput{Name: "Dana", Email: "dana@example.com"})
	lic, err := f.svc.AssignLicense(context.Background(), f.actor, LicenseInput{EmployeeID: emp.ID, SoftwareName: "IDE"})
	if err != nil {
		t.Fatalf("AssignLicense: %v", err)
	}

	if err := f.svc.RevokeLicense(context.Background(), f.actor, lic.ID); err != nil {
		t.Fatalf("RevokeLicense: %v", err)
	}
	if err := f.svc.RevokeLicense(context.Background(), f.actor, lic.ID); !errors.Is(err, repository.ErrLicenseNotFound) {
		t.Fatalf("revoke twice: %v", err)
	}
}

func TestCreateLicenseTypeWithIcon(t *testing.T) {
	f := newDirectoryFixture(t)

	lt, err := f.svc.CreateLicenseType(context.Background(), f.actor, "JetBrains", pngBytes)
	if err != nil {
		t.Fatalf("CreateLicenseType: %v", err)
	}
	if lt.IconObject == nil {
		t.Fatal("icon object not recorded")
	}

	body, contentType, _, err := f.svc.GetIcon(context.Background(), *lt.IconObject)
	if err != nil {
		t.Fatalf("GetIcon: %v", err)
	}
	defer body.Close()
	if contentType != "image/png" {
		t.Fatalf("content type = %q, want image/png", contentType)
	}

	if _, _, _, err := f.svc.GetIcon(context.Background(), "icons/missing.png"); !errors.Is(err, storage.ErrIconNotFound) {
		t.Fatalf("GetIcon unknown key = %v, want %v", err, storage.ErrIconNotFound)
	}
}

func TestCreateLicenseTypeRejectsBadIcon(t *testing.T) {
	f := newDirectoryFixture(t)

	if _, err := f.svc.CreateLicenseType(context.Background(), f.actor, "Evil", []byte("#!/bin/sh\nrm")); !errors.Is(err, ErrValidation) {
		t.Fatalf("script accepted as icon: %v", err)
	}
	if f.icons.count() != 0 {
		t.Fatal("rejected icon was stored")
	}
}

func TestCreateLicenseTypeCleansUpOnInsertFailure(t *testing.T) {
	f := newDirectoryFixture(t)
	f.licenseTypes.failOn = "JetBrains"

	if _, err := f.svc.CreateLicenseType(context.Background(), f.actor, "JetBrains", pngBytes); !errors.Is(err, repository.ErrDuplicateLicenseTypeName) {
		t.Fatalf("CreateLicenseType = %v", err)
	}
	if f.icons.count() != 0 {
		t.Fatal("orphan icon left after failed insert")
	}
}

func TestDeleteLicenseTypeInUse(t *testing.T) {
	f := newDirectoryFixture(t)
	lt, err := f.svc.CreateLicenseType(context.Background(), f.actor, "JetBrains", pngBytes)
	if err != nil {
		t.Fatalf("CreateLicenseType: %v", err)
	}
	f.licenseTypes.inUse[lt.ID] = true

	if err := f.svc.DeleteLicenseType(context.Background(), f.actor, lt.ID); !errors.Is(err, repository.ErrLicenseTypeInUse) {
		t.Fatalf("in-use type deleted: %v", err)
	}
	if f.icons.count() != 1 {
		t.Fatal("icon removed though type survived")
	}

	f.licenseTypes.inUse[lt.ID] = false
	if err := f.svc.DeleteLicenseType(context.Background(), f.actor, lt.ID); err != nil {
		t.Fatalf("DeleteLicenseType: %v", err)
	}
	if f.icons.count() != 0 {
		t.Fatal("icon not removed with its type")
	}
}
