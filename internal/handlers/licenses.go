package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"licensedesk/api/internal/middleware"
	"licensedesk/api/internal/models"
	"licensedesk/api/internal/service"
)

type licenseView struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	LicenseTypeID *string    `json:"license_type_id"`
	SoftwareName  string     `json:"software_name"`
	LicenseKey    string     `json:"license_key"`
	Status        string     `json:"status"`
	AssignedAt    time.Time  `json:"assigned_at"`
	RevokedAt     *time.Time `json:"revoked_at"`
	Notes         string     `json:"notes"`
}

type licenseWithUserView struct {
	licenseView
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

func toLicenseView(lic models.License) licenseView {
	return licenseView{
		ID:            lic.ID,
		UserID:        lic.EmployeeID,
		LicenseTypeID: lic.LicenseTypeID,
		SoftwareName:  lic.SoftwareName,
		LicenseKey:    lic.LicenseKey,
		Status:        string(lic.Status),
		AssignedAt:    lic.AssignedAt,
		RevokedAt:     lic.RevokedAt,
		Notes:         lic.Notes,
	}
}

func (h HandlerSet) ListLicenses(c *gin.Context) {
	licenses, err := h.directory.ListLicenses(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	views := make([]licenseWithUserView, 0, len(licenses))
	for _, lic := range licenses {
		views = append(views, licenseWithUserView{
			licenseView: toLicenseView(lic.License),
			UserName:    lic.EmployeeName,
			UserEmail:   lic.EmployeeEmail,
		})
	}
	c.JSON(http.StatusOK, gin.H{"licenses": views})
}

func (h HandlerSet) AssignLicense(c *gin.Context) {
	var req struct {
		UserID        string  `json:"user_id" binding:"required"`
		LicenseTypeID *string `json:"license_type_id"`
		SoftwareName  string  `json:"software_name" binding:"required"`
		LicenseKey    string  `json:"license_key"`
		Notes         string  `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and software_name are required"})
		return
	}

	actor, _ := middleware.CurrentAccount(c)
	lic, err := h.directory.AssignLicense(c.Request.Context(), actor, service.LicenseInput{
		EmployeeID:    req.UserID,
		LicenseTypeID: req.LicenseTypeID,
		SoftwareName:  req.SoftwareName,
		LicenseKey:    req.LicenseKey,
		Notes:         req.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"license": toLicenseView(lic)})
}

func (h HandlerSet) RevokeLicense(c *gin.Context) {
	actor, _ := middleware.CurrentAccount(c)
	if err := h.directory.RevokeLicense(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
