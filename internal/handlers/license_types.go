package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"licensedesk/api/internal/middleware"
	"licensedesk/api/internal/models"
)

type licenseTypeView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IconURL   *string   `json:"icon_url"`
	CreatedAt time.Time `json:"created_at"`
}

func toLicenseTypeView(lt models.LicenseType) licenseTypeView {
	view := licenseTypeView{
		ID:        lt.ID,
		Name:      lt.Name,
		CreatedAt: lt.CreatedAt,
	}
	if lt.IconObject != nil {
		url := "/license-types/icons/" + *lt.IconObject
		view.IconURL = &url
	}
	return view
}

func (h HandlerSet) ListLicenseTypes(c *gin.Context) {
	types, err := h.directory.ListLicenseTypes(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	views := make([]licenseTypeView, 0, len(types))
	for _, lt := range types {
		views = append(views, toLicenseTypeView(lt))
	}
	c.JSON(http.StatusOK, gin.H{"license_types": views})
}

// CreateLicenseType accepts multipart form data so an icon can ride along
// with the name, or a plain JSON body when there is no icon.
func (h HandlerSet) CreateLicenseType(c *gin.Context) {
	var name string
	var icon []byte

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		name = req.Name
	} else {
		name = c.PostForm("name")
	}

	if file, err := c.FormFile("icon"); err == nil {
		if file.Size > h.cfg.Security.MaxIconBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "icon exceeds size limit"})
			return
		}
		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read icon"})
			return
		}
		defer src.Close()
		icon, err = io.ReadAll(io.LimitReader(src, h.cfg.Security.MaxIconBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read icon"})
			return
		}
	}

	actor, _ := middleware.CurrentAccount(c)
	lt, err := h.directory.CreateLicenseType(c.Request.Context(), actor, name, icon)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"license_type": toLicenseTypeView(lt)})
}

func (h HandlerSet) DeleteLicenseType(c *gin.Context) {
	actor, _ := middleware.CurrentAccount(c)
	if err := h.directory.DeleteLicenseType(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h HandlerSet) LicenseTypeIcon(c *gin.Context) {
	body, contentType, size, err := h.directory.GetIcon(c.Request.Context(), c.Param("object"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer body.Close()

	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, size, contentType, body, nil)
}
