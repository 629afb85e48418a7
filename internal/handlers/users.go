package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"licensedesk/api/internal/middleware"
	"licensedesk/api/internal/models"
	"licensedesk/api/internal/service"
)

type userView struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	Title      string        `json:"title"`
	Department string        `json:"department"`
	Manager    string        `json:"manager"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Licenses   []licenseView `json:"licenses"`
}

func toUserView(e service.EmployeeWithLicenses) userView {
	licenses := make([]licenseView, 0, len(e.Licenses))
	for _, lic := range e.Licenses {
		licenses = append(licenses, toLicenseView(lic))
	}
	return userView{
		ID:         e.ID,
		Name:       e.Name,
		Email:      e.Email,
		Title:      e.Title,
		Department: e.Department,
		Manager:    e.Manager,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
		Licenses:   licenses,
	}
}

func (h HandlerSet) ListUsers(c *gin.Context) {
	employees, err := h.directory.ListEmployees(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	views := make([]userView, 0, len(employees))
	for _, emp := range employees {
		views = append(views, toUserView(emp))
	}
	c.JSON(http.StatusOK, gin.H{"users": views})
}

func (h HandlerSet) GetUser(c *gin.Context) {
	emp, err := h.directory.GetEmployee(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserView(emp)})
}

func (h HandlerSet) CreateUser(c *gin.Context) {
	var req struct {
		Name       string `json:"name" binding:"required"`
		Email      string `json:"email" binding:"required"`
		Title      string `json:"title"`
		Department string `json:"department"`
		Manager    string `json:"manager"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and email are required"})
		return
	}

	actor, _ := middleware.CurrentAccount(c)
	emp, err := h.directory.CreateEmployee(c.Request.Context(), actor, service.EmployeeInput{
		Name:       req.Name,
		Email:      req.Email,
		Title:      req.Title,
		Department: req.Department,
		Manager:    req.Manager,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": toUserView(service.EmployeeWithLicenses{Employee: emp, Licenses: []models.License{}})})
}

func (h HandlerSet) UpdateUser(c *gin.Context) {
	var req struct {
		Name       *string `json:"name"`
		Email      *string `json:"email"`
		Title      *string `json:"title"`
		Department *string `json:"department"`
		Manager    *string `json:"manager"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	actor, _ := middleware.CurrentAccount(c)
	emp, err := h.directory.UpdateEmployee(c.Request.Context(), actor, c.Param("id"), service.EmployeeUpdate{
		Name:       req.Name,
		Email:      req.Email,
		Title:      req.Title,
		Department: req.Department,
		Manager:    req.Manager,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	full, err := h.directory.GetEmployee(c.Request.Context(), emp.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserView(full)})
}

func (h HandlerSet) DeleteUser(c *gin.Context) {
	actor, _ := middleware.CurrentAccount(c)
	licensesDeleted, err := h.directory.DeleteEmployee(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "licenses_deleted": licensesDeleted})
}
