package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"licensedesk/api/internal/repository"
	"licensedesk/api/internal/service"
	"licensedesk/api/internal/storage"
)

func (h HandlerSet) respondError(c *gin.Context, err error) {
	status := errStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrRoleInvalid),
		errors.Is(err, service.ErrCannotDeleteOwner),
		errors.Is(err, service.ErrTargetNotAdmin):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrDuplicateUsername),
		errors.Is(err, repository.ErrDuplicateEmail),
		errors.Is(err, repository.ErrDuplicateLicenseTypeName),
		errors.Is(err, repository.ErrLicenseTypeInUse),
		errors.Is(err, repository.ErrRoleConflict):
		return http.StatusConflict
	case errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrEmployeeNotFound),
		errors.Is(err, repository.ErrLicenseNotFound),
		errors.Is(err, repository.ErrLicenseTypeNotFound),
		errors.Is(err, storage.ErrIconNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
