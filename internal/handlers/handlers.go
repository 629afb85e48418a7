package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"licensedesk/api/internal/authz"
	"licensedesk/api/internal/config"
	"licensedesk/api/internal/middleware"
	"licensedesk/api/internal/repository"
	"licensedesk/api/internal/service"
	"licensedesk/api/internal/storage"
)

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	auth         *service.AuthService
	directory    *service.DirectoryService
	sessions     *service.SessionStore
	accounts     *repository.AccountRepository
	licenseTypes *repository.LicenseTypeRepository
	audit        *repository.AuditRepository
	db           *pgxpool.Pool
	cache        *redis.Client
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	timeout := cfg.Postgres.QueryTimeout

	accountRepo := repository.NewAccountRepository(db, timeout)
	sessionRepo := repository.NewSessionRepository(db, timeout)
	employeeRepo := repository.NewEmployeeRepository(db, timeout)
	licenseRepo := repository.NewLicenseRepository(db, timeout)
	licenseTypeRepo := repository.NewLicenseTypeRepository(db, timeout)
	auditRepo := repository.NewAuditRepository(db, timeout)

	sessions := service.NewSessionStore(sessionRepo, cfg.Security.SessionTTL, log)
	auth := service.NewAuthService(accountRepo, sessions, cache, cfg, log)
	directory := service.NewDirectoryService(employeeRepo, licenseRepo, licenseTypeRepo, store, cfg, log)

	return HandlerSet{
		log:          log,
		cfg:          cfg,
		auth:         auth,
		directory:    directory,
		sessions:     sessions,
		accounts:     accountRepo,
		licenseTypes: licenseTypeRepo,
		audit:        auditRepo,
		db:           db,
		cache:        cache,
	}
}

// Sessions exposes the session store so the scheduler shares the same
// instance the middleware uses.
func (h HandlerSet) Sessions() *service.SessionStore { return h.sessions }

// LicenseTypes exposes the license-type repository for the icon sweep job.
func (h HandlerSet) LicenseTypes() *repository.LicenseTypeRepository { return h.licenseTypes }

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	router.POST("/login", h.Login)
	router.POST("/logout", h.Logout)

	// Icon bodies are public; the keys are unguessable object names.
	router.GET("/license-types/icons/:object", h.LicenseTypeIcon)

	authed := router.Group("")
	authed.Use(middleware.Auth(h.cfg.Security.SessionCookie, h.sessions, h.accounts))

	auth := authed.Group("/auth")
	auth.GET("/me", h.Me)
	auth.POST("/change-password", h.ChangePassword)
	auth.POST("/reset-password", h.ResetPassword)
	auth.GET("/admins", middleware.Authorize(authz.ActionViewAccounts), h.ListAdmins)
	auth.POST("/admins", middleware.Authorize(authz.ActionManageAccounts), h.CreateAdmin)
	auth.DELETE("/admins/:id", middleware.Authorize(authz.ActionManageAccounts), h.DeleteAdmin)
	auth.POST("/transfer-ownership", middleware.Authorize(authz.ActionTransferOwnership), h.TransferOwnership)

	authed.GET("/audit/logs", middleware.Authorize(authz.ActionViewAuditLog), h.AuditLogs)

	users := authed.Group("/users")
	users.GET("", middleware.Authorize(authz.ActionViewDirectory), h.ListUsers)
	users.GET("/:id", middleware.Authorize(authz.ActionViewDirectory), h.GetUser)
	users.POST("", middleware.Authorize(authz.ActionManageEmployees), h.CreateUser)
	users.PUT("/:id", middleware.Authorize(authz.ActionManageEmployees), h.UpdateUser)
	users.DELETE("/:id", middleware.Authorize(authz.ActionManageEmployees), h.DeleteUser)

	licenses := authed.Group("/licenses")
	licenses.GET("", middleware.Authorize(authz.ActionViewDirectory), h.ListLicenses)
	licenses.POST("", middleware.Authorize(authz.ActionManageLicenses), h.AssignLicense)
	licenses.DELETE("/:id", middleware.Authorize(authz.ActionManageLicenses), h.RevokeLicense)

	licenseTypes := authed.Group("/license-types")
	licenseTypes.GET("", middleware.Authorize(authz.ActionViewDirectory), h.ListLicenseTypes)
	licenseTypes.POST("", middleware.Authorize(authz.ActionManageLicenseTypes), h.CreateLicenseType)
	licenseTypes.DELETE("/:id", middleware.Authorize(authz.ActionManageLicenseTypes), h.DeleteLicenseType)
}
