package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"licensedesk/api/internal/middleware"
	"licensedesk/api/internal/models"
)

type accountView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccountView(a models.Account) accountView {
	return accountView{
		ID:        a.ID,
		Username:  a.Username,
		Role:      string(a.Role),
		CreatedAt: a.CreatedAt,
	}
}

func (h HandlerSet) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	secure := h.cfg.Environment == "production"
	c.SetCookie(h.cfg.Security.SessionCookie, token, 0, "/", "", secure, true)
}

func (h HandlerSet) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	secure := h.cfg.Environment == "production"
	c.SetCookie(h.cfg.Security.SessionCookie, "", -1, "/", "", secure, true)
}

func (h HandlerSet) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setSessionCookie(c, result.Token)
	c.JSON(http.StatusOK, gin.H{"user": toAccountView(result.Account)})
}

func (h HandlerSet) Logout(c *gin.Context) {
	if token, err := c.Cookie(h.cfg.Security.SessionCookie); err == nil && token != "" {
		if err := h.auth.Logout(c.Request.Context(), token); err != nil {
			h.log.Warn().Err(err).Msg("logout cleanup failed")
		}
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (h HandlerSet) Me(c *gin.Context) {
	account, _ := middleware.CurrentAccount(c)
	c.JSON(http.StatusOK, gin.H{"user": toAccountView(account)})
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current_password and new_password are required"})
		return
	}

	actor, _ := middleware.CurrentAccount(c)
	token := middleware.SessionToken(c)
	if err := h.auth.ChangePassword(c.Request.Context(), actor, token, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_changed"})
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req struct {
		Username    string `json:"username" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and new_password are required"})
		return
	}

	actor, _ := middleware.CurrentAccount(c)
	if err := h.auth.ResetPassword(c.Request.Context(), actor, req.Username, req.NewPassword); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_reset"})
}

func (h HandlerSet) ListAdmins(c *gin.Context) {
	actor, _ := middleware.CurrentAccount(c)
	accounts, err := h.auth.ListAccounts(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	views := make([]accountView, 0, len(accounts))
	for i := range accounts {
		views = append(views, toAccountView(accounts[i]))
	}
	c.JSON(http.StatusOK, gin.H{"admins": views})
}

func (h HandlerSet) CreateAdmin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, password and role are required"})
		return
	}

	actor, _ := middleware.CurrentAccount(c)
	account, err := h.auth.CreateAccount(c.Request.Context(), actor, req.Username, req.Password, models.Role(req.Role))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"admin": toAccountView(account)})
}

func (h HandlerSet) DeleteAdmin(c *gin.Context) {
	actor, _ := middleware.CurrentAccount(c)
	if err := h.auth.DeleteAccount(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h HandlerSet) TransferOwnership(c *gin.Context) {
	var req struct {
		NewOwnerUsername string `json:"new_owner_username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new_owner_username is required"})
		return
	}

	actor, _ := middleware.CurrentAccount(c)
	token := middleware.SessionToken(c)
	if err := h.auth.TransferOwnership(c.Request.Context(), actor, token, req.NewOwnerUsername); err != nil {
		h.respondError(c, err)
		return
	}

	// The caller's sessions are gone once ownership moves.
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "ownership_transferred", "logout_required": true})
}
