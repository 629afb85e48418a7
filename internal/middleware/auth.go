package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"licensedesk/api/internal/models"
	"licensedesk/api/internal/service"
)

const (
	// Context keys set for handlers downstream of Auth.
	CtxAccount      = "current_account"
	CtxSessionToken = "session_token"
)

type accountGetter interface {
	GetByID(ctx context.Context, id string) (models.Account, error)
}

// Auth resolves the session cookie into an account. Each successful lookup
// slides the session's expiry window; the identity lives in the request
// context only, never in process-wide state.
func Auth(cookieName string, sessions *service.SessionStore, accounts accountGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		session, err := sessions.Touch(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired or invalid"})
			return
		}

		account, err := accounts.GetByID(c.Request.Context(), session.AccountID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
			return
		}

		c.Set(CtxAccount, account)
		c.Set(CtxSessionToken, token)

		c.Next()
	}
}

// CurrentAccount returns the authenticated account placed by Auth.
func CurrentAccount(c *gin.Context) (models.Account, bool) {
	val, exists := c.Get(CtxAccount)
	if !exists {
		return models.Account{}, false
	}
	account, ok := val.(models.Account)
	return account, ok
}

// SessionToken returns the raw cookie token placed by Auth.
func SessionToken(c *gin.Context) string {
	val, exists := c.Get(CtxSessionToken)
	if !exists {
		return ""
	}
	token, _ := val.(string)
	return token
}
