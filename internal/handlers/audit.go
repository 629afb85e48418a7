package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"licensedesk/api/internal/models"
)

const (
	auditDefaultLimit = 100
	auditMaxLimit     = 500
)

type auditView struct {
	ID          string    `json:"id"`
	ActionType  string    `json:"action_type"`
	PerformedBy string    `json:"performed_by"`
	Target      string    `json:"target"`
	Details     string    `json:"details"`
	Timestamp   time.Time `json:"timestamp"`
}

func toAuditView(entry models.AuditLog) auditView {
	return auditView{
		ID:          entry.ID,
		ActionType:  entry.Action,
		PerformedBy: entry.PerformedBy,
		Target:      entry.Target,
		Details:     entry.Details,
		Timestamp:   entry.CreatedAt,
	}
}

func (h HandlerSet) AuditLogs(c *gin.Context) {
	limit := auditDefaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	if limit > auditMaxLimit {
		limit = auditMaxLimit
	}

	entries, err := h.audit.List(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	views := make([]auditView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, toAuditView(entry))
	}
	c.JSON(http.StatusOK, gin.H{"logs": views})
}
