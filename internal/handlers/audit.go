package handlers

import (
	"net/http"

	"chantier-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	Responder
	audit *services.AuditLogger
}

func NewAuditHandler(r Responder, audit *services.AuditLogger) *AuditHandler {
	return &AuditHandler{Responder: r, audit: audit}
}

func (h *AuditHandler) List(c *gin.Context) {
	f := services.AuditFilter{Entity: c.Query("entity")}
	if !queryUint(c, "entity_id", &f.EntityID) ||
		!queryUint(c, "user_id", &f.UserID) ||
		!queryInt(c, "limit", &f.Limit) {
		return
	}
	logs, err := h.audit.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs})
}
