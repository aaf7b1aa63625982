package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/psych-report/backend/internal/middleware"
	"github.com/psych-report/backend/internal/services"
)

type AuditHandler struct {
	audit *services.AuditService
}

func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// GetRecentActivity godoc
// @Summary Recent test bank changes for the caller
// @Tags audit
// @Param limit query int false "max entries (default 20, max 100)"
// @Success 200 {array} models.AuditLog
// @Router /api/v1/audit/recent [get]
func (h *AuditHandler) GetRecentActivity(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		limit = 20
	}

	activities, err := h.audit.Recent(c.Request.Context(), middleware.OwnerID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, activities)
}
