package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/psych-report/backend/internal/middleware"
)

type Handlers struct {
	Reports     *ReportHandler
	Catalog     *CatalogHandler
	Assessments *AssessmentHandler
	Audit       *AuditHandler
}

// Register mounts the owner-scoped API under rg.
func (h Handlers) Register(rg *gin.RouterGroup) {
	api := rg.Group("")
	api.Use(middleware.OwnerMiddleware())

	api.POST("/reports/render", h.Reports.Render)

	api.GET("/templates", h.Catalog.ListTemplates)
	api.POST("/templates", h.Catalog.CreateTemplate)
	api.DELETE("/templates/:id", h.Catalog.DeleteTemplate)
	api.POST("/templates/preview", h.Reports.Preview)
	api.GET("/templates/match", h.Reports.MatchTemplate)

	api.GET("/test-definitions", h.Catalog.ListDefinitions)
	api.POST("/test-definitions", h.Catalog.CreateDefinition)
	api.GET("/test-definitions/resolve", h.Reports.ResolveTest)
	api.GET("/test-definitions/:id", h.Catalog.GetDefinition)

	api.GET("/descriptor-rules", h.Catalog.ListRules)
	api.POST("/descriptor-rules", h.Catalog.CreateRule)
	api.POST("/descriptor-rules/resolve", h.Reports.ResolveDescriptor)
	api.DELETE("/descriptor-rules/:id", h.Catalog.DeleteRule)

	api.POST("/assessments", h.Assessments.Create)
	api.GET("/assessments/:id", h.Assessments.Get)

	api.GET("/audit/recent", h.Audit.GetRecentActivity)
}
