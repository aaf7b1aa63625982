package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psych-report/backend/internal/middleware"
	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/services"
)

// CatalogHandler serves the owner's test definitions, report templates and
// descriptor rules.
type CatalogHandler struct {
	catalog *services.CatalogService
}

func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) ListDefinitions(c *gin.Context) {
	defs, err := h.catalog.ListDefinitions(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, defs)
}

func (h *CatalogHandler) GetDefinition(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	def, err := h.catalog.GetDefinition(c.Request.Context(), middleware.OwnerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// CreateDefinition godoc
// @Summary Create a curated test definition
// @Description Alias collisions with existing definitions are returned as warnings and do not block creation.
// @Tags test-definitions
// @Accept json
// @Produce json
// @Param X-User-ID header string true "owner id"
// @Param definition body services.DefinitionInput true "definition"
// @Success 201 {object} map[string]interface{}
// @Router /api/v1/test-definitions [post]
func (h *CatalogHandler) CreateDefinition(c *gin.Context) {
	var req services.DefinitionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	def, warnings, err := h.catalog.CreateDefinition(c.Request.Context(), middleware.OwnerID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"definition": def, "warnings": warnings})
}

func (h *CatalogHandler) ListTemplates(c *gin.Context) {
	set, err := h.catalog.ListTemplates(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (h *CatalogHandler) CreateTemplate(c *gin.Context) {
	var tmpl models.ReportTemplate
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.catalog.CreateTemplate(c.Request.Context(), middleware.OwnerID(c), &tmpl); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tmpl)
}

// DeleteTemplate removes one of the owner's personal templates. System
// templates cannot be deleted and report 404.
func (h *CatalogHandler) DeleteTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.catalog.DeleteTemplate(c.Request.Context(), middleware.OwnerID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}

func (h *CatalogHandler) ListRules(c *gin.Context) {
	rules, err := h.catalog.ListRules(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *CatalogHandler) CreateRule(c *gin.Context) {
	var rule models.ScoreDescriptorRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.catalog.CreateRule(c.Request.Context(), middleware.OwnerID(c), &rule); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

func (h *CatalogHandler) DeleteRule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.catalog.DeleteRule(c.Request.Context(), middleware.OwnerID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Descriptor rule deleted"})
}
