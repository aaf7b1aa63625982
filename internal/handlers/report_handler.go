package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/psych-report/backend/internal/middleware"
	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/report"
	"github.com/psych-report/backend/internal/services"
)

const dateLayout = "2006-01-02"

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

type clientRequest struct {
	FirstName string           `json:"first_name" binding:"required"`
	LastName  string           `json:"last_name"`
	Gender    string           `json:"gender"`
	Pronouns  *report.Pronouns `json:"pronouns"`
}

func (r clientRequest) client() report.Client {
	return report.Client{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Gender:    r.Gender,
		Pronouns:  r.Pronouns,
	}
}

type renderRequest struct {
	Client                  clientRequest           `json:"client"`
	TestDate                string                  `json:"test_date"`
	Extraction              models.ExtractionResult `json:"extraction"`
	AllowFallbackDescriptor *bool                   `json:"allow_fallback_descriptor"`
}

// parseDate accepts YYYY-MM-DD; an empty string is the zero time.
func parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

// Render godoc
// @Summary Render report sections for an extraction result
// @Tags reports
// @Accept json
// @Produce json
// @Param X-User-ID header string true "owner id"
// @Success 200 {object} report.Composition
// @Router /api/v1/reports/render [post]
func (h *ReportHandler) Render(c *gin.Context) {
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	testDate, err := parseDate(req.TestDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "test_date must be YYYY-MM-DD"})
		return
	}

	out, err := h.reports.Render(c.Request.Context(), middleware.OwnerID(c), services.RenderInput{
		Client:                  req.Client.client(),
		TestDate:                testDate,
		Extraction:              req.Extraction,
		AllowFallbackDescriptor: req.AllowFallbackDescriptor,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, out)
}

// Preview renders arbitrary template content with caller-supplied values.
func (h *ReportHandler) Preview(c *gin.Context) {
	var req struct {
		Content string            `json:"template_content" binding:"required"`
		Values  map[string]string `json:"values"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"content": h.reports.Preview(req.Content, req.Values)})
}

func (h *ReportHandler) MatchTemplate(c *gin.Context) {
	name := c.Query("test_name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "test_name is required"})
		return
	}

	tmpl, err := h.reports.MatchTemplate(c.Request.Context(), middleware.OwnerID(c), name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"matched": tmpl != nil, "template": tmpl})
}

func (h *ReportHandler) ResolveTest(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	res, err := h.reports.ResolveTest(c.Request.Context(), middleware.OwnerID(c), name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// ResolveDescriptor explains which cascade tier labels a single score.
func (h *ReportHandler) ResolveDescriptor(c *gin.Context) {
	var req struct {
		Score                   models.ExtractedScore `json:"score"`
		AllowFallbackDescriptor *bool                 `json:"allow_fallback_descriptor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.reports.ExplainDescriptor(c.Request.Context(), middleware.OwnerID(c), req.Score, req.AllowFallbackDescriptor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
