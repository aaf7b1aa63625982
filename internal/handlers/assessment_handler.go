package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psych-report/backend/internal/middleware"
	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/services"
)

type AssessmentHandler struct {
	assessments *services.AssessmentService
}

func NewAssessmentHandler(assessments *services.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// Create godoc
// @Summary Save an assessment and learn from its scores
// @Description Learning failures are reported in the summary and never fail the request.
// @Tags assessments
// @Accept json
// @Produce json
// @Param X-User-ID header string true "owner id"
// @Success 201 {object} services.SaveAssessmentResult
// @Router /api/v1/assessments [post]
func (h *AssessmentHandler) Create(c *gin.Context) {
	var req struct {
		Client     clientRequest           `json:"client"`
		TestDate   string                  `json:"test_date"`
		Extraction models.ExtractionResult `json:"extraction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	testDate, err := parseDate(req.TestDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "test_date must be YYYY-MM-DD"})
		return
	}

	res, err := h.assessments.Save(c.Request.Context(), middleware.OwnerID(c), services.SaveAssessmentInput{
		ClientFirstName: req.Client.FirstName,
		ClientLastName:  req.Client.LastName,
		ClientGender:    req.Client.Gender,
		TestDate:        testDate,
		Extraction:      req.Extraction,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *AssessmentHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a, err := h.assessments.Get(c.Request.Context(), middleware.OwnerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
