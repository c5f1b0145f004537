package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolkit/qr-attendance-api/internal/service"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
	"github.com/schoolkit/qr-attendance-api/pkg/response"
)

// LessonHandler exposes lesson scheduling endpoints.
type LessonHandler struct {
	service *service.LessonService
}

// NewLessonHandler creates a new handler.
func NewLessonHandler(svc *service.LessonService) *LessonHandler {
	return &LessonHandler{service: svc}
}

// List godoc
// @Summary List lessons visible to the caller
// @Description Admins see all lessons, teachers their own subjects, students their classes
// @Tags Lessons
// @Produce json
// @Security BearerAuth
// @Param date query string false "Filter by calendar day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	date, err := dateFromQuery(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}

	lessons, err := h.service.List(c.Request.Context(), claims, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, nil)
}

// Get godoc
// @Summary Get a lesson
// @Tags Lessons
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	lesson, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Create godoc
// @Summary Schedule a lesson
// @Description Creates the lesson and issues one QR token per enrolled student
// @Tags Lessons
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateLessonRequest true "Create lesson payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid create lesson payload"))
		return
	}

	lesson, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// Delete godoc
// @Summary Delete a lesson
// @Tags Lessons
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lesson ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
