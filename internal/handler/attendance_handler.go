package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoolkit/qr-attendance-api/internal/models"
	"github.com/schoolkit/qr-attendance-api/internal/service"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
	"github.com/schoolkit/qr-attendance-api/pkg/response"
)

// AttendanceHandler exposes check-in and attendance listing endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
	metrics *service.MetricsService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc *service.AttendanceService, metrics *service.MetricsService) *AttendanceHandler {
	return &AttendanceHandler{service: svc, metrics: metrics}
}

// Checkin godoc
// @Summary Redeem a scanned QR token
// @Description Classifies the scan by elapsed time since lesson start and records attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CheckinRequest true "Scanned token code"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /checkin [post]
func (h *AttendanceHandler) Checkin(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid checkin payload"))
		return
	}

	result, err := h.service.Redeem(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordCheckin(string(result.Record.Status))
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List attendance records visible to the caller
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param classId query string false "Filter by class"
// @Param subjectId query string false "Filter by subject"
// @Param date query string false "Filter by lesson day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter, err := attendanceFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	records, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Export godoc
// @Summary Export attendance records
// @Description Streams the caller's attendance view as CSV or PDF
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Param classId query string false "Filter by class"
// @Param subjectId query string false "Filter by subject"
// @Param date query string false "Filter by lesson day (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter, err := attendanceFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.service.Export(c.Request.Context(), claims, filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := "csv"
	if format == "pdf" {
		ext = "pdf"
	}
	filename := fmt.Sprintf("attendance-%s.%s", time.Now().UTC().Format("20060102-150405"), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

func attendanceFilterFromQuery(c *gin.Context) (models.AttendanceFilter, error) {
	filter := models.AttendanceFilter{
		ClassID:   c.Query("classId"),
		SubjectID: c.Query("subjectId"),
	}
	date, err := dateFromQuery(c)
	if err != nil {
		return filter, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	filter.Date = date
	return filter, nil
}
