package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolkit/qr-attendance-api/internal/service"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
	"github.com/schoolkit/qr-attendance-api/pkg/response"
)

// DashboardHandler serves the role-scoped dashboard.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Get godoc
// @Summary Dashboard counters for the caller's role
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dashboard, err := h.service.Get(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}
