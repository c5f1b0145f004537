package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolkit/qr-attendance-api/internal/service"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
	"github.com/schoolkit/qr-attendance-api/pkg/response"
)

// TokenHandler exposes the student-facing QR token endpoints.
type TokenHandler struct {
	service *service.TokenService
}

// NewTokenHandler creates a new handler.
func NewTokenHandler(svc *service.TokenService) *TokenHandler {
	return &TokenHandler{service: svc}
}

// ListMine godoc
// @Summary List the caller's QR codes
// @Description Returns the student's tokens with rendered QR images
// @Tags Tokens
// @Produce json
// @Security BearerAuth
// @Param date query string false "Filter by lesson day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /my-qr-codes [get]
func (h *TokenHandler) ListMine(c *gin.Context) {
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

	tokens, err := h.service.ListMine(c.Request.Context(), claims.UserID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tokens, nil)
}

// Get godoc
// @Summary Get one QR code
// @Tags Tokens
// @Produce json
// @Security BearerAuth
// @Param id path string true "Token ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /qr-codes/{id} [get]
func (h *TokenHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	token, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, token, nil)
}
