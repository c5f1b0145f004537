package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoolkit/qr-attendance-api/internal/middleware"
	"github.com/schoolkit/qr-attendance-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// dateFromQuery parses the optional ?date=YYYY-MM-DD filter.
func dateFromQuery(c *gin.Context) (*time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
