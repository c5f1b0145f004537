package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/schoolkit/qr-attendance-api/internal/models"
)

func performWithClaims(t *testing.T, claims *models.JWTClaims, op Operation) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	_, router := gin.CreateTestContext(w)
	router.GET("/guarded", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, Authorize(op), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	router.ServeHTTP(w, req)
	return w
}

func TestAuthorizeByCapability(t *testing.T) {
	cases := []struct {
		name string
		role models.UserRole
		op   Operation
		want int
	}{
		{"admin manages users", models.RoleAdmin, OpManageUsers, http.StatusOK},
		{"teacher cannot manage users", models.RoleTeacher, OpManageUsers, http.StatusForbidden},
		{"student cannot manage users", models.RoleStudent, OpManageUsers, http.StatusForbidden},
		{"teacher checks in", models.RoleTeacher, OpCheckin, http.StatusOK},
		{"admin cannot check in", models.RoleAdmin, OpCheckin, http.StatusForbidden},
		{"student cannot check in", models.RoleStudent, OpCheckin, http.StatusForbidden},
		{"student views own tokens", models.RoleStudent, OpViewOwnTokens, http.StatusOK},
		{"teacher cannot view student tokens", models.RoleTeacher, OpViewOwnTokens, http.StatusForbidden},
		{"student reads classes", models.RoleStudent, OpListClasses, http.StatusOK},
		{"student cannot manage classes", models.RoleStudent, OpManageClasses, http.StatusForbidden},
		{"student updates own profile", models.RoleStudent, OpUpdateUser, http.StatusOK},
		{"everyone views dashboard", models.RoleStudent, OpViewDashboard, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := performWithClaims(t, &models.JWTClaims{UserID: "u1", Role: tc.role}, tc.op)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAuthorizeMissingClaims(t *testing.T) {
	w := performWithClaims(t, nil, OpViewDashboard)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAllowedUnknownRole(t *testing.T) {
	assert.False(t, Allowed("principal", OpViewDashboard))
}
