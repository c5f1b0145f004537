package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/schoolkit/qr-attendance-api/internal/models"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
	"github.com/schoolkit/qr-attendance-api/pkg/response"
)

// Operation names a single guarded API action. Authorization is a lookup
// in the capability table below rather than role checks scattered through
// handlers.
type Operation string

const (
	OpManageUsers    Operation = "users:manage"
	OpUpdateUser     Operation = "users:update"
	OpManageClasses  Operation = "classes:manage"
	OpListClasses    Operation = "classes:list"
	OpManageSubjects Operation = "subjects:manage"
	OpListSubjects   Operation = "subjects:list"
	OpCreateLesson   Operation = "lessons:create"
	OpListLessons    Operation = "lessons:list"
	OpDeleteLesson   Operation = "lessons:delete"
	OpViewOwnTokens  Operation = "tokens:view_own"
	OpViewToken      Operation = "tokens:view"
	OpCheckin        Operation = "attendance:checkin"
	OpViewAttendance Operation = "attendance:view"
	OpViewDashboard  Operation = "dashboard:view"
)

// capabilities is the single place mapping roles to the operations they
// may perform.
var capabilities = map[models.UserRole]map[Operation]struct{}{
	models.RoleAdmin: opSet(
		OpManageUsers,
		OpUpdateUser,
		OpManageClasses,
		OpListClasses,
		OpManageSubjects,
		OpListSubjects,
		OpCreateLesson,
		OpListLessons,
		OpDeleteLesson,
		OpViewToken,
		OpViewAttendance,
		OpViewDashboard,
	),
	models.RoleTeacher: opSet(
		OpUpdateUser,
		OpListClasses,
		OpListSubjects,
		OpCreateLesson,
		OpListLessons,
		OpDeleteLesson,
		OpCheckin,
		OpViewAttendance,
		OpViewDashboard,
	),
	models.RoleStudent: opSet(
		OpUpdateUser,
		OpListClasses,
		OpListLessons,
		OpViewOwnTokens,
		OpViewToken,
		OpViewAttendance,
		OpViewDashboard,
	),
}

func opSet(ops ...Operation) map[Operation]struct{} {
	set := make(map[Operation]struct{}, len(ops))
	for _, op := range ops {
		set[op] = struct{}{}
	}
	return set
}

// Allowed reports whether the role may perform the operation.
func Allowed(role models.UserRole, op Operation) bool {
	ops, ok := capabilities[role]
	if !ok {
		return false
	}
	_, ok = ops[op]
	return ok
}

// Authorize blocks callers whose role lacks the operation's capability.
func Authorize(op Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if !Allowed(claims.Role, op) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
