package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/schoolkit/qr-attendance-api/internal/dto"
	"github.com/schoolkit/qr-attendance-api/internal/models"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
)

type dashboardRepository interface {
	CountUsersByRole(ctx context.Context, role string) (int, error)
	CountClasses(ctx context.Context) (int, error)
	CountSubjects(ctx context.Context) (int, error)
	CountLessons(ctx context.Context) (int, error)
	CountSubjectsByTeacher(ctx context.Context, teacherID string) (int, error)
	CountTodayLessonsByTeacher(ctx context.Context, teacherID string, dayStart time.Time) (int, error)
	CountStudentsByTeacher(ctx context.Context, teacherID string) (int, error)
	CountClassesByStudent(ctx context.Context, studentID string) (int, error)
	CountTodayLessonsByStudent(ctx context.Context, studentID string, dayStart time.Time) (int, error)
	CountLessonsForStudent(ctx context.Context, studentID string) (int, error)
	CountAttendedByStudent(ctx context.Context, studentID string) (int, error)
}

// DashboardService composes the role-scoped dashboard payloads.
type DashboardService struct {
	repo     dashboardRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewDashboardService creates an instance of DashboardService.
func NewDashboardService(repo dashboardRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the dashboard matching the caller's role.
func (s *DashboardService) Get(ctx context.Context, claims *models.JWTClaims) (interface{}, error) {
	switch claims.Role {
	case models.RoleAdmin:
		return s.adminDashboard(ctx)
	case models.RoleTeacher:
		return s.teacherDashboard(ctx, claims.UserID)
	case models.RoleStudent:
		return s.studentDashboard(ctx, claims.UserID)
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
}

func (s *DashboardService) adminDashboard(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	key := "dashboard:admin:" + s.day()
	var cached dto.AdminDashboardResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	var (
		resp dto.AdminDashboardResponse
		err  error
	)
	if resp.TotalStudents, err = s.repo.CountUsersByRole(ctx, string(models.RoleStudent)); err != nil {
		return nil, s.wrap(err)
	}
	if resp.TotalTeachers, err = s.repo.CountUsersByRole(ctx, string(models.RoleTeacher)); err != nil {
		return nil, s.wrap(err)
	}
	if resp.TotalClasses, err = s.repo.CountClasses(ctx); err != nil {
		return nil, s.wrap(err)
	}
	if resp.TotalSubjects, err = s.repo.CountSubjects(ctx); err != nil {
		return nil, s.wrap(err)
	}
	if resp.TotalLessons, err = s.repo.CountLessons(ctx); err != nil {
		return nil, s.wrap(err)
	}

	s.store(ctx, key, resp)
	return &resp, nil
}

func (s *DashboardService) teacherDashboard(ctx context.Context, teacherID string) (*dto.TeacherDashboardResponse, error) {
	key := "dashboard:teacher:" + teacherID + ":" + s.day()
	var cached dto.TeacherDashboardResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	var (
		resp dto.TeacherDashboardResponse
		err  error
	)
	if resp.MySubjects, err = s.repo.CountSubjectsByTeacher(ctx, teacherID); err != nil {
		return nil, s.wrap(err)
	}
	if resp.TodayLessons, err = s.repo.CountTodayLessonsByTeacher(ctx, teacherID, s.dayStart()); err != nil {
		return nil, s.wrap(err)
	}
	if resp.TotalStudents, err = s.repo.CountStudentsByTeacher(ctx, teacherID); err != nil {
		return nil, s.wrap(err)
	}

	s.store(ctx, key, resp)
	return &resp, nil
}

func (s *DashboardService) studentDashboard(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, error) {
	key := "dashboard:student:" + studentID + ":" + s.day()
	var cached dto.StudentDashboardResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	var (
		resp dto.StudentDashboardResponse
		err  error
	)
	if resp.MyClasses, err = s.repo.CountClassesByStudent(ctx, studentID); err != nil {
		return nil, s.wrap(err)
	}
	if resp.TodayLessons, err = s.repo.CountTodayLessonsByStudent(ctx, studentID, s.dayStart()); err != nil {
		return nil, s.wrap(err)
	}

	total, err := s.repo.CountLessonsForStudent(ctx, studentID)
	if err != nil {
		return nil, s.wrap(err)
	}
	attended, err := s.repo.CountAttendedByStudent(ctx, studentID)
	if err != nil {
		return nil, s.wrap(err)
	}
	resp.MyAttendanceRate = attendanceRate(attended, total)

	s.store(ctx, key, resp)
	return &resp, nil
}

// attendanceRate is the percentage of lessons attended (present or late),
// rounded to two decimal places. No lessons means a rate of zero.
func attendanceRate(attended, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(attended)/float64(total)*100*100) / 100
}

func (s *DashboardService) dayStart() time.Time {
	return s.now().Truncate(24 * time.Hour)
}

// day keys cached dashboards to the current UTC date so today's counters
// never outlive the day they were computed for.
func (s *DashboardService) day() string {
	return s.now().Format("2006-01-02")
}

func (s *DashboardService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard", zap.String("key", key), zap.Error(err))
	}
}

func (s *DashboardService) wrap(err error) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to build dashboard: %v", err))
}
