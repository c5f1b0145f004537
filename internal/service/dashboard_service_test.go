package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolkit/qr-attendance-api/internal/dto"
	"github.com/schoolkit/qr-attendance-api/internal/models"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
)

type mockDashboardRepo struct {
	usersByRole    map[string]int
	classes        int
	subjects       int
	lessons        int
	teacherLoad    map[string]int
	studentClasses int
	studentToday   int
	studentTotal   int
	studentAttends int
}

func (m *mockDashboardRepo) CountUsersByRole(ctx context.Context, role string) (int, error) {
	return m.usersByRole[role], nil
}
func (m *mockDashboardRepo) CountClasses(ctx context.Context) (int, error)  { return m.classes, nil }
func (m *mockDashboardRepo) CountSubjects(ctx context.Context) (int, error) { return m.subjects, nil }
func (m *mockDashboardRepo) CountLessons(ctx context.Context) (int, error)  { return m.lessons, nil }
func (m *mockDashboardRepo) CountSubjectsByTeacher(ctx context.Context, teacherID string) (int, error) {
	return m.teacherLoad["subjects"], nil
}
func (m *mockDashboardRepo) CountTodayLessonsByTeacher(ctx context.Context, teacherID string, dayStart time.Time) (int, error) {
	return m.teacherLoad["today"], nil
}
func (m *mockDashboardRepo) CountStudentsByTeacher(ctx context.Context, teacherID string) (int, error) {
	return m.teacherLoad["students"], nil
}
func (m *mockDashboardRepo) CountClassesByStudent(ctx context.Context, studentID string) (int, error) {
	return m.studentClasses, nil
}
func (m *mockDashboardRepo) CountTodayLessonsByStudent(ctx context.Context, studentID string, dayStart time.Time) (int, error) {
	return m.studentToday, nil
}
func (m *mockDashboardRepo) CountLessonsForStudent(ctx context.Context, studentID string) (int, error) {
	return m.studentTotal, nil
}
func (m *mockDashboardRepo) CountAttendedByStudent(ctx context.Context, studentID string) (int, error) {
	return m.studentAttends, nil
}

func newDashboardService(repo dashboardRepository) *DashboardService {
	cache := NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	return NewDashboardService(repo, cache, time.Minute, zap.NewNop())
}

func TestAdminDashboard(t *testing.T) {
	repo := &mockDashboardRepo{
		usersByRole: map[string]int{"student": 120, "teacher": 8},
		classes:     5, subjects: 12, lessons: 340,
	}
	svc := newDashboardService(repo)

	out, err := svc.Get(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})
	require.NoError(t, err)
	resp, ok := out.(*dto.AdminDashboardResponse)
	require.True(t, ok)
	assert.Equal(t, 120, resp.TotalStudents)
	assert.Equal(t, 8, resp.TotalTeachers)
	assert.Equal(t, 340, resp.TotalLessons)
}

func TestTeacherDashboard(t *testing.T) {
	repo := &mockDashboardRepo{teacherLoad: map[string]int{"subjects": 3, "today": 2, "students": 60}}
	svc := newDashboardService(repo)

	out, err := svc.Get(context.Background(), &models.JWTClaims{UserID: "teach1", Role: models.RoleTeacher})
	require.NoError(t, err)
	resp, ok := out.(*dto.TeacherDashboardResponse)
	require.True(t, ok)
	assert.Equal(t, 3, resp.MySubjects)
	assert.Equal(t, 2, resp.TodayLessons)
	assert.Equal(t, 60, resp.TotalStudents)
}

func TestStudentDashboardAttendanceRate(t *testing.T) {
	repo := &mockDashboardRepo{studentClasses: 1, studentToday: 2, studentTotal: 2, studentAttends: 1}
	svc := newDashboardService(repo)

	out, err := svc.Get(context.Background(), &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	require.NoError(t, err)
	resp, ok := out.(*dto.StudentDashboardResponse)
	require.True(t, ok)
	assert.Equal(t, 50.0, resp.MyAttendanceRate)
}

func TestAttendanceRateRounding(t *testing.T) {
	assert.Equal(t, 0.0, attendanceRate(0, 0))
	assert.Equal(t, 0.0, attendanceRate(0, 10))
	assert.Equal(t, 100.0, attendanceRate(10, 10))
	assert.Equal(t, 33.33, attendanceRate(1, 3))
	assert.Equal(t, 66.67, attendanceRate(2, 3))
}

type mapCacheRepo struct {
	data map[string][]byte
}

func (m *mapCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mapCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *mapCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error { return nil }

func TestAdminDashboardServedFromCache(t *testing.T) {
	repo := &mockDashboardRepo{
		usersByRole: map[string]int{"student": 10, "teacher": 2},
		classes:     3,
	}
	cache := NewCacheService(&mapCacheRepo{data: map[string][]byte{}}, nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(repo, cache, time.Minute, zap.NewNop())
	claims := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}

	first, err := svc.Get(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, 10, first.(*dto.AdminDashboardResponse).TotalStudents)

	repo.usersByRole["student"] = 99

	second, err := svc.Get(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, 10, second.(*dto.AdminDashboardResponse).TotalStudents)
}

func TestDashboardCacheRollsOverAtMidnight(t *testing.T) {
	repo := &mockDashboardRepo{teacherLoad: map[string]int{"subjects": 2, "today": 3}}
	cache := NewCacheService(&mapCacheRepo{data: map[string][]byte{}}, nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(repo, cache, time.Minute, zap.NewNop())
	claims := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	evening := time.Date(2026, 3, 9, 23, 58, 0, 0, time.UTC)
	svc.now = func() time.Time { return evening }

	first, err := svc.Get(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, 3, first.(*dto.TeacherDashboardResponse).TodayLessons)

	repo.teacherLoad["today"] = 0
	svc.now = func() time.Time { return evening.Add(4 * time.Minute) }

	second, err := svc.Get(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, 0, second.(*dto.TeacherDashboardResponse).TodayLessons,
		"a new day must not be served yesterday's cached counters")
}
