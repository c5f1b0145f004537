package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolkit/qr-attendance-api/internal/models"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
)

type mockLessonRepo struct {
	created *models.Lesson
	detail  *models.LessonDetail
	listed  []models.LessonDetail
	filter  models.LessonFilter
	deleted string
}

func (m *mockLessonRepo) FindByID(ctx context.Context, id string) (*models.LessonDetail, error) {
	if m.detail == nil {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

func (m *mockLessonRepo) List(ctx context.Context, filter models.LessonFilter) ([]models.LessonDetail, error) {
	m.filter = filter
	return m.listed, nil
}

func (m *mockLessonRepo) Create(ctx context.Context, lesson *models.Lesson) error {
	lesson.ID = "l1"
	m.created = lesson
	m.detail = &models.LessonDetail{Lesson: *lesson, TeacherID: "teach1"}
	return nil
}

func (m *mockLessonRepo) Delete(ctx context.Context, id string) error {
	m.deleted = id
	return nil
}

type mockSubjectLookup struct {
	subject *models.Subject
	classes []models.Class
}

func (m *mockSubjectLookup) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if m.subject == nil {
		return nil, sql.ErrNoRows
	}
	return m.subject, nil
}

func (m *mockSubjectLookup) ListClasses(ctx context.Context, subjectID string) ([]models.Class, error) {
	return m.classes, nil
}

type mockIssuer struct {
	lessonID string
	issued   int
}

func (m *mockIssuer) IssueForLesson(ctx context.Context, lessonID string) (int, error) {
	m.lessonID = lessonID
	return m.issued, nil
}

func newLessonFixture() (*mockLessonRepo, *mockIssuer, *LessonService) {
	repo := &mockLessonRepo{}
	subjects := &mockSubjectLookup{
		subject: &models.Subject{ID: "sub1", Name: "Math", TeacherID: "teach1"},
		classes: []models.Class{{ID: "c1", Name: "10A"}},
	}
	issuer := &mockIssuer{issued: 25}
	svc := NewLessonService(repo, subjects, issuer, validator.New(), zap.NewNop())
	return repo, issuer, svc
}

func validLessonRequest() CreateLessonRequest {
	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	return CreateLessonRequest{SubjectID: "sub1", ClassID: "c1", StartTime: start, EndTime: start.Add(time.Hour)}
}

func TestCreateLessonIssuesTokens(t *testing.T) {
	repo, issuer, svc := newLessonFixture()

	detail, err := svc.Create(context.Background(), teacherClaims("teach1"), validLessonRequest())
	require.NoError(t, err)
	assert.Equal(t, "l1", detail.ID)
	assert.Equal(t, "l1", issuer.lessonID)
	require.NotNil(t, repo.created)
	assert.True(t, repo.created.StartTime.Before(repo.created.EndTime))
}

func TestCreateLessonRejectsInvertedTimes(t *testing.T) {
	_, _, svc := newLessonFixture()

	req := validLessonRequest()
	req.EndTime = req.StartTime.Add(-time.Hour)
	_, err := svc.Create(context.Background(), teacherClaims("teach1"), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req.EndTime = req.StartTime
	_, err = svc.Create(context.Background(), teacherClaims("teach1"), req)
	require.Error(t, err)
}

func TestCreateLessonForeignSubject(t *testing.T) {
	_, issuer, svc := newLessonFixture()

	_, err := svc.Create(context.Background(), teacherClaims("other"), validLessonRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, issuer.lessonID)
}

func TestCreateLessonClassNotAssigned(t *testing.T) {
	_, _, svc := newLessonFixture()

	req := validLessonRequest()
	req.ClassID = "unassigned"
	_, err := svc.Create(context.Background(), teacherClaims("teach1"), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestListLessonsScopesToCaller(t *testing.T) {
	repo, _, svc := newLessonFixture()

	_, err := svc.List(context.Background(), &models.JWTClaims{UserID: "teach1", Role: models.RoleTeacher}, nil)
	require.NoError(t, err)
	assert.Equal(t, "teach1", repo.filter.TeacherID)

	_, err = svc.List(context.Background(), &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}, nil)
	require.NoError(t, err)
	assert.Equal(t, "s1", repo.filter.StudentID)
}

func TestDeleteLessonForeignTeacher(t *testing.T) {
	repo, _, svc := newLessonFixture()
	repo.detail = &models.LessonDetail{Lesson: models.Lesson{ID: "l1"}, TeacherID: "teach1"}

	err := svc.Delete(context.Background(), teacherClaims("other"), "l1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)

	require.NoError(t, svc.Delete(context.Background(), teacherClaims("teach1"), "l1"))
	assert.Equal(t, "l1", repo.deleted)
}
