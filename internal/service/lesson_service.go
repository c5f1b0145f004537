package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolkit/qr-attendance-api/internal/models"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
)

type lessonRepository interface {
	FindByID(ctx context.Context, id string) (*models.LessonDetail, error)
	List(ctx context.Context, filter models.LessonFilter) ([]models.LessonDetail, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) error
}

type lessonSubjectLookup interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ListClasses(ctx context.Context, subjectID string) ([]models.Class, error)
}

type lessonTokenIssuer interface {
	IssueForLesson(ctx context.Context, lessonID string) (int, error)
}

// CreateLessonRequest schedules a session of a subject for one class.
type CreateLessonRequest struct {
	SubjectID string    `json:"subject_id" validate:"required"`
	ClassID   string    `json:"class_id" validate:"required"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

// LessonService schedules lessons and triggers token issuance for them.
type LessonService struct {
	repo      lessonRepository
	subjects  lessonSubjectLookup
	issuer    lessonTokenIssuer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService creates an instance of LessonService.
func NewLessonService(repo lessonRepository, subjects lessonSubjectLookup, issuer lessonTokenIssuer, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LessonService{repo: repo, subjects: subjects, issuer: issuer, validator: validate, logger: logger}
}

// List returns lessons scoped to the caller: admins see everything,
// teachers their own subjects' lessons, students their classes' lessons.
func (s *LessonService) List(ctx context.Context, claims *models.JWTClaims, date *time.Time) ([]models.LessonDetail, error) {
	filter := models.LessonFilter{Date: date}
	switch claims.Role {
	case models.RoleTeacher:
		filter.TeacherID = claims.UserID
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	}

	lessons, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// Get returns a lesson with its subject, class and teacher metadata.
func (s *LessonService) Get(ctx context.Context, id string) (*models.LessonDetail, error) {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

// Create schedules a lesson and immediately issues one redemption token
// per enrolled student. A teacher may only schedule their own subjects.
func (s *LessonService) Create(ctx context.Context, claims *models.JWTClaims, req CreateLessonRequest) (*models.LessonDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create lesson payload")
	}
	if !req.StartTime.Before(req.EndTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	if claims.Role == models.RoleTeacher && subject.TeacherID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "subject belongs to another teacher")
	}

	classes, err := s.subjects.ListClasses(ctx, req.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject classes")
	}
	assigned := false
	for _, c := range classes {
		if c.ID == req.ClassID {
			assigned = true
			break
		}
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class is not assigned to the subject")
	}

	lesson := &models.Lesson{
		SubjectID: req.SubjectID,
		ClassID:   req.ClassID,
		StartTime: req.StartTime.UTC(),
		EndTime:   req.EndTime.UTC(),
	}
	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}

	issued, err := s.issuer.IssueForLesson(ctx, lesson.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue lesson tokens")
	}
	s.logger.Info("lesson scheduled",
		zap.String("lesson_id", lesson.ID),
		zap.String("subject_id", lesson.SubjectID),
		zap.Int("tokens_issued", issued),
	)

	return s.Get(ctx, lesson.ID)
}

// Delete removes a lesson together with its tokens and attendance rows.
// A teacher may only delete lessons of their own subjects.
func (s *LessonService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}

	if claims.Role == models.RoleTeacher && lesson.TeacherID != claims.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	return nil
}
