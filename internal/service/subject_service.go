package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolkit/qr-attendance-api/internal/models"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
)

type subjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	List(ctx context.Context) ([]models.Subject, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
	ReplaceClasses(ctx context.Context, subjectID string, classIDs []string) error
	ListClasses(ctx context.Context, subjectID string) ([]models.Class, error)
}

type subjectUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SubjectRequest carries the mutable subject attributes plus the classes
// the subject is taught to.
type SubjectRequest struct {
	Name      string   `json:"name" validate:"required"`
	TeacherID string   `json:"teacher_id" validate:"required"`
	ClassIDs  []string `json:"class_ids"`
}

// SubjectService manages subjects and their class assignments.
type SubjectService struct {
	repo      subjectRepository
	users     subjectUserLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates an instance of SubjectService.
func NewSubjectService(repo subjectRepository, users subjectUserLookup, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubjectService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns subjects. A teacher caller sees only their own subjects.
func (s *SubjectService) List(ctx context.Context, claims *models.JWTClaims) ([]models.Subject, error) {
	var (
		subjects []models.Subject
		err      error
	)
	if claims.Role == models.RoleTeacher {
		subjects, err = s.repo.ListByTeacher(ctx, claims.UserID)
	} else {
		subjects, err = s.repo.List(ctx)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// Get returns a subject with its teacher and class metadata.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.SubjectDetail, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	detail := &models.SubjectDetail{Subject: *subject}

	teacher, err := s.users.FindByID(ctx, subject.TeacherID)
	if err == nil {
		detail.TeacherName = teacher.FullName
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	classes, err := s.repo.ListClasses(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject classes")
	}
	detail.Classes = classes

	return detail, nil
}

// Create adds a subject owned by the given teacher.
func (s *SubjectService) Create(ctx context.Context, req SubjectRequest) (*models.SubjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create subject payload")
	}

	if err := s.checkTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}

	subject := &models.Subject{Name: req.Name, TeacherID: req.TeacherID}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}

	if len(req.ClassIDs) > 0 {
		if err := s.repo.ReplaceClasses(ctx, subject.ID, req.ClassIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign classes")
		}
	}

	return s.Get(ctx, subject.ID)
}

// Update modifies a subject and replaces its class assignments.
func (s *SubjectService) Update(ctx context.Context, id string, req SubjectRequest) (*models.SubjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update subject payload")
	}

	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	if req.TeacherID != subject.TeacherID {
		if err := s.checkTeacher(ctx, req.TeacherID); err != nil {
			return nil, err
		}
	}

	subject.Name = req.Name
	subject.TeacherID = req.TeacherID
	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}

	if req.ClassIDs != nil {
		if err := s.repo.ReplaceClasses(ctx, id, req.ClassIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace classes")
		}
	}

	return s.Get(ctx, id)
}

// Delete removes a subject and its lessons.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}

func (s *SubjectService) checkTeacher(ctx context.Context, teacherID string) error {
	teacher, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrValidation, "subject owner must hold the teacher role")
	}
	return nil
}
