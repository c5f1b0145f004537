package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolkit/qr-attendance-api/internal/models"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
	"github.com/schoolkit/qr-attendance-api/pkg/export"
)

type redemptionTokenLookup interface {
	FindRedemptionContext(ctx context.Context, code string) (*models.RedemptionContext, error)
}

type attendanceRepository interface {
	Upsert(ctx context.Context, lessonID, studentID string, status models.AttendanceStatus, markedAt time.Time) (*models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, error)
}

// CheckinRequest carries the scanned token code.
type CheckinRequest struct {
	Code string `json:"code" validate:"required"`
}

// CheckinResult reports the classification of a redeemed token.
type CheckinResult struct {
	Record  models.AttendanceRecord `json:"record"`
	Elapsed string                  `json:"elapsed_since_start"`
}

// AttendanceWindows bounds the check-in classification measured from the
// lesson start. A scan within Present counts as present, within Late as
// late, anything after as absent.
type AttendanceWindows struct {
	Present time.Duration
	Late    time.Duration
}

// AttendanceService classifies token redemptions and serves attendance
// listings and exports.
type AttendanceService struct {
	tokens    redemptionTokenLookup
	repo      attendanceRepository
	windows   AttendanceWindows
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService creates an instance of AttendanceService.
func NewAttendanceService(tokens redemptionTokenLookup, repo attendanceRepository, windows AttendanceWindows, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceService{
		tokens:    tokens,
		repo:      repo,
		windows:   windows,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Redeem resolves a scanned code, verifies the scanning teacher owns the
// lesson's subject, classifies the scan against the lesson start and
// writes the outcome. An unknown code reports not found before any
// ownership check; a repeated scan overwrites the earlier one.
func (s *AttendanceService) Redeem(ctx context.Context, claims *models.JWTClaims, req CheckinRequest) (*CheckinResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid checkin payload")
	}

	rc, err := s.tokens.FindRedemptionContext(ctx, req.Code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "token not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve token")
	}

	if rc.TeacherID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher")
	}

	// One sample drives both the classification and the stored timestamp.
	scannedAt := s.now()
	status := s.classify(scannedAt.Sub(rc.LessonStart))

	record, err := s.repo.Upsert(ctx, rc.LessonID, rc.StudentID, status, scannedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	s.logger.Info("token redeemed",
		zap.String("lesson_id", rc.LessonID),
		zap.String("student_id", rc.StudentID),
		zap.String("status", string(status)),
	)

	return &CheckinResult{
		Record:  *record,
		Elapsed: scannedAt.Sub(rc.LessonStart).Round(time.Second).String(),
	}, nil
}

func (s *AttendanceService) classify(elapsed time.Duration) models.AttendanceStatus {
	switch {
	case elapsed <= s.windows.Present:
		return models.AttendancePresent
	case elapsed <= s.windows.Late:
		return models.AttendanceLate
	default:
		return models.AttendanceAbsent
	}
}

// List returns attendance records scoped to the caller: admins see
// everything, teachers records of their own subjects, students their own
// records. Only persisted rows appear; students who never scanned have no
// row to list.
func (s *AttendanceService) List(ctx context.Context, claims *models.JWTClaims, filter models.AttendanceFilter) ([]models.AttendanceDetail, error) {
	switch claims.Role {
	case models.RoleTeacher:
		filter.TeacherID = claims.UserID
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// Export renders the caller's attendance view as CSV or PDF.
func (s *AttendanceService) Export(ctx context.Context, claims *models.JWTClaims, filter models.AttendanceFilter, format string) ([]byte, string, error) {
	records, err := s.List(ctx, claims, filter)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Subject", "Class", "Lesson Start", "Status", "Marked At"},
		Rows:    make([]map[string]string, 0, len(records)),
	}
	for _, r := range records {
		markedAt := ""
		if r.MarkedAt != nil {
			markedAt = r.MarkedAt.UTC().Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":      r.StudentName,
			"Subject":      r.SubjectName,
			"Class":        r.ClassName,
			"Lesson Start": r.StartTime.UTC().Format(time.RFC3339),
			"Status":       string(r.Status),
			"Marked At":    markedAt,
		})
	}

	switch format {
	case "csv", "":
		payload, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := export.NewPDFExporter().Render(dataset, "Attendance Report")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
