package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolkit/qr-attendance-api/internal/models"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
)

type tokenRepository interface {
	ListEnrolledStudentIDs(ctx context.Context, lessonID string) ([]string, error)
	CreateBatch(ctx context.Context, tokens []models.Token) error
	FindDetailByID(ctx context.Context, id string) (*models.TokenDetail, error)
	ListByStudent(ctx context.Context, studentID string, date *time.Time) ([]models.TokenDetail, error)
}

type qrEncoder interface {
	ImageBase64(code string) (string, error)
}

// TokenQR pairs a token with its rendered QR image.
type TokenQR struct {
	models.TokenDetail
	Image string `json:"qr_image_base64"`
}

// TokenService issues redemption tokens and renders them as QR codes.
type TokenService struct {
	repo    tokenRepository
	encoder qrEncoder
	metrics *MetricsService
	logger  *zap.Logger
}

// NewTokenService creates an instance of TokenService. metrics may be nil.
func NewTokenService(repo tokenRepository, encoder qrEncoder, metrics *MetricsService, logger *zap.Logger) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{repo: repo, encoder: encoder, metrics: metrics, logger: logger}
}

// IssueForLesson creates one token per student enrolled in the lesson's
// class and returns the enrolled count. Pairs that already hold a token
// keep their existing code, so the call is safe to repeat.
func (s *TokenService) IssueForLesson(ctx context.Context, lessonID string) (int, error) {
	studentIDs, err := s.repo.ListEnrolledStudentIDs(ctx, lessonID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled students")
	}
	if len(studentIDs) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	tokens := make([]models.Token, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		tokens = append(tokens, models.Token{
			ID:        uuid.NewString(),
			LessonID:  lessonID,
			StudentID: studentID,
			Code:      uuid.NewString(),
			CreatedAt: now,
		})
	}

	if err := s.repo.CreateBatch(ctx, tokens); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist tokens")
	}
	if s.metrics != nil {
		s.metrics.RecordTokensIssued(len(tokens))
	}
	return len(tokens), nil
}

// ListMine returns the caller's tokens with rendered QR images, optionally
// restricted to one calendar day.
func (s *TokenService) ListMine(ctx context.Context, studentID string, date *time.Time) ([]TokenQR, error) {
	tokens, err := s.repo.ListByStudent(ctx, studentID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tokens")
	}

	result := make([]TokenQR, 0, len(tokens))
	for _, token := range tokens {
		image, err := s.encoder.ImageBase64(token.Code)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr code")
		}
		result = append(result, TokenQR{TokenDetail: token, Image: image})
	}
	return result, nil
}

// Get returns a single token with its QR image. Students can only view
// their own tokens.
func (s *TokenService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*TokenQR, error) {
	token, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "token not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load token")
	}

	if claims.Role == models.RoleStudent && token.StudentID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token belongs to another student")
	}

	image, err := s.encoder.ImageBase64(token.Code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr code")
	}

	return &TokenQR{TokenDetail: *token, Image: image}, nil
}
