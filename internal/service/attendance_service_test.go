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

type mockTokenLookup struct {
	contexts map[string]*models.RedemptionContext
}

func (m *mockTokenLookup) FindRedemptionContext(ctx context.Context, code string) (*models.RedemptionContext, error) {
	rc, ok := m.contexts[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rc, nil
}

type mockAttendanceRepo struct {
	records map[string]*models.AttendanceRecord
	listed  []models.AttendanceDetail
	filter  models.AttendanceFilter
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, lessonID, studentID string, status models.AttendanceStatus, markedAt time.Time) (*models.AttendanceRecord, error) {
	if m.records == nil {
		m.records = make(map[string]*models.AttendanceRecord)
	}
	key := lessonID + "/" + studentID
	record := &models.AttendanceRecord{
		ID:        key,
		LessonID:  lessonID,
		StudentID: studentID,
		Status:    status,
		MarkedAt:  &markedAt,
	}
	m.records[key] = record
	return record, nil
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, error) {
	m.filter = filter
	return m.listed, nil
}

func fixedWindows() AttendanceWindows {
	return AttendanceWindows{Present: 15 * time.Minute, Late: 30 * time.Minute}
}

func newRedemptionFixture(lessonStart time.Time) (*mockTokenLookup, *mockAttendanceRepo, *AttendanceService) {
	tokens := &mockTokenLookup{contexts: map[string]*models.RedemptionContext{
		"code-1": {
			Token:       models.Token{ID: "t1", LessonID: "l1", StudentID: "s1", Code: "code-1"},
			LessonStart: lessonStart,
			TeacherID:   "teach1",
		},
	}}
	repo := &mockAttendanceRepo{}
	svc := NewAttendanceService(tokens, repo, fixedWindows(), validator.New(), zap.NewNop())
	return tokens, repo, svc
}

func teacherClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTeacher}
}

func TestRedeemClassification(t *testing.T) {
	cases := []struct {
		name    string
		elapsed time.Duration
		want    models.AttendanceStatus
	}{
		{"before start", -5 * time.Minute, models.AttendancePresent},
		{"exactly on start", 0, models.AttendancePresent},
		{"at present boundary", 15 * time.Minute, models.AttendancePresent},
		{"just past present boundary", 15*time.Minute + time.Second, models.AttendanceLate},
		{"at late boundary", 30 * time.Minute, models.AttendanceLate},
		{"just past late boundary", 30*time.Minute + time.Second, models.AttendanceAbsent},
		{"hours late", 3 * time.Hour, models.AttendanceAbsent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lessonStart := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
			_, repo, svc := newRedemptionFixture(lessonStart)
			svc.now = func() time.Time { return lessonStart.Add(tc.elapsed) }

			res, err := svc.Redeem(context.Background(), teacherClaims("teach1"), CheckinRequest{Code: "code-1"})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Record.Status)
			require.NotNil(t, repo.records["l1/s1"])
			assert.Equal(t, tc.want, repo.records["l1/s1"].Status)
		})
	}
}

func TestRedeemLastScanWins(t *testing.T) {
	lessonStart := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	_, repo, svc := newRedemptionFixture(lessonStart)

	svc.now = func() time.Time { return lessonStart.Add(5 * time.Minute) }
	res, err := svc.Redeem(context.Background(), teacherClaims("teach1"), CheckinRequest{Code: "code-1"})
	require.NoError(t, err)
	assert.Equal(t, models.AttendancePresent, res.Record.Status)

	svc.now = func() time.Time { return lessonStart.Add(45 * time.Minute) }
	res, err = svc.Redeem(context.Background(), teacherClaims("teach1"), CheckinRequest{Code: "code-1"})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceAbsent, res.Record.Status)

	stored := repo.records["l1/s1"]
	require.NotNil(t, stored)
	assert.Equal(t, models.AttendanceAbsent, stored.Status)
	assert.Equal(t, lessonStart.Add(45*time.Minute), stored.MarkedAt.UTC())
}

func TestRedeemUnknownCode(t *testing.T) {
	lessonStart := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	_, _, svc := newRedemptionFixture(lessonStart)

	_, err := svc.Redeem(context.Background(), teacherClaims("teach1"), CheckinRequest{Code: "missing"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRedeemForeignTeacher(t *testing.T) {
	lessonStart := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	_, repo, svc := newRedemptionFixture(lessonStart)

	_, err := svc.Redeem(context.Background(), teacherClaims("someone-else"), CheckinRequest{Code: "code-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.records)
}

func TestListScopesToCaller(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := NewAttendanceService(&mockTokenLookup{}, repo, fixedWindows(), validator.New(), zap.NewNop())

	_, err := svc.List(context.Background(), &models.JWTClaims{UserID: "teach1", Role: models.RoleTeacher}, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, "teach1", repo.filter.TeacherID)

	_, err = svc.List(context.Background(), &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, "s1", repo.filter.StudentID)

	_, err = svc.List(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Empty(t, repo.filter.TeacherID)
	assert.Empty(t, repo.filter.StudentID)
}

func TestExportCSV(t *testing.T) {
	markedAt := time.Date(2026, 3, 9, 9, 10, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{listed: []models.AttendanceDetail{
		{
			AttendanceRecord: models.AttendanceRecord{ID: "a1", LessonID: "l1", StudentID: "s1", Status: models.AttendancePresent, MarkedAt: &markedAt},
			StudentName:      "Sam Student",
			SubjectName:      "Math",
			ClassName:        "10A",
			StartTime:        time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
		},
	}}
	svc := NewAttendanceService(&mockTokenLookup{}, repo, fixedWindows(), validator.New(), zap.NewNop())

	payload, contentType, err := svc.Export(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, models.AttendanceFilter{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "Sam Student")
	assert.Contains(t, string(payload), "present")
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewAttendanceService(&mockTokenLookup{}, &mockAttendanceRepo{}, fixedWindows(), validator.New(), zap.NewNop())

	_, _, err := svc.Export(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, models.AttendanceFilter{}, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
