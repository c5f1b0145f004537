package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolkit/qr-attendance-api/internal/models"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
)

type mockSubjectRepo struct {
	subjects        map[string]*models.Subject
	classesBySubj   map[string][]models.Class
	listedByTeacher string
	replaced        []string
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	subject, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return subject, nil
}

func (m *mockSubjectRepo) List(ctx context.Context) ([]models.Subject, error) {
	out := make([]models.Subject, 0, len(m.subjects))
	for _, s := range m.subjects {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockSubjectRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.Subject, error) {
	m.listedByTeacher = teacherID
	var out []models.Subject
	for _, s := range m.subjects {
		if s.TeacherID == teacherID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = "subj-new"
	m.subjects[subject.ID] = subject
	return nil
}

func (m *mockSubjectRepo) Update(ctx context.Context, subject *models.Subject) error {
	m.subjects[subject.ID] = subject
	return nil
}

func (m *mockSubjectRepo) Delete(ctx context.Context, id string) error {
	delete(m.subjects, id)
	return nil
}

func (m *mockSubjectRepo) ReplaceClasses(ctx context.Context, subjectID string, classIDs []string) error {
	m.replaced = classIDs
	return nil
}

func (m *mockSubjectRepo) ListClasses(ctx context.Context, subjectID string) ([]models.Class, error) {
	return m.classesBySubj[subjectID], nil
}

type mockSubjectUsers struct {
	users map[string]*models.User
}

func (m *mockSubjectUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func newSubjectFixture() (*SubjectService, *mockSubjectRepo) {
	repo := &mockSubjectRepo{
		subjects:      map[string]*models.Subject{},
		classesBySubj: map[string][]models.Class{},
	}
	users := &mockSubjectUsers{users: map[string]*models.User{
		"t1": {ID: "t1", FullName: "Tina Teacher", Role: models.RoleTeacher},
		"s1": {ID: "s1", FullName: "Sam Student", Role: models.RoleStudent},
	}}
	return NewSubjectService(repo, users, validator.New(), zap.NewNop()), repo
}

func TestCreateSubjectAssignsClasses(t *testing.T) {
	svc, repo := newSubjectFixture()

	detail, err := svc.Create(context.Background(), SubjectRequest{
		Name:      "Mathematics",
		TeacherID: "t1",
		ClassIDs:  []string{"c1", "c2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", detail.Name)
	assert.Equal(t, "Tina Teacher", detail.TeacherName)
	assert.Equal(t, []string{"c1", "c2"}, repo.replaced)
}

func TestCreateSubjectRejectsNonTeacherOwner(t *testing.T) {
	svc, _ := newSubjectFixture()

	_, err := svc.Create(context.Background(), SubjectRequest{
		Name:      "Mathematics",
		TeacherID: "s1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateSubjectUnknownTeacher(t *testing.T) {
	svc, _ := newSubjectFixture()

	_, err := svc.Create(context.Background(), SubjectRequest{
		Name:      "Mathematics",
		TeacherID: "missing",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestListSubjectsScopesToTeacher(t *testing.T) {
	svc, repo := newSubjectFixture()
	repo.subjects["subj-1"] = &models.Subject{ID: "subj-1", Name: "Math", TeacherID: "t1"}
	repo.subjects["subj-2"] = &models.Subject{ID: "subj-2", Name: "Art", TeacherID: "t2"}

	subjects, err := svc.List(context.Background(), &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, "Math", subjects[0].Name)
	assert.Equal(t, "t1", repo.listedByTeacher)
}

func TestUpdateSubjectNotFound(t *testing.T) {
	svc, _ := newSubjectFixture()

	_, err := svc.Update(context.Background(), "missing", SubjectRequest{
		Name:      "Mathematics",
		TeacherID: "t1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
