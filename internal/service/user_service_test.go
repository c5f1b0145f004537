package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/schoolkit/qr-attendance-api/internal/models"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
)

type mockUserRepo struct {
	byPhone map[string]*models.User
	byID    map[string]*models.User
	created *models.User
	deleted string
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return nil, 0, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	user, ok := m.byPhone[phone]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	m.created = user
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error { return nil }

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	m.deleted = id
	return nil
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := &mockUserRepo{byPhone: map[string]*models.User{}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Phone:    "+15550002222",
		FullName: "Sam Student",
		Role:     models.RoleStudent,
		Active:   true,
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))
}

func TestCreateUserDuplicatePhone(t *testing.T) {
	repo := &mockUserRepo{byPhone: map[string]*models.User{
		"+15550002222": {ID: "u1", Phone: "+15550002222"},
	}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Phone:    "+15550002222",
		FullName: "Sam Student",
		Role:     models.RoleStudent,
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	repo := &mockUserRepo{byPhone: map[string]*models.User{}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Phone:    "+15550002222",
		FullName: "Sam Student",
		Role:     "principal",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestDeleteUserNotFound(t *testing.T) {
	repo := &mockUserRepo{byID: map[string]*models.User{}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdateUserSelf(t *testing.T) {
	repo := &mockUserRepo{
		byPhone: map[string]*models.User{},
		byID: map[string]*models.User{
			"u1": {ID: "u1", Phone: "+15550002222", FullName: "Sam Student", Role: models.RoleStudent, Active: true},
		},
	}
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}

	user, err := svc.Update(context.Background(), claims, "u1", UpdateUserRequest{
		Phone:    "+15550002222",
		FullName: "Samantha Student",
	})
	require.NoError(t, err)
	assert.Equal(t, "Samantha Student", user.FullName)
	assert.True(t, user.Active)
}

func TestUpdateUserForeignProfileForbidden(t *testing.T) {
	repo := &mockUserRepo{
		byID: map[string]*models.User{
			"u1": {ID: "u1", Phone: "+15550002222", Role: models.RoleStudent},
		},
	}
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	claims := &models.JWTClaims{UserID: "u2", Role: models.RoleTeacher}

	_, err := svc.Update(context.Background(), claims, "u1", UpdateUserRequest{
		Phone:    "+15550002222",
		FullName: "Hijacked",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUpdateUserSelfCannotChangeActivation(t *testing.T) {
	repo := &mockUserRepo{
		byID: map[string]*models.User{
			"u1": {ID: "u1", Phone: "+15550002222", Role: models.RoleStudent, Active: false},
		},
	}
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}
	active := true

	_, err := svc.Update(context.Background(), claims, "u1", UpdateUserRequest{
		Phone:    "+15550002222",
		FullName: "Sam Student",
		Active:   &active,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
