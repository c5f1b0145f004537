package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/schoolkit/qr-attendance-api/internal/models"
	appErrors "github.com/schoolkit/qr-attendance-api/pkg/errors"
)

type mockAuthRepo struct {
	userByPhone       *models.User
	userByID          *models.User
	findByPhoneErr    error
	findByIDErr       error
	updatePasswordErr error
	lastLoginUpdated  bool
}

func (m *mockAuthRepo) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	if m.findByPhoneErr != nil {
		return nil, m.findByPhoneErr
	}
	return m.userByPhone, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	return m.userByPhone, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	if m.userByPhone != nil && m.userByPhone.ID == id {
		m.userByPhone.PasswordHash = passwordHash
	}
	return nil
}

type mockCodeStore struct {
	values map[string][]byte
}

func newMockCodeStore() *mockCodeStore {
	return &mockCodeStore{values: make(map[string][]byte)}
}

func (m *mockCodeStore) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCodeStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *mockCodeStore) Delete(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func newAuthService(repo *mockAuthRepo, codes resetCodeStore) *AuthService {
	return NewAuthService(repo, codes, validator.New(), zap.NewNop(), AuthConfig{
		TokenSecret:  "secret",
		TokenExpiry:  time.Hour,
		Issuer:       "qr-attendance-api",
		ResetCodeTTL: 5 * time.Minute,
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByPhone: &models.User{ID: "123", Phone: "+15550001111", PasswordHash: string(password), Active: true, Role: models.RoleAdmin}}
	svc := newAuthService(repo, newMockCodeStore())

	res, err := svc.Login(context.Background(), models.LoginRequest{Phone: "+15550001111", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)
}

func TestAuthServiceLoginUnknownPhone(t *testing.T) {
	repo := &mockAuthRepo{findByPhoneErr: sql.ErrNoRows}
	svc := newAuthService(repo, newMockCodeStore())

	_, err := svc.Login(context.Background(), models.LoginRequest{Phone: "+15550009999", Password: "password"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByPhone: &models.User{ID: "123", Phone: "+15550001111", PasswordHash: string(password), Active: false}}
	svc := newAuthService(repo, newMockCodeStore())

	_, err := svc.Login(context.Background(), models.LoginRequest{Phone: "+15550001111", Password: "password"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("oldpass"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByPhone: &models.User{ID: "u1", PasswordHash: string(oldHash), Active: true}}
	svc := newAuthService(repo, newMockCodeStore())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpass", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEqual(t, string(oldHash), repo.userByPhone.PasswordHash)
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("oldpass"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByPhone: &models.User{ID: "u1", PasswordHash: string(oldHash), Active: true}}
	svc := newAuthService(repo, newMockCodeStore())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpassword"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAuthServiceResetFlow(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("oldpass"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByPhone: &models.User{ID: "u1", Phone: "+15550001111", PasswordHash: string(oldHash), Active: true}}
	codes := newMockCodeStore()
	svc := newAuthService(repo, codes)

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Phone: "+15550001111"})
	require.NoError(t, err)

	var code string
	require.NoError(t, codes.Get(context.Background(), resetCodeKey("+15550001111"), &code))
	require.Len(t, code, 6)

	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Phone: "+15550001111", Code: code, NewPassword: "brandnewpass"})
	require.NoError(t, err)
	assert.NotEqual(t, string(oldHash), repo.userByPhone.PasswordHash)

	// A consumed code cannot be replayed.
	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Phone: "+15550001111", Code: code, NewPassword: "anotherpass"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceResetWrongCode(t *testing.T) {
	repo := &mockAuthRepo{userByPhone: &models.User{ID: "u1", Phone: "+15550001111", Active: true}}
	codes := newMockCodeStore()
	require.NoError(t, codes.Set(context.Background(), resetCodeKey("+15550001111"), "123456", time.Minute))
	svc := newAuthService(repo, codes)

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Phone: "+15550001111", Code: "654321", NewPassword: "brandnewpass"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateToken(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo, newMockCodeStore())
	user := &models.User{ID: "u1", Phone: "+15550001111", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}
