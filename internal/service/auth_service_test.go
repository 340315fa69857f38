package service

import (
	"context"
	"testing"
	"time"

	"pettycash/internal/model"
	"pettycash/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (AuthService, *memUserRepo, *memRevocations, *utils.JWTUtil) {
	t.Helper()
	users := &memUserRepo{}
	revocations := &memRevocations{}
	jwtUtil := utils.NewJWTUtil("test-secret", time.Hour)
	return NewAuthService(users, revocations, jwtUtil), users, revocations, jwtUtil
}

func TestSeedDefaultUsers(t *testing.T) {
	svc, users, _, _ := newAuthFixture(t)

	seeded, err := svc.SeedDefaultUsers(context.Background(), "password123")
	require.NoError(t, err)
	assert.True(t, seeded)
	require.Len(t, users.users, 2)
	assert.Equal(t, "employee@example.com", users.users[0].Email)
	assert.Equal(t, "John Employee", users.users[0].FullName)
	assert.Equal(t, model.RoleEmployee, users.users[0].Role)
	assert.Equal(t, "senior@example.com", users.users[1].Email)
	assert.Equal(t, "Jane Senior", users.users[1].FullName)
	assert.Equal(t, model.RoleSenior, users.users[1].Role)
	assert.True(t, utils.CheckPasswordHash("password123", users.users[1].PasswordHash))

	seeded, err = svc.SeedDefaultUsers(context.Background(), "password123")
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Len(t, users.users, 2)
}

func TestSeedDefaultUsers_CountError(t *testing.T) {
	svc, users, _, _ := newAuthFixture(t)
	users.countErr = errBoom

	_, err := svc.SeedDefaultUsers(context.Background(), "password123")
	assert.ErrorIs(t, err, errBoom)
}

func TestLogin(t *testing.T) {
	svc, _, _, jwtUtil := newAuthFixture(t)
	_, err := svc.SeedDefaultUsers(context.Background(), "password123")
	require.NoError(t, err)

	user, token, err := svc.Login(context.Background(), " senior@example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "Jane Senior", user.FullName)

	claims, err := jwtUtil.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "senior", claims.Role)
}

func TestLogin_EmailCaseInsensitive(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	_, err := svc.CreateUser(context.Background(), model.NewUser{
		Username: "mixed",
		Email:    "Mixed.Case@Example.com",
		FullName: "Mixed Case",
		Password: "password123",
		Role:     model.RoleEmployee,
	})
	require.NoError(t, err)

	user, _, err := svc.Login(context.Background(), "MIXED.case@example.COM", "password123")
	require.NoError(t, err)
	assert.Equal(t, "mixed.case@example.com", user.Email)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	_, err := svc.SeedDefaultUsers(context.Background(), "password123")
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "senior@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateAndLogout(t *testing.T) {
	svc, _, revocations, _ := newAuthFixture(t)
	_, err := svc.SeedDefaultUsers(context.Background(), "password123")
	require.NoError(t, err)
	_, token, err := svc.Login(context.Background(), "employee@example.com", "password123")
	require.NoError(t, err)

	user, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "employee@example.com", user.Email)

	require.NoError(t, svc.Logout(context.Background(), token))
	require.Len(t, revocations.revoked, 1)
	for _, ttl := range revocations.revoked {
		assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)
	}

	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	svc, _, _, jwtUtil := newAuthFixture(t)

	_, err := svc.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidSession)

	token, _, err := jwtUtil.GenerateToken(42, "employee")
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession, "user no longer exists")

	assert.NoError(t, svc.Logout(context.Background(), "garbage"))
}

func TestCreateUser(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)

	user, err := svc.CreateUser(context.Background(), model.NewUser{
		Username: "ann", Email: "Ann@Example.com", FullName: "Ann Approver", Password: "longenough", Role: model.RoleSenior,
	})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.True(t, user.IsSenior())
	assert.NotEqual(t, "longenough", user.PasswordHash)

	_, err = svc.CreateUser(context.Background(), model.NewUser{
		Username: "ann2", Email: "ann@example.com", FullName: "Ann Again", Password: "longenough", Role: model.RoleEmployee,
	})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestCreateUser_Validation(t *testing.T) {
	svc, users, _, _ := newAuthFixture(t)

	_, err := svc.CreateUser(context.Background(), model.NewUser{
		Username: "x", Email: "not-an-email", FullName: "X", Password: "short", Role: model.Role("admin"),
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("email"))
	assert.True(t, verr.Has("password"))
	assert.True(t, verr.Has("role"))
	assert.Empty(t, users.users)
}
