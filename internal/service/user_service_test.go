package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/config"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/mocks"
	"github.com/phrazzld/forge-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) (UserService, auth.JWTService) {
	t.Helper()

	jwtSvc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		TokenLifetimeHours: 1,
	})
	require.NoError(t, err)

	svc, err := NewUserService(mocks.NewUserStore(), jwtSvc, auth.NewBcryptVerifier(), slog.Default())
	require.NoError(t, err)
	return svc, jwtSvc
}

func TestRegisterAndLogin(t *testing.T) {
	svc, jwtSvc := newUserService(t)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "admin@example.com", "hunter2hunter2", domain.UserRoleAdmin)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEqual(t, "hunter2hunter2", user.HashedPassword)

	claims, err := jwtSvc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, domain.UserRoleAdmin, claims.Role)

	loggedIn, loginToken, err := svc.Login(ctx, "admin@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, loginToken)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "dupe@example.com", "password123", domain.UserRoleUser)
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "dupe@example.com", "password456", domain.UserRoleUser)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "user@example.com", "correct-horse", domain.UserRoleUser)
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "user@example.com", "wrong-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "missing@example.com", "correct-horse")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestGetUser(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	user, _, err := svc.Register(ctx, "user@example.com", "correct-horse", domain.UserRoleUser)
	require.NoError(t, err)

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = svc.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}
