package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/forge-api/internal/api/shared"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/service/auth"
)

// mockJWTService is a configurable auth.JWTService for middleware tests.
type mockJWTService struct {
	Claims      *auth.Claims
	ValidateErr error
}

func (m *mockJWTService) GenerateToken(ctx context.Context, userID uuid.UUID, role domain.UserRole) (string, error) {
	return "mock-token", nil
}

func (m *mockJWTService) ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	if m.ValidateErr != nil {
		return nil, m.ValidateErr
	}
	return m.Claims, nil
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	tests := []struct {
		name           string
		authHeader     string
		validateErr    error
		claims         *auth.Claims
		expectedStatus int
		expectedUserID uuid.UUID
		expectedRole   domain.UserRole
	}{
		{
			name:           "valid token",
			authHeader:     "Bearer valid-token",
			validateErr:    nil,
			claims:         &auth.Claims{UserID: userID, Role: domain.UserRoleAdmin},
			expectedStatus: http.StatusOK,
			expectedUserID: userID,
			expectedRole:   domain.UserRoleAdmin,
		},
		{
			name:           "missing auth header",
			authHeader:     "",
			validateErr:    nil,
			claims:         nil,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid auth format",
			authHeader:     "InvalidFormat",
			validateErr:    nil,
			claims:         nil,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "expired token",
			authHeader:     "Bearer expired-token",
			validateErr:    auth.ErrExpiredToken,
			claims:         nil,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer invalid-token",
			validateErr:    auth.ErrInvalidToken,
			claims:         nil,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jwtService := &mockJWTService{
				ValidateErr: tt.validateErr,
				Claims:      tt.claims,
			}

			middleware := NewAuthMiddleware(jwtService)

			var capturedUserID uuid.UUID
			var capturedRole domain.UserRole
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if userID, ok := GetUserID(r); ok {
					capturedUserID = userID
				}
				if role, ok := GetUserRole(r); ok {
					capturedRole = role
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Add("Authorization", tt.authHeader)
			}

			recorder := httptest.NewRecorder()

			middleware.Authenticate(nextHandler).ServeHTTP(recorder, req)

			assert.Equal(t, tt.expectedStatus, recorder.Code)

			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.expectedUserID, capturedUserID)
				assert.Equal(t, tt.expectedRole, capturedRole)
			}
		})
	}
}

func TestAuthMiddleware_RequireAdmin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		role           interface{}
		expectedStatus int
	}{
		{
			name:           "admin allowed",
			role:           domain.UserRoleAdmin,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "regular user forbidden",
			role:           domain.UserRoleUser,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "missing role",
			role:           nil,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := NewAuthMiddleware(&mockJWTService{})

			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/admin", nil)
			if tt.role != nil {
				ctx := context.WithValue(req.Context(), shared.UserRoleContextKey, tt.role)
				req = req.WithContext(ctx)
			}

			recorder := httptest.NewRecorder()

			middleware.RequireAdmin(nextHandler).ServeHTTP(recorder, req)

			assert.Equal(t, tt.expectedStatus, recorder.Code)
		})
	}
}

func TestGetUserID(t *testing.T) {
	t.Parallel()

	testUserID := uuid.New()

	t.Run("context with user ID", func(t *testing.T) {
		req, err := http.NewRequest("GET", "/", nil)
		require.NoError(t, err)
		ctx := context.WithValue(req.Context(), shared.UserIDContextKey, testUserID)
		req = req.WithContext(ctx)

		userID, ok := GetUserID(req)

		assert.True(t, ok)
		assert.Equal(t, testUserID, userID)
	})

	t.Run("context without user ID", func(t *testing.T) {
		req, err := http.NewRequest("GET", "/", nil)
		require.NoError(t, err)

		userID, ok := GetUserID(req)

		assert.False(t, ok)
		assert.Equal(t, uuid.Nil, userID)
	})
}
