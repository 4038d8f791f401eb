package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/service"
	"github.com/phrazzld/forge-api/internal/service/auth"
)

// MockUserService is a mock implementation of service.UserService for testing
type MockUserService struct {
	RegisterFn func(ctx context.Context, email, password string, role domain.UserRole) (*domain.User, string, error)
	LoginFn    func(ctx context.Context, email, password string) (*domain.User, string, error)
	GetUserFn  func(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

func (m *MockUserService) Register(ctx context.Context, email, password string, role domain.UserRole) (*domain.User, string, error) {
	if m.RegisterFn != nil {
		return m.RegisterFn(ctx, email, password, role)
	}
	return nil, "", nil
}

func (m *MockUserService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	if m.LoginFn != nil {
		return m.LoginFn(ctx, email, password)
	}
	return nil, "", nil
}

func (m *MockUserService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.GetUserFn != nil {
		return m.GetUserFn(ctx, id)
	}
	return nil, nil
}

var _ service.UserService = (*MockUserService)(nil)

func TestAuthHandler_Register(t *testing.T) {
	fixedUserID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(*MockUserService)
		expectedStatus int
		expectedErrMsg string
		expectedToken  string
	}{
		{
			name: "successful_registration",
			requestBody: RegisterRequest{
				Email:    "user@example.com",
				Password: "correct-horse-battery",
			},
			setupMock: func(ms *MockUserService) {
				ms.RegisterFn = func(ctx context.Context, email, password string, role domain.UserRole) (*domain.User, string, error) {
					assert.Equal(t, domain.UserRoleUser, role)
					return &domain.User{ID: fixedUserID, Email: email, Role: role}, "signed-token", nil
				}
			},
			expectedStatus: http.StatusCreated,
			expectedToken:  "signed-token",
		},
		{
			name: "explicit_admin_role",
			requestBody: RegisterRequest{
				Email:    "admin@example.com",
				Password: "correct-horse-battery",
				Role:     "admin",
			},
			setupMock: func(ms *MockUserService) {
				ms.RegisterFn = func(ctx context.Context, email, password string, role domain.UserRole) (*domain.User, string, error) {
					assert.Equal(t, domain.UserRoleAdmin, role)
					return &domain.User{ID: fixedUserID, Email: email, Role: role}, "signed-token", nil
				}
			},
			expectedStatus: http.StatusCreated,
			expectedToken:  "signed-token",
		},
		{
			name: "duplicate_email",
			requestBody: RegisterRequest{
				Email:    "user@example.com",
				Password: "correct-horse-battery",
			},
			setupMock: func(ms *MockUserService) {
				ms.RegisterFn = func(ctx context.Context, email, password string, role domain.UserRole) (*domain.User, string, error) {
					return nil, "", service.ErrEmailExists
				}
			},
			expectedStatus: http.StatusConflict,
			expectedErrMsg: "Email already exists",
		},
		{
			name: "password_too_short",
			requestBody: RegisterRequest{
				Email:    "user@example.com",
				Password: "short",
			},
			setupMock:      func(ms *MockUserService) {},
			expectedStatus: http.StatusBadRequest,
			expectedErrMsg: "Invalid request",
		},
		{
			name: "invalid_email",
			requestBody: RegisterRequest{
				Email:    "not-an-email",
				Password: "correct-horse-battery",
			},
			setupMock:      func(ms *MockUserService) {},
			expectedStatus: http.StatusBadRequest,
			expectedErrMsg: "Invalid request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockUserService{}
			tt.setupMock(mockService)

			handler := NewAuthHandler(mockService, testLogger())

			reqBody, err := json.Marshal(tt.requestBody)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(reqBody))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Register(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var respBody map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))

			if tt.expectedErrMsg != "" {
				errorMsg, ok := respBody["error"].(string)
				assert.True(t, ok, "Expected error field in response")
				assert.Contains(t, errorMsg, tt.expectedErrMsg)
			}

			if tt.expectedToken != "" {
				assert.Equal(t, tt.expectedToken, respBody["token"])
				assert.Equal(t, fixedUserID.String(), respBody["user_id"])
			}
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	fixedUserID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(*MockUserService)
		expectedStatus int
		expectedErrMsg string
	}{
		{
			name: "successful_login",
			requestBody: LoginRequest{
				Email:    "user@example.com",
				Password: "correct-horse-battery",
			},
			setupMock: func(ms *MockUserService) {
				ms.LoginFn = func(ctx context.Context, email, password string) (*domain.User, string, error) {
					return &domain.User{ID: fixedUserID, Email: email}, "signed-token", nil
				}
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "wrong_credentials",
			requestBody: LoginRequest{
				Email:    "user@example.com",
				Password: "wrong-password",
			},
			setupMock: func(ms *MockUserService) {
				ms.LoginFn = func(ctx context.Context, email, password string) (*domain.User, string, error) {
					return nil, "", auth.ErrInvalidCredentials
				}
			},
			expectedStatus: http.StatusUnauthorized,
			expectedErrMsg: "Invalid credentials",
		},
		{
			name: "unknown_email_indistinguishable_from_wrong_password",
			requestBody: LoginRequest{
				Email:    "nobody@example.com",
				Password: "correct-horse-battery",
			},
			setupMock: func(ms *MockUserService) {
				ms.LoginFn = func(ctx context.Context, email, password string) (*domain.User, string, error) {
					return nil, "", auth.ErrInvalidCredentials
				}
			},
			expectedStatus: http.StatusUnauthorized,
			expectedErrMsg: "Invalid credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockUserService{}
			tt.setupMock(mockService)

			handler := NewAuthHandler(mockService, testLogger())

			reqBody, err := json.Marshal(tt.requestBody)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(reqBody))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Login(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedErrMsg != "" {
				var respBody map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
				errorMsg, ok := respBody["error"].(string)
				assert.True(t, ok, "Expected error field in response")
				assert.Contains(t, errorMsg, tt.expectedErrMsg)
			}
		})
	}
}
