package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/forge-api/internal/api/shared"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/queue"
	"github.com/phrazzld/forge-api/internal/service"
)

// MockTaskService is a mock implementation of service.TaskService for testing
type MockTaskService struct {
	CreateTaskAndEnqueueFn func(ctx context.Context, userID uuid.UUID, title, description, taskType string, priority int) (*domain.Task, error)
	GetTaskFn              func(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
	GetTaskDetailFn        func(ctx context.Context, taskID uuid.UUID) (*service.TaskDetail, error)
	PeekQueueFn            func(ctx context.Context, n int) ([]queue.Entry, int64, error)
	RecoverQueueFn         func(ctx context.Context) (int, error)
}

func (m *MockTaskService) CreateTaskAndEnqueue(
	ctx context.Context,
	userID uuid.UUID,
	title, description, taskType string,
	priority int,
) (*domain.Task, error) {
	if m.CreateTaskAndEnqueueFn != nil {
		return m.CreateTaskAndEnqueueFn(ctx, userID, title, description, taskType, priority)
	}
	return nil, nil
}

func (m *MockTaskService) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	if m.GetTaskFn != nil {
		return m.GetTaskFn(ctx, taskID)
	}
	return nil, nil
}

func (m *MockTaskService) GetTaskDetail(ctx context.Context, taskID uuid.UUID) (*service.TaskDetail, error) {
	if m.GetTaskDetailFn != nil {
		return m.GetTaskDetailFn(ctx, taskID)
	}
	return nil, nil
}

func (m *MockTaskService) PeekQueue(ctx context.Context, n int) ([]queue.Entry, int64, error) {
	if m.PeekQueueFn != nil {
		return m.PeekQueueFn(ctx, n)
	}
	return nil, 0, nil
}

func (m *MockTaskService) RecoverQueue(ctx context.Context) (int, error) {
	if m.RecoverQueueFn != nil {
		return m.RecoverQueueFn(ctx)
	}
	return 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

// withURLParam attaches a chi route parameter to the request context.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestTaskHandler_CreateTask(t *testing.T) {
	fixedUserID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	fixedTaskID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	tests := []struct {
		name           string
		setupContext   func(context.Context) context.Context
		requestBody    interface{}
		setupMock      func(*MockTaskService)
		expectedStatus int
		expectedErrMsg string
		expectedTaskID string
	}{
		{
			name: "successful_task_creation",
			setupContext: func(ctx context.Context) context.Context {
				return context.WithValue(ctx, shared.UserIDContextKey, fixedUserID)
			},
			requestBody: CreateTaskRequest{
				Title:    "Write launch blog post",
				TaskType: "TEXT",
				Priority: 3,
			},
			setupMock: func(ms *MockTaskService) {
				ms.CreateTaskAndEnqueueFn = func(ctx context.Context, userID uuid.UUID, title, description, taskType string, priority int) (*domain.Task, error) {
					return &domain.Task{
						ID:       fixedTaskID,
						UserID:   userID,
						Title:    title,
						TaskType: taskType,
						Priority: priority,
						Status:   domain.TaskStatusPending,
					}, nil
				}
			},
			expectedStatus: http.StatusAccepted,
			expectedTaskID: fixedTaskID.String(),
		},
		{
			name: "missing_user_id",
			setupContext: func(ctx context.Context) context.Context {
				return ctx
			},
			requestBody: CreateTaskRequest{
				Title:    "Write launch blog post",
				TaskType: "TEXT",
				Priority: 3,
			},
			setupMock:      func(ms *MockTaskService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedErrMsg: "Authentication required",
		},
		{
			name: "invalid_request_format",
			setupContext: func(ctx context.Context) context.Context {
				return context.WithValue(ctx, shared.UserIDContextKey, fixedUserID)
			},
			requestBody: `{
				"title": "Unterminated
			}`,
			setupMock:      func(ms *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
			expectedErrMsg: "Invalid request format",
		},
		{
			name: "priority_out_of_range",
			setupContext: func(ctx context.Context) context.Context {
				return context.WithValue(ctx, shared.UserIDContextKey, fixedUserID)
			},
			requestBody: CreateTaskRequest{
				Title:    "Write launch blog post",
				TaskType: "TEXT",
				Priority: 9,
			},
			setupMock:      func(ms *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
			expectedErrMsg: "Invalid request",
		},
		{
			name: "domain_validation_error",
			setupContext: func(ctx context.Context) context.Context {
				return context.WithValue(ctx, shared.UserIDContextKey, fixedUserID)
			},
			requestBody: CreateTaskRequest{
				Title:    "Write launch blog post",
				TaskType: "TEXT",
				Priority: 3,
			},
			setupMock: func(ms *MockTaskService) {
				ms.CreateTaskAndEnqueueFn = func(ctx context.Context, userID uuid.UUID, title, description, taskType string, priority int) (*domain.Task, error) {
					return nil, domain.ErrInvalidPriority
				}
			},
			expectedStatus: http.StatusBadRequest,
			expectedErrMsg: domain.ErrInvalidPriority.Error(),
		},
		{
			name: "service_error",
			setupContext: func(ctx context.Context) context.Context {
				return context.WithValue(ctx, shared.UserIDContextKey, fixedUserID)
			},
			requestBody: CreateTaskRequest{
				Title:    "Write launch blog post",
				TaskType: "TEXT",
				Priority: 3,
			},
			setupMock: func(ms *MockTaskService) {
				ms.CreateTaskAndEnqueueFn = func(ctx context.Context, userID uuid.UUID, title, description, taskType string, priority int) (*domain.Task, error) {
					return nil, errors.New("queue unavailable")
				}
			},
			expectedStatus: http.StatusInternalServerError,
			expectedErrMsg: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockTaskService{}
			tt.setupMock(mockService)

			handler := NewTaskHandler(mockService, testLogger())

			var reqBody []byte
			var err error
			if str, ok := tt.requestBody.(string); ok {
				reqBody = []byte(str)
			} else {
				reqBody, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(reqBody))
			req.Header.Set("Content-Type", "application/json")
			req = req.WithContext(tt.setupContext(req.Context()))

			w := httptest.NewRecorder()
			handler.CreateTask(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var respBody map[string]interface{}
			err = json.Unmarshal(w.Body.Bytes(), &respBody)
			require.NoError(t, err)

			if tt.expectedErrMsg != "" {
				errorMsg, ok := respBody["error"].(string)
				assert.True(t, ok, "Expected error field in response")
				assert.Contains(t, errorMsg, tt.expectedErrMsg)
			}

			if tt.expectedTaskID != "" {
				assert.Equal(t, tt.expectedTaskID, respBody["task_id"])
				assert.Equal(t, string(domain.TaskStatusPending), respBody["status"])
			}
		})
	}
}

func TestTaskHandler_GetTask(t *testing.T) {
	fixedTaskID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	fixedTime := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns_task_detail", func(t *testing.T) {
		mockService := &MockTaskService{
			GetTaskDetailFn: func(ctx context.Context, taskID uuid.UUID) (*service.TaskDetail, error) {
				require.Equal(t, fixedTaskID, taskID)
				return &service.TaskDetail{
					Task: &domain.Task{
						ID:        fixedTaskID,
						Title:     "Write launch blog post",
						TaskType:  "TEXT",
						Priority:  3,
						Status:    domain.TaskStatusCompleted,
						CreatedAt: fixedTime,
						UpdatedAt: fixedTime,
					},
					Assignments: []*domain.Assignment{},
					Contents:    []*domain.Content{},
				}, nil
			},
		}
		handler := NewTaskHandler(mockService, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/tasks/"+fixedTaskID.String(), nil)
		req = withURLParam(req, "id", fixedTaskID.String())
		w := httptest.NewRecorder()

		handler.GetTask(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var detail service.TaskDetail
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
		assert.Equal(t, fixedTaskID, detail.Task.ID)
		assert.Equal(t, domain.TaskStatusCompleted, detail.Task.Status)
	})

	t.Run("task_not_found", func(t *testing.T) {
		mockService := &MockTaskService{
			GetTaskDetailFn: func(ctx context.Context, taskID uuid.UUID) (*service.TaskDetail, error) {
				return nil, service.ErrTaskNotFound
			},
		}
		handler := NewTaskHandler(mockService, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/tasks/"+fixedTaskID.String(), nil)
		req = withURLParam(req, "id", fixedTaskID.String())
		w := httptest.NewRecorder()

		handler.GetTask(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid_task_id", func(t *testing.T) {
		handler := NewTaskHandler(&MockTaskService{}, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/tasks/not-a-uuid", nil)
		req = withURLParam(req, "id", "not-a-uuid")
		w := httptest.NewRecorder()

		handler.GetTask(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTaskHandler_PeekQueue(t *testing.T) {
	taskA := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	taskB := uuid.MustParse("44444444-4444-4444-4444-444444444444")

	t.Run("returns_entries_and_length", func(t *testing.T) {
		mockService := &MockTaskService{
			PeekQueueFn: func(ctx context.Context, n int) ([]queue.Entry, int64, error) {
				assert.Equal(t, defaultPeekLimit, n)
				return []queue.Entry{
					{TaskID: taskA, Score: 5.1},
					{TaskID: taskB, Score: 9.2},
				}, 7, nil
			},
		}
		handler := NewTaskHandler(mockService, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
		w := httptest.NewRecorder()

		handler.PeekQueue(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp QueuePeekResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(7), resp.Length)
		require.Len(t, resp.Entries, 2)
		assert.Equal(t, taskA, resp.Entries[0].TaskID)
	})

	t.Run("custom_limit", func(t *testing.T) {
		var gotLimit int
		mockService := &MockTaskService{
			PeekQueueFn: func(ctx context.Context, n int) ([]queue.Entry, int64, error) {
				gotLimit = n
				return nil, 0, nil
			},
		}
		handler := NewTaskHandler(mockService, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/queue?limit=3", nil)
		w := httptest.NewRecorder()

		handler.PeekQueue(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 3, gotLimit)
	})

	t.Run("invalid_limit", func(t *testing.T) {
		handler := NewTaskHandler(&MockTaskService{}, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/queue?limit=zero", nil)
		w := httptest.NewRecorder()

		handler.PeekQueue(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
