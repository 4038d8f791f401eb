package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/phrazzld/forge-api/internal/api/middleware"
	"github.com/phrazzld/forge-api/internal/api/shared"
	"github.com/phrazzld/forge-api/internal/service"
)

// defaultPeekLimit caps queue inspection when no limit is given.
const defaultPeekLimit = 10

// TaskHandler handles task submission and inspection API requests.
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
	validator   *validator.Validate
}

// NewTaskHandler creates a new TaskHandler with the given dependencies.
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With("component", "task_handler"),
		validator:   validator.New(),
	}
}

// CreateTask handles POST /tasks. The task is persisted and enqueued for
// asynchronous processing, so the response is 202 Accepted.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateTaskRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	if !shared.ValidateRequest(w, r, h.validator, &req) {
		return
	}

	task, err := h.taskService.CreateTaskAndEnqueue(
		r.Context(),
		userID,
		req.Title,
		req.Description,
		req.TaskType,
		req.Priority,
	)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, CreateTaskResponse{
		TaskID: task.ID,
		Status: string(task.Status),
	})
}

// GetTask handles GET /tasks/{id}. It returns the task with its full
// attempt history and any generated content.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.taskService.GetTaskDetail(r.Context(), taskID)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, detail)
}

// PeekQueue handles GET /queue. It returns the head of the queue in
// dispatch order without removing anything.
func (h *TaskHandler) PeekQueue(w http.ResponseWriter, r *http.Request) {
	limit := defaultPeekLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	entries, length, err := h.taskService.PeekQueue(r.Context(), limit)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), h.logger, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, toQueuePeekResponse(entries, length))
}

// parseUUIDParam parses a UUID path parameter, writing a 400 response on
// failure.
func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid "+name+" parameter")
		return uuid.Nil, false
	}
	return id, true
}
