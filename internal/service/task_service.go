package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/queue"
	"github.com/phrazzld/forge-api/internal/store"
)

// TaskDetail is a task with its full attempt history and generated
// artifacts, as returned by the detail endpoint.
type TaskDetail struct {
	Task        *domain.Task         `json:"task"`
	Assignments []*domain.Assignment `json:"assignments"`
	Contents    []*domain.Content    `json:"contents"`
}

// TaskService provides task submission and inspection operations.
type TaskService interface {
	// CreateTaskAndEnqueue persists a new pending task and puts its id on
	// the queue at the task's priority.
	CreateTaskAndEnqueue(ctx context.Context, userID uuid.UUID, title, description, taskType string, priority int) (*domain.Task, error)

	// GetTask retrieves a task by its ID.
	GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)

	// GetTaskDetail retrieves a task with its assignments and contents.
	GetTaskDetail(ctx context.Context, taskID uuid.UUID) (*TaskDetail, error)

	// PeekQueue returns up to n queue entries ordered by score plus the
	// total queue length, without removing anything.
	PeekQueue(ctx context.Context, n int) ([]queue.Entry, int64, error)

	// RecoverQueue re-enqueues every pending task. Called on startup so
	// tasks survive loss of the queue's contents. Returns the number of
	// tasks enqueued.
	RecoverQueue(ctx context.Context) (int, error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tasks       store.TaskStore
	assignments store.AssignmentStore
	contents    store.ContentStore
	queue       queue.Queue
	transactor  store.Transactor
	logger      *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	tasks store.TaskStore,
	assignments store.AssignmentStore,
	contents store.ContentStore,
	q queue.Queue,
	transactor store.Transactor,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil || assignments == nil || contents == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "stores cannot be nil"}
	}
	if q == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "queue cannot be nil"}
	}
	if transactor == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "transactor cannot be nil"}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		tasks:       tasks,
		assignments: assignments,
		contents:    contents,
		queue:       q,
		transactor:  transactor,
		logger:      logger.With("component", "task_service"),
	}, nil
}

// CreateTaskAndEnqueue creates a new pending task and enqueues it.
// The row is committed before the enqueue: if the enqueue then fails the
// task stays pending and RecoverQueue will pick it up.
func (s *taskServiceImpl) CreateTaskAndEnqueue(
	ctx context.Context,
	userID uuid.UUID,
	title, description, taskType string,
	priority int,
) (*domain.Task, error) {
	task, err := domain.NewTask(userID, title, description, taskType, priority)
	if err != nil {
		s.logger.Warn("failed to create task object",
			"error", err,
			"user_id", userID)
		return nil, err
	}

	err = s.transactor.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.tasks.WithTx(tx).Create(ctx, task)
	})
	if err != nil {
		s.logger.Error("failed to save task",
			"error", err,
			"task_id", task.ID,
			"user_id", userID)
		return nil, newServiceError("create_task", "failed to save task", err)
	}

	if err := s.queue.Enqueue(ctx, task.ID, task.Priority); err != nil {
		s.logger.Error("failed to enqueue task",
			"error", err,
			"task_id", task.ID)
		return nil, newServiceError("create_task", "task saved but not enqueued", err)
	}

	s.logger.Info("task created and enqueued",
		"task_id", task.ID,
		"task_type", task.TaskType,
		"priority", task.Priority)
	return task, nil
}

// GetTask retrieves a task by its ID.
func (s *taskServiceImpl) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, newServiceError("get_task", "failed to retrieve task", err)
	}
	return task, nil
}

// GetTaskDetail retrieves a task with its attempt history and artifacts.
func (s *taskServiceImpl) GetTaskDetail(ctx context.Context, taskID uuid.UUID) (*TaskDetail, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	assignments, err := s.assignments.ListByTask(ctx, taskID)
	if err != nil {
		return nil, newServiceError("get_task_detail", "failed to list assignments", err)
	}

	contents, err := s.contents.ListByTask(ctx, taskID)
	if err != nil {
		return nil, newServiceError("get_task_detail", "failed to list contents", err)
	}

	return &TaskDetail{
		Task:        task,
		Assignments: assignments,
		Contents:    contents,
	}, nil
}

// PeekQueue returns the head of the queue for operational inspection.
func (s *taskServiceImpl) PeekQueue(ctx context.Context, n int) ([]queue.Entry, int64, error) {
	entries, err := s.queue.Peek(ctx, n)
	if err != nil {
		return nil, 0, newServiceError("peek_queue", "failed to peek queue", err)
	}

	length, err := s.queue.Length(ctx)
	if err != nil {
		return nil, 0, newServiceError("peek_queue", "failed to get queue length", err)
	}

	return entries, length, nil
}

// RecoverQueue re-enqueues all pending tasks at their original priority.
// Enqueue is idempotent for ids already present, so running this against
// a healthy queue is harmless.
func (s *taskServiceImpl) RecoverQueue(ctx context.Context) (int, error) {
	pending, err := s.tasks.ListPending(ctx)
	if err != nil {
		return 0, newServiceError("recover_queue", "failed to list pending tasks", err)
	}

	recovered := 0
	for _, task := range pending {
		if err := s.queue.Enqueue(ctx, task.ID, task.Priority); err != nil {
			s.logger.Error("failed to re-enqueue pending task",
				"error", err,
				"task_id", task.ID)
			continue
		}
		recovered++
	}

	if recovered > 0 {
		s.logger.Info("recovered pending tasks into queue",
			"recovered", recovered,
			"pending", len(pending))
	}
	return recovered, nil
}
