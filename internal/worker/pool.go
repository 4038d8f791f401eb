package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/provider"
	"github.com/phrazzld/forge-api/internal/queue"
	"github.com/phrazzld/forge-api/internal/selector"
	"github.com/phrazzld/forge-api/internal/store"
)

// Config holds configuration for the worker pool
type Config struct {
	// Count determines how many concurrent workers drain the queue
	Count int

	// PollInterval is how long an idle worker sleeps when the queue is
	// empty before polling again
	PollInterval time.Duration

	// MaxAttempts is the total number of attempts a task gets before it
	// is failed permanently
	MaxAttempts int
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		Count:        2,
		PollInterval: 2 * time.Second,
		MaxAttempts:  3,
	}
}

// Pool manages background task processing
type Pool struct {
	cfg         Config
	queue       queue.Queue
	tasks       store.TaskStore
	assignments store.AssignmentStore
	accounts    store.AccountStore
	contents    store.ContentStore
	selector    *selector.Selector
	registry    *provider.Registry
	transactor  store.Transactor

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewPool creates a new worker pool. If logger is nil, a default logger
// will be used.
func NewPool(
	cfg Config,
	q queue.Queue,
	tasks store.TaskStore,
	assignments store.AssignmentStore,
	accounts store.AccountStore,
	contents store.ContentStore,
	sel *selector.Selector,
	registry *provider.Registry,
	transactor store.Transactor,
	logger *slog.Logger,
) *Pool {
	if cfg.Count <= 0 {
		cfg.Count = DefaultConfig().Count
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		cfg:         cfg,
		queue:       q,
		tasks:       tasks,
		assignments: assignments,
		accounts:    accounts,
		contents:    contents,
		selector:    sel,
		registry:    registry,
		transactor:  transactor,
		logger:      logger.With(slog.String("component", "worker_pool")),
	}
}

// Start launches the worker goroutines. Workers run until Stop is called.
func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancelFunc = cancel

	for i := 0; i < p.cfg.Count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.logger.Info("worker pool started",
		slog.Int("worker_count", p.cfg.Count),
		slog.Int("max_attempts", p.cfg.MaxAttempts))
}

// Stop gracefully shuts down the pool, waiting for in-flight attempts
// to settle.
func (p *Pool) Stop() {
	if p.cancelFunc != nil {
		p.cancelFunc()
	}
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker polls the queue until its context is cancelled. Individual task
// failures never stop the loop.
func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.logger.With(slog.Int("worker_id", id))
	log.Debug("starting worker")

	for {
		select {
		case <-ctx.Done():
			log.Debug("stopping worker")
			return
		default:
		}

		taskID, err := p.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrEmpty) {
				log.Error("failed to dequeue task", slog.String("error", err.Error()))
			}
			select {
			case <-ctx.Done():
				log.Debug("stopping worker")
				return
			case <-time.After(p.cfg.PollInterval):
			}
			continue
		}

		p.processTask(ctx, taskID, log)
	}
}

// processTask runs one full attempt cycle for a dequeued task id.
func (p *Pool) processTask(ctx context.Context, taskID uuid.UUID, log *slog.Logger) {
	log = log.With(slog.String("task_id", taskID.String()))

	task, err := p.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// A stale queue entry for a deleted task; drop it.
			log.Warn("dequeued task no longer exists")
			return
		}
		// The original priority is unknown until the row loads, so the
		// retry goes to the back of the queue.
		log.Error("failed to load dequeued task", slog.String("error", err.Error()))
		p.requeue(ctx, taskID, domain.MinPriority, log)
		return
	}

	// Only pending tasks are runnable. Re-enqueued ids can race with
	// administrative status changes, so anything else is dropped.
	if task.Status != domain.TaskStatusPending {
		log.Info("skipping task not in pending status",
			slog.String("status", string(task.Status)))
		return
	}

	selection, err := p.selector.Select(ctx, task)
	if err != nil {
		if errors.Is(err, selector.ErrExhausted) {
			// No candidate exists. Retrying cannot help until an operator
			// changes provider or account state, so fail the task now
			// without recording an assignment.
			p.failTask(ctx, task, fmt.Sprintf("provider selection failed: %v", err), log)
			return
		}
		log.Error("provider selection failed transiently", slog.String("error", err.Error()))
		p.requeue(ctx, task.ID, task.Priority, log)
		return
	}

	log = log.With(
		slog.String("provider_id", selection.Provider.ID.String()),
		slog.String("account_id", selection.Account.ID.String()))

	priorAttempts, err := p.assignments.CountByTask(ctx, task.ID)
	if err != nil {
		log.Error("failed to count prior attempts", slog.String("error", err.Error()))
		p.requeue(ctx, task.ID, task.Priority, log)
		return
	}
	attempt := priorAttempts + 1

	assignment, err := p.beginAttempt(ctx, task, selection, attempt)
	if err != nil {
		log.Error("failed to record attempt start", slog.String("error", err.Error()))
		p.requeue(ctx, task.ID, task.Priority, log)
		return
	}

	log.Info("processing task",
		slog.String("task_type", task.TaskType),
		slog.Int("attempt", attempt))

	result, execErr := p.execute(ctx, task, selection)
	if execErr != nil {
		p.settleFailure(ctx, task, assignment, attempt, execErr, log)
		return
	}

	p.settleSuccess(ctx, task, assignment, selection, result, log)
}

// beginAttempt records the attempt in one transaction: a fresh assignment
// row plus the task's transition to processing.
func (p *Pool) beginAttempt(ctx context.Context, task *domain.Task, selection *selector.Selection, attempt int) (*domain.Assignment, error) {
	assignment, err := domain.NewAssignment(task.ID, selection.Provider.ID, selection.Account.ID)
	if err != nil {
		return nil, err
	}
	assignment.Status = domain.AssignmentStatusProcessing
	assignment.AttemptCount = attempt

	now := time.Now().UTC()
	task.Status = domain.TaskStatusProcessing
	if task.StartedAt == nil {
		task.StartedAt = &now
	}
	task.ErrorMessage = ""

	err = p.transactor.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := p.assignments.WithTx(tx).Create(ctx, assignment); err != nil {
			return fmt.Errorf("failed to create assignment: %w", err)
		}
		if err := p.tasks.WithTx(tx).Update(ctx, task); err != nil {
			return fmt.Errorf("failed to mark task processing: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return assignment, nil
}

// execute resolves the provider integration and runs the generation call.
func (p *Pool) execute(ctx context.Context, task *domain.Task, selection *selector.Selection) (*provider.Result, error) {
	integration, ok := p.registry.Get(selection.Provider.Name)
	if !ok {
		return nil, fmt.Errorf("no integration registered for provider %q", selection.Provider.Name)
	}

	result, err := integration.Generate(ctx, task, selection.Provider, selection.Account)
	if err != nil {
		return nil, err
	}
	if result == nil || result.Content == nil {
		return nil, errors.New("provider returned no content")
	}

	return result, nil
}

// settleSuccess commits the attempt outcome in one transaction: the
// assignment's completion and token cost, the content artifact, the
// account's usage increment and the task's completion.
func (p *Pool) settleSuccess(ctx context.Context, task *domain.Task, assignment *domain.Assignment, selection *selector.Selection, result *provider.Result, log *slog.Logger) {
	now := time.Now().UTC()

	assignment.Status = domain.AssignmentStatusCompleted
	assignment.TokensUsed = result.TokensUsed
	assignment.ErrorMessage = ""

	task.Status = domain.TaskStatusCompleted
	task.CompletedAt = &now
	task.ErrorMessage = ""

	err := p.transactor.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := p.assignments.WithTx(tx).Update(ctx, assignment); err != nil {
			return fmt.Errorf("failed to complete assignment: %w", err)
		}
		if err := p.contents.WithTx(tx).Create(ctx, result.Content); err != nil {
			return fmt.Errorf("failed to save content: %w", err)
		}
		if err := p.accounts.WithTx(tx).AddTokensUsed(ctx, selection.Account.ID, result.TokensUsed); err != nil {
			return fmt.Errorf("failed to record token usage: %w", err)
		}
		if err := p.tasks.WithTx(tx).Update(ctx, task); err != nil {
			return fmt.Errorf("failed to complete task: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to settle successful attempt", slog.String("error", err.Error()))
		return
	}

	log.Info("task completed successfully",
		slog.String("content_id", result.Content.ID.String()),
		slog.Int64("tokens_used", result.TokensUsed))
}

// settleFailure records the failed attempt and either re-enqueues the
// task for another try or fails it permanently once the attempt budget
// is spent.
func (p *Pool) settleFailure(ctx context.Context, task *domain.Task, assignment *domain.Assignment, attempt int, execErr error, log *slog.Logger) {
	log.Warn("task attempt failed",
		slog.Int("attempt", attempt),
		slog.String("error", execErr.Error()))

	assignment.Status = domain.AssignmentStatusFailed
	assignment.ErrorMessage = execErr.Error()

	exhausted := attempt >= p.cfg.MaxAttempts
	if exhausted {
		task.Status = domain.TaskStatusFailed
		task.ErrorMessage = fmt.Sprintf("failed after %d attempts: %v", attempt, execErr)
	} else {
		task.Status = domain.TaskStatusPending
		task.ErrorMessage = execErr.Error()
	}

	err := p.transactor.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := p.assignments.WithTx(tx).Update(ctx, assignment); err != nil {
			return fmt.Errorf("failed to record attempt failure: %w", err)
		}
		if err := p.tasks.WithTx(tx).Update(ctx, task); err != nil {
			return fmt.Errorf("failed to update task after failure: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to settle failed attempt", slog.String("error", err.Error()))
		return
	}

	if exhausted {
		log.Error("task failed permanently",
			slog.Int("attempts", attempt))
		return
	}

	p.requeue(ctx, task.ID, task.Priority, log)
}

// failTask marks a task failed without an assignment row. Used when
// selection is exhausted and no attempt can be made.
func (p *Pool) failTask(ctx context.Context, task *domain.Task, reason string, log *slog.Logger) {
	task.Status = domain.TaskStatusFailed
	task.ErrorMessage = reason

	if err := p.tasks.Update(ctx, task); err != nil {
		log.Error("failed to mark task failed", slog.String("error", err.Error()))
		return
	}

	log.Error("task failed without attempt", slog.String("reason", reason))
}

// requeue puts a task id back on the queue at the given priority.
func (p *Pool) requeue(ctx context.Context, taskID uuid.UUID, priority int, log *slog.Logger) {
	if err := p.queue.Enqueue(ctx, taskID, priority); err != nil {
		log.Error("failed to re-enqueue task", slog.String("error", err.Error()))
	}
}
