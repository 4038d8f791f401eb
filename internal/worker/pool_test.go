package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/mocks"
	"github.com/phrazzld/forge-api/internal/provider"
	"github.com/phrazzld/forge-api/internal/queue"
	"github.com/phrazzld/forge-api/internal/selector"
	"github.com/phrazzld/forge-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIntegration is a scriptable provider.Integration for worker tests.
type fakeIntegration struct {
	generateFn func(ctx context.Context, task *domain.Task) (*provider.Result, error)
	calls      int
}

func (f *fakeIntegration) Authenticate(ctx context.Context, encryptedCredentials string, p *domain.Provider) error {
	return nil
}

func (f *fakeIntegration) Generate(ctx context.Context, task *domain.Task, p *domain.Provider, a *domain.Account) (*provider.Result, error) {
	f.calls++
	return f.generateFn(ctx, task)
}

func (f *fakeIntegration) CheckUsage(ctx context.Context, encryptedCredentials string, p *domain.Provider) (*provider.Usage, error) {
	return &provider.Usage{}, nil
}

// successResult builds a minimal text artifact for the given task.
func successResult(task *domain.Task, tokens int64) *provider.Result {
	content, err := domain.NewContent(task.ID, task.Title, domain.ContentTypeText, "generated text", "", nil, domain.ContentStatusFinal)
	if err != nil {
		panic(err)
	}
	return &provider.Result{Content: content, TokensUsed: tokens}
}

type fixture struct {
	tasks       *mocks.TaskStore
	providers   *mocks.ProviderStore
	accounts    *mocks.AccountStore
	assignments *mocks.AssignmentStore
	contents    *mocks.ContentStore
	queue       *queue.MemoryQueue
	registry    *provider.Registry
	pool        *Pool
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		tasks:       mocks.NewTaskStore(),
		providers:   mocks.NewProviderStore(),
		accounts:    mocks.NewAccountStore(),
		assignments: mocks.NewAssignmentStore(),
		contents:    mocks.NewContentStore(),
		queue:       queue.NewMemoryQueue(),
		registry:    provider.NewRegistry(),
	}

	sel := selector.New(f.providers, f.accounts)
	f.pool = NewPool(cfg, f.queue, f.tasks, f.assignments, f.accounts, f.contents,
		sel, f.registry, store.NoopTransactor{}, slog.Default())

	return f
}

// addProvider registers an active provider with one funded account and
// a scriptable integration under the provider name.
func (f *fixture) addProvider(t *testing.T, name string, competencies map[string]int, tokenLimit int64, integration *fakeIntegration) (*domain.Provider, *domain.Account) {
	t.Helper()
	ctx := context.Background()

	p, err := domain.NewProvider(name, "https://api.example.com", "api_key", competencies)
	require.NoError(t, err)
	require.NoError(t, f.providers.Create(ctx, p))

	a, err := domain.NewAccount(p.ID, name+"-account", "encrypted-blob", tokenLimit, nil)
	require.NoError(t, err)
	require.NoError(t, f.accounts.Create(ctx, a))

	if integration != nil {
		f.registry.Register(name, integration)
	}

	return p, a
}

func (f *fixture) addPendingTask(t *testing.T, taskType string, priority int) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(uuid.New(), "test task", "", taskType, priority)
	require.NoError(t, err)
	require.NoError(t, f.tasks.Create(context.Background(), task))
	return task
}

// runAttempt dequeues the next id and runs one attempt cycle against it.
func (f *fixture) runAttempt(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	taskID, err := f.queue.Dequeue(ctx)
	require.NoError(t, err)
	f.pool.processTask(ctx, taskID, slog.Default())
}

func (f *fixture) queueLength(t *testing.T) int64 {
	t.Helper()
	n, err := f.queue.Length(context.Background())
	require.NoError(t, err)
	return n
}

func TestProcessTaskSuccess(t *testing.T) {
	f := newFixture(t, Config{MaxAttempts: 3})
	ctx := context.Background()

	integration := &fakeIntegration{
		generateFn: func(ctx context.Context, task *domain.Task) (*provider.Result, error) {
			return successResult(task, 42), nil
		},
	}
	_, account := f.addProvider(t, "GPT", map[string]int{"text": 8}, 1000, integration)

	task := f.addPendingTask(t, "text", 3)
	require.NoError(t, f.queue.Enqueue(ctx, task.ID, task.Priority))

	f.runAttempt(t)

	got, err := f.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Empty(t, got.ErrorMessage)

	assignments, err := f.assignments.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, domain.AssignmentStatusCompleted, assignments[0].Status)
	assert.Equal(t, 1, assignments[0].AttemptCount)
	assert.Equal(t, int64(42), assignments[0].TokensUsed)

	contents, err := f.contents.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, domain.ContentTypeText, contents[0].Type)

	gotAccount, err := f.accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), gotAccount.TokenUsed)

	assert.Equal(t, int64(0), f.queueLength(t))
}

func TestProcessTaskRetriesThenSucceeds(t *testing.T) {
	f := newFixture(t, Config{MaxAttempts: 3})
	ctx := context.Background()

	integration := &fakeIntegration{}
	integration.generateFn = func(ctx context.Context, task *domain.Task) (*provider.Result, error) {
		if integration.calls <= 2 {
			return nil, errors.New("provider timeout")
		}
		return successResult(task, 10), nil
	}
	f.addProvider(t, "CLAUDE", map[string]int{"code": 9}, 1000, integration)

	task := f.addPendingTask(t, "code", 4)
	require.NoError(t, f.queue.Enqueue(ctx, task.ID, task.Priority))

	// Two failing attempts, each re-enqueueing the task, then success.
	f.runAttempt(t)
	assert.Equal(t, int64(1), f.queueLength(t))
	f.runAttempt(t)
	assert.Equal(t, int64(1), f.queueLength(t))
	f.runAttempt(t)
	assert.Equal(t, int64(0), f.queueLength(t))

	got, err := f.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)

	assignments, err := f.assignments.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 3)
	assert.Equal(t, domain.AssignmentStatusFailed, assignments[0].Status)
	assert.Equal(t, domain.AssignmentStatusFailed, assignments[1].Status)
	assert.Equal(t, domain.AssignmentStatusCompleted, assignments[2].Status)
	for i, a := range assignments {
		assert.Equal(t, i+1, a.AttemptCount)
	}
}

func TestProcessTaskFailsPermanentlyAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, Config{MaxAttempts: 3})
	ctx := context.Background()

	integration := &fakeIntegration{
		generateFn: func(ctx context.Context, task *domain.Task) (*provider.Result, error) {
			return nil, errors.New("provider down")
		},
	}
	f.addProvider(t, "GPT", map[string]int{"text": 8}, 1000, integration)

	task := f.addPendingTask(t, "text", 5)
	require.NoError(t, f.queue.Enqueue(ctx, task.ID, task.Priority))

	f.runAttempt(t)
	f.runAttempt(t)
	f.runAttempt(t)

	got, err := f.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "failed after 3 attempts")

	// No fourth attempt is ever scheduled.
	assert.Equal(t, int64(0), f.queueLength(t))
	assert.Equal(t, 3, integration.calls)

	assignments, err := f.assignments.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 3)
	for _, a := range assignments {
		assert.Equal(t, domain.AssignmentStatusFailed, a.Status)
		assert.Equal(t, "provider down", a.ErrorMessage)
	}

	contents, err := f.contents.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, contents)
}

func TestProcessTaskSelectionExhaustedFailsWithoutAttempt(t *testing.T) {
	f := newFixture(t, Config{MaxAttempts: 3})
	ctx := context.Background()

	// No providers registered at all.
	task := f.addPendingTask(t, "text", 3)
	require.NoError(t, f.queue.Enqueue(ctx, task.ID, task.Priority))

	f.runAttempt(t)

	got, err := f.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "provider selection failed")

	assignments, err := f.assignments.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)

	assert.Equal(t, int64(0), f.queueLength(t))
}

func TestProcessTaskSkipsNonPendingTask(t *testing.T) {
	f := newFixture(t, Config{MaxAttempts: 3})
	ctx := context.Background()

	integration := &fakeIntegration{
		generateFn: func(ctx context.Context, task *domain.Task) (*provider.Result, error) {
			return successResult(task, 1), nil
		},
	}
	f.addProvider(t, "GPT", map[string]int{"text": 8}, 1000, integration)

	task := f.addPendingTask(t, "text", 3)
	task.Status = domain.TaskStatusCompleted
	require.NoError(t, f.tasks.Update(ctx, task))
	require.NoError(t, f.queue.Enqueue(ctx, task.ID, task.Priority))

	f.runAttempt(t)

	assert.Equal(t, 0, integration.calls)
	assignments, err := f.assignments.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestProcessTaskDropsStaleQueueEntry(t *testing.T) {
	f := newFixture(t, Config{MaxAttempts: 3})
	ctx := context.Background()

	ghostID := uuid.New()
	require.NoError(t, f.queue.Enqueue(ctx, ghostID, 3))

	f.runAttempt(t)

	assert.Equal(t, int64(0), f.queueLength(t))
}

func TestProcessTaskMissingIntegrationCountsAsFailedAttempt(t *testing.T) {
	f := newFixture(t, Config{MaxAttempts: 3})
	ctx := context.Background()

	// Provider exists but no integration is registered for it.
	f.addProvider(t, "MYSTERY", map[string]int{"text": 8}, 1000, nil)

	task := f.addPendingTask(t, "text", 3)
	require.NoError(t, f.queue.Enqueue(ctx, task.ID, task.Priority))

	f.runAttempt(t)

	got, err := f.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, got.Status)
	assert.Contains(t, got.ErrorMessage, "no integration registered")

	assignments, err := f.assignments.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, domain.AssignmentStatusFailed, assignments[0].Status)

	// Back on the queue for the next attempt.
	assert.Equal(t, int64(1), f.queueLength(t))
}

func TestProcessTaskNilResultIsFailure(t *testing.T) {
	f := newFixture(t, Config{MaxAttempts: 3})
	ctx := context.Background()

	integration := &fakeIntegration{
		generateFn: func(ctx context.Context, task *domain.Task) (*provider.Result, error) {
			return nil, nil
		},
	}
	f.addProvider(t, "GPT", map[string]int{"text": 8}, 1000, integration)

	task := f.addPendingTask(t, "text", 3)
	require.NoError(t, f.queue.Enqueue(ctx, task.ID, task.Priority))

	f.runAttempt(t)

	got, err := f.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, got.Status)
	assert.Contains(t, got.ErrorMessage, "no content")
}

func TestPoolDrainsQueue(t *testing.T) {
	f := newFixture(t, Config{Count: 2, PollInterval: 10 * time.Millisecond, MaxAttempts: 3})
	ctx := context.Background()

	integration := &fakeIntegration{
		generateFn: func(ctx context.Context, task *domain.Task) (*provider.Result, error) {
			return successResult(task, 5), nil
		},
	}
	f.addProvider(t, "GPT", map[string]int{"text": 8}, 1000, integration)

	var taskIDs []uuid.UUID
	for i := 0; i < 5; i++ {
		task := f.addPendingTask(t, "text", 3)
		require.NoError(t, f.queue.Enqueue(ctx, task.ID, task.Priority))
		taskIDs = append(taskIDs, task.ID)
	}

	f.pool.Start()
	defer f.pool.Stop()

	require.Eventually(t, func() bool {
		for _, id := range taskIDs {
			task, err := f.tasks.GetByID(ctx, id)
			if err != nil || task.Status != domain.TaskStatusCompleted {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond, "all tasks should complete")

	assert.Equal(t, int64(0), f.queueLength(t))
}

func TestPoolSurvivesTaskFailures(t *testing.T) {
	f := newFixture(t, Config{Count: 1, PollInterval: 10 * time.Millisecond, MaxAttempts: 1})
	ctx := context.Background()

	integration := &fakeIntegration{}
	integration.generateFn = func(ctx context.Context, task *domain.Task) (*provider.Result, error) {
		if task.TaskType == "text" {
			return nil, errors.New("boom")
		}
		return successResult(task, 5), nil
	}
	f.addProvider(t, "GPT", map[string]int{"text": 8, "code": 7}, 1000, integration)

	failing := f.addPendingTask(t, "text", 5)
	healthy := f.addPendingTask(t, "code", 3)
	require.NoError(t, f.queue.Enqueue(ctx, failing.ID, failing.Priority))
	require.NoError(t, f.queue.Enqueue(ctx, healthy.ID, healthy.Priority))

	f.pool.Start()
	defer f.pool.Stop()

	require.Eventually(t, func() bool {
		a, err := f.tasks.GetByID(ctx, failing.ID)
		if err != nil || a.Status != domain.TaskStatusFailed {
			return false
		}
		b, err := f.tasks.GetByID(ctx, healthy.ID)
		return err == nil && b.Status == domain.TaskStatusCompleted
	}, 5*time.Second, 20*time.Millisecond, "failing task should fail, healthy task should complete")
}
