// Package mocks provides in-memory store implementations used by tests
// across packages. The fakes honor the store interface contracts (sentinel
// errors, ordering) but keep everything in process memory; WithTx returns
// the same instance since there is no real transaction to scope.
package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/store"
)

// TaskStore is an in-memory store.TaskStore.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	// UpdateErr, when set, is returned by Update to simulate persistence
	// failures.
	UpdateErr error
}

// NewTaskStore returns an empty in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *task
	return &cp, nil
}

func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	if _, ok := s.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	cp := *task
	cp.UpdatedAt = time.Now().UTC()
	s.tasks[task.ID] = &cp
	return nil
}

func (s *TaskStore) ListPending(ctx context.Context) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []*domain.Task
	for _, task := range s.tasks {
		if task.Status == domain.TaskStatusPending {
			cp := *task
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	return pending, nil
}

func (s *TaskStore) WithTx(tx *sql.Tx) store.TaskStore { return s }

// ProviderStore is an in-memory store.ProviderStore. Providers are listed
// in insertion order, matching the creation-order guarantee of the
// Postgres implementation.
type ProviderStore struct {
	mu        sync.Mutex
	providers []*domain.Provider
}

// NewProviderStore returns an empty in-memory provider store.
func NewProviderStore() *ProviderStore {
	return &ProviderStore{}
}

func (s *ProviderStore) Create(ctx context.Context, provider *domain.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.providers {
		if p.Name == provider.Name {
			return store.ErrProviderNameExists
		}
	}
	cp := *provider
	s.providers = append(s.providers, &cp)
	return nil
}

func (s *ProviderStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.providers {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrProviderNotFound
}

func (s *ProviderStore) List(ctx context.Context) ([]*domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *ProviderStore) ListActive(ctx context.Context) ([]*domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []*domain.Provider
	for _, p := range s.providers {
		if p.Status == domain.ProviderStatusActive {
			cp := *p
			active = append(active, &cp)
		}
	}
	return active, nil
}

func (s *ProviderStore) Update(ctx context.Context, provider *domain.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.providers {
		if p.ID == provider.ID {
			cp := *provider
			s.providers[i] = &cp
			return nil
		}
	}
	return store.ErrProviderNotFound
}

func (s *ProviderStore) WithTx(tx *sql.Tx) store.ProviderStore { return s }

// AccountStore is an in-memory store.AccountStore.
type AccountStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.Account

	// UpdateErr, when set, is returned by Update to simulate persistence
	// failures in the reset job.
	UpdateErr error

	// UpdateCount tracks how many Update calls were made, for idempotence
	// assertions.
	UpdateCount int
}

// NewAccountStore returns an empty in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[uuid.UUID]*domain.Account)}
}

func (s *AccountStore) Create(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *AccountStore) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.Account, error) {
	return s.list(func(a *domain.Account) bool { return a.ProviderID == providerID })
}

func (s *AccountStore) ListActiveByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.Account, error) {
	return s.list(func(a *domain.Account) bool {
		return a.ProviderID == providerID && a.Status == domain.AccountStatusActive
	})
}

func (s *AccountStore) ListResetDue(ctx context.Context, now time.Time) ([]*domain.Account, error) {
	return s.list(func(a *domain.Account) bool {
		return a.ResetDate != nil && !a.ResetDate.After(now) && a.TokenUsed > 0
	})
}

func (s *AccountStore) list(keep func(*domain.Account) bool) ([]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Account
	for _, a := range s.accounts {
		if keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *AccountStore) Update(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	if _, ok := s.accounts[account.ID]; !ok {
		return store.ErrAccountNotFound
	}
	cp := *account
	s.accounts[account.ID] = &cp
	s.UpdateCount++
	return nil
}

func (s *AccountStore) AddTokensUsed(ctx context.Context, id uuid.UUID, tokens int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return store.ErrAccountNotFound
	}
	account.TokenUsed += tokens
	return nil
}

func (s *AccountStore) WithTx(tx *sql.Tx) store.AccountStore { return s }

// AssignmentStore is an in-memory store.AssignmentStore.
type AssignmentStore struct {
	mu          sync.Mutex
	assignments []*domain.Assignment
}

// NewAssignmentStore returns an empty in-memory assignment store.
func NewAssignmentStore() *AssignmentStore {
	return &AssignmentStore{}
}

func (s *AssignmentStore) Create(ctx context.Context, assignment *domain.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *assignment
	s.assignments = append(s.assignments, &cp)
	return nil
}

func (s *AssignmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrAssignmentNotFound
}

func (s *AssignmentStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Assignment
	for _, a := range s.assignments {
		if a.TaskID == taskID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *AssignmentStore) CountByTask(ctx context.Context, taskID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, a := range s.assignments {
		if a.TaskID == taskID {
			count++
		}
	}
	return count, nil
}

func (s *AssignmentStore) Update(ctx context.Context, assignment *domain.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.assignments {
		if a.ID == assignment.ID {
			cp := *assignment
			s.assignments[i] = &cp
			return nil
		}
	}
	return store.ErrAssignmentNotFound
}

func (s *AssignmentStore) WithTx(tx *sql.Tx) store.AssignmentStore { return s }

// ContentStore is an in-memory store.ContentStore.
type ContentStore struct {
	mu       sync.Mutex
	contents []*domain.Content
}

// NewContentStore returns an empty in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{}
}

func (s *ContentStore) Create(ctx context.Context, content *domain.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *content
	s.contents = append(s.contents, &cp)
	return nil
}

func (s *ContentStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Content
	for _, c := range s.contents {
		if c.TaskID == taskID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *ContentStore) WithTx(tx *sql.Tx) store.ContentStore { return s }

// UserStore is an in-memory store.UserStore.
type UserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

// NewUserStore returns an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *UserStore) WithTx(tx *sql.Tx) store.UserStore { return s }
