// Package memory is an in-process task store for development and tests.
//
// Tasks are stored as immutable snapshots: a mutation works on a private copy
// and swaps it in whole, so readers never observe a half-applied change.
// Mutations of the same task are serialized by a per-task mutex.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/repository"
)

// Store implements the task store in memory.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*domain.User
	emails    map[string]string
	projects  map[string]*domain.Project
	tasks     map[string]*domain.Task
	deletions []*domain.TaskDeletion

	locksMu sync.Mutex
	locks   map[string]*taskLock

	now func() time.Time
}

type taskLock struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]*domain.User),
		emails:   make(map[string]string),
		projects: make(map[string]*domain.Project),
		tasks:    make(map[string]*domain.Task),
		locks:    make(map[string]*taskLock),
		now:      time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

// GetUserByEmail retrieves a user by login email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

// ListUsers returns users matching the filter ordered by username.
func (s *Store) ListUsers(_ context.Context, filter repository.UserFilter) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := []*domain.User{}
	for _, user := range s.users {
		if filter.ManagerID != nil && !user.ReportsTo(*filter.ManagerID) {
			continue
		}
		if filter.IDs != nil && !slices.Contains(filter.IDs, user.ID) {
			continue
		}
		users = append(users, cloneUser(user))
	}
	slices.SortFunc(users, func(a, b *domain.User) int {
		if c := strings.Compare(a.Username, b.Username); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return users, nil
}

// CreateUser inserts a user and fills ID and CreatedAt.
func (s *Store) CreateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.emails[user.Email]; taken {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmailTaken, user.Email)
	}
	if user.ManagerID != nil {
		if _, ok := s.users[*user.ManagerID]; !ok {
			return nil, fmt.Errorf("manager: %w", domain.ErrUserNotFound)
		}
	}

	created := cloneUser(user)
	created.ID = uuid.NewString()
	created.CreatedAt = s.now()
	s.users[created.ID] = created
	s.emails[created.Email] = created.ID

	return cloneUser(created), nil
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(_ context.Context, id string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	p := *project
	return &p, nil
}

// ListProjects returns every project ordered by name.
func (s *Store) ListProjects(_ context.Context) ([]*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]*domain.Project, 0, len(s.projects))
	for _, project := range s.projects {
		p := *project
		projects = append(projects, &p)
	}
	slices.SortFunc(projects, func(a, b *domain.Project) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return projects, nil
}

// CreateProject inserts a project and fills ID and CreatedAt.
func (s *Store) CreateProject(_ context.Context, project *domain.Project) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := *project
	p.ID = uuid.NewString()
	p.CreatedAt = s.now()
	s.projects[p.ID] = &p

	created := p
	return &created, nil
}

// CreateTask stores the task with its seeded history and assigns an ID.
func (s *Store) CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if err := task.CheckHistory(); err != nil {
		return nil, err
	}

	created := task.Clone()
	created.ID = uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := s.users[created.OwnerID]; !ok {
		return nil, fmt.Errorf("owner: %w", domain.ErrUserNotFound)
	}
	if created.ProjectID != nil {
		if _, ok := s.projects[*created.ProjectID]; !ok {
			return nil, domain.ErrProjectNotFound
		}
	}
	s.tasks[created.ID] = created

	return created.Clone(), nil
}

// GetTask retrieves a task with its full history.
func (s *Store) GetTask(_ context.Context, id string) (*domain.Task, error) {
	task, ok := s.snapshot(id)
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return task.Clone(), nil
}

// ListTasks returns tasks matching the filter, oldest first.
func (s *Store) ListTasks(_ context.Context, filter repository.TaskFilter) ([]*domain.Task, error) {
	s.mu.RLock()
	tasks := make([]*domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if filter.Matches(task) {
			tasks = append(tasks, task)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(tasks, func(a, b *domain.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	for i, task := range tasks {
		tasks[i] = task.Clone()
	}
	return tasks, nil
}

// UpdateTask hands a copy of the task to fn under the task's lock and stores
// the result. The copy must keep every existing history entry.
func (s *Store) UpdateTask(ctx context.Context, id string, fn func(ctx context.Context, task *domain.Task) error) (*domain.Task, error) {
	unlock := s.lockTask(id)
	defer unlock()

	current, ok := s.snapshot(id)
	if !ok {
		return nil, domain.ErrTaskNotFound
	}

	next := current.Clone()
	if err := fn(ctx, next); err != nil {
		return nil, err
	}
	if err := next.VerifyAppendOnly(current); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if next.ProjectID != nil {
		if _, ok := s.projects[*next.ProjectID]; !ok {
			return nil, domain.ErrProjectNotFound
		}
	}
	if _, ok := s.users[next.OwnerID]; !ok {
		return nil, fmt.Errorf("owner: %w", domain.ErrUserNotFound)
	}
	s.tasks[id] = next

	return next.Clone(), nil
}

// DeleteTask removes the task under its lock and keeps the record fn returns.
func (s *Store) DeleteTask(ctx context.Context, id string, fn func(ctx context.Context, task *domain.Task) (*domain.TaskDeletion, error)) error {
	unlock := s.lockTask(id)
	defer unlock()

	current, ok := s.snapshot(id)
	if !ok {
		return domain.ErrTaskNotFound
	}

	deletion, err := fn(ctx, current.Clone())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	record := *deletion
	record.ID = uuid.NewString()
	deletion.ID = record.ID
	s.deletions = append(s.deletions, &record)
	delete(s.tasks, id)

	return nil
}

// ListTaskDeletions returns every deletion record, newest first.
func (s *Store) ListTaskDeletions(_ context.Context) ([]*domain.TaskDeletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deletions := make([]*domain.TaskDeletion, 0, len(s.deletions))
	for i := len(s.deletions) - 1; i >= 0; i-- {
		d := *s.deletions[i]
		deletions = append(deletions, &d)
	}
	return deletions, nil
}

func (s *Store) snapshot(id string) (*domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	return task, ok
}

// lockTask acquires the per-task mutex for id and returns its release func.
// Mutex entries are dropped once nobody holds or waits for them.
func (s *Store) lockTask(id string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &taskLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	if u.ManagerID != nil {
		m := *u.ManagerID
		c.ManagerID = &m
	}
	return &c
}
