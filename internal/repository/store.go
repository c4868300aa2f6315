package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/teamtask/internal/domain"
)

// Store is the Postgres task store. Every task mutation runs in one
// transaction holding the task's row lock, so mutations of one task are
// serialized and a failed mutation leaves no partial history behind.
type Store struct {
	pool      *pgxpool.Pool
	users     *UserRepository
	projects  *ProjectRepository
	tasks     *TaskRepository
	history   *StatusHistoryRepository
	deletions *TaskDeletionRepository
}

// NewStore creates a Store over the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:      pool,
		users:     NewUserRepository(pool),
		projects:  NewProjectRepository(pool),
		tasks:     NewTaskRepository(pool),
		history:   NewStatusHistoryRepository(pool),
		deletions: NewTaskDeletionRepository(pool),
	}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetUserByEmail retrieves a user by login email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.users.GetByEmail(ctx, email)
}

// ListUsers returns users matching the filter.
func (s *Store) ListUsers(ctx context.Context, filter UserFilter) ([]*domain.User, error) {
	return s.users.List(ctx, filter)
}

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	return s.users.Create(ctx, user)
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return s.projects.GetByID(ctx, id)
}

// ListProjects returns every project.
func (s *Store) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	return s.projects.List(ctx)
}

// CreateProject inserts a project.
func (s *Store) CreateProject(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	return s.projects.Create(ctx, project)
}

// CreateTask inserts the task together with its seeded history.
func (s *Store) CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if err := task.CheckHistory(); err != nil {
		return nil, err
	}

	created := task.Clone()
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.tasks.Create(ctx, tx, created); err != nil {
			return err
		}
		return s.history.Append(ctx, tx, created.ID, 0, created.StatusHistory)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetTask retrieves a task with its full history. Row and history come from
// one snapshot.
func (s *Store) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	var task *domain.Task
	err := s.inReadTx(ctx, func(ctx context.Context) error {
		t, err := s.tasks.GetByID(ctx, id)
		if err != nil {
			return err
		}
		t.StatusHistory, err = s.history.GetByTaskID(ctx, id)
		if err != nil {
			return err
		}
		if err := t.CheckHistory(); err != nil {
			return fmt.Errorf("load task %s: %w", id, err)
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns tasks matching the filter with their histories, oldest
// first. Rows and histories come from one snapshot.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := s.inReadTx(ctx, func(ctx context.Context) error {
		var err error
		tasks, err = s.tasks.List(ctx, filter)
		if err != nil {
			return err
		}

		ids := make([]string, len(tasks))
		for i, task := range tasks {
			ids[i] = task.ID
		}
		histories, err := s.history.GetByTaskIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			task.StatusHistory = histories[task.ID]
			if err := task.CheckHistory(); err != nil {
				return fmt.Errorf("load task %s: %w", task.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateTask locks the task, hands a copy to fn and persists the result.
// The copy must keep every existing history entry; new entries are appended.
// Nothing is written when fn returns an error.
func (s *Store) UpdateTask(ctx context.Context, id string, fn func(ctx context.Context, task *domain.Task) error) (*domain.Task, error) {
	var updated *domain.Task
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := s.lockTask(ctx, tx, id)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := fn(withTx(ctx, tx), next); err != nil {
			return err
		}
		if err := next.VerifyAppendOnly(current); err != nil {
			return err
		}

		if err := s.tasks.Update(ctx, tx, next); err != nil {
			return err
		}
		n := len(current.StatusHistory)
		if err := s.history.Append(ctx, tx, id, n, next.StatusHistory[n:]); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTask locks the task, asks fn for the deletion record and removes the
// task and its history, storing the record in the same transaction.
func (s *Store) DeleteTask(ctx context.Context, id string, fn func(ctx context.Context, task *domain.Task) (*domain.TaskDeletion, error)) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := s.lockTask(ctx, tx, id)
		if err != nil {
			return err
		}

		deletion, err := fn(withTx(ctx, tx), current.Clone())
		if err != nil {
			return err
		}
		if err := s.deletions.Create(ctx, tx, deletion); err != nil {
			return err
		}
		return s.tasks.Delete(ctx, tx, id)
	})
}

// ListTaskDeletions returns every deletion record, newest first.
func (s *Store) ListTaskDeletions(ctx context.Context) ([]*domain.TaskDeletion, error) {
	return s.deletions.List(ctx)
}

func (s *Store) lockTask(ctx context.Context, tx pgx.Tx, id string) (*domain.Task, error) {
	task, err := s.tasks.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	task.StatusHistory, err = s.history.GetByTaskIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := task.CheckHistory(); err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}
	return task, nil
}

// inReadTx runs fn in a read-only REPEATABLE READ transaction so that every
// statement it issues through ctx sees the same snapshot.
func (s *Store) inReadTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback read transaction", "error", err)
		}
	}()

	if err := fn(withTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit read transaction: %w", err)
	}
	return nil
}

// inTx runs fn in a transaction and commits when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
