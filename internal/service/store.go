package service

import (
	"context"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/repository"
)

// Store is the persistence contract shared by the Postgres and in-memory
// backends.
//
// UpdateTask and DeleteTask run their callback while holding the task's
// exclusive lock. The callback sees a private copy of the task; returning an
// error discards every change. UpdateTask rejects a result whose history is not
// an append-only extension of the stored one.
type Store interface {
	Ping(ctx context.Context) error

	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, filter repository.UserFilter) ([]*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)

	GetProject(ctx context.Context, id string) (*domain.Project, error)
	ListProjects(ctx context.Context) ([]*domain.Project, error)
	CreateProject(ctx context.Context, project *domain.Project) (*domain.Project, error)

	CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	ListTasks(ctx context.Context, filter repository.TaskFilter) ([]*domain.Task, error)
	UpdateTask(ctx context.Context, id string, fn func(ctx context.Context, task *domain.Task) error) (*domain.Task, error)
	DeleteTask(ctx context.Context, id string, fn func(ctx context.Context, task *domain.Task) (*domain.TaskDeletion, error)) error
	ListTaskDeletions(ctx context.Context) ([]*domain.TaskDeletion, error)
}

var _ Store = (*repository.Store)(nil)
