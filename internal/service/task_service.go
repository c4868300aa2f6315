package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mtlprog/teamtask/internal/authz"
	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/repository"
)

// Option configures a service.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for history entries and timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TaskService performs task operations on behalf of an authenticated Identity.
// Every operation is authorized by authz; status changes are appended to the
// task's history in the same critical section that changes the status.
type TaskService struct {
	store Store
	now   func() time.Time
}

// NewTaskService creates a new TaskService.
func NewTaskService(store Store, opts ...Option) *TaskService {
	o := buildOptions(opts)
	return &TaskService{
		store: store,
		now:   o.now,
	}
}

// CreateTaskParams describes a new task. An empty OwnerID assigns the task to
// the caller.
type CreateTaskParams struct {
	Title       string
	Description string
	OwnerID     string
	ProjectID   *string
	DueDate     *time.Time
}

// UpdateTaskParams is a partial update. Nil fields are left unchanged.
// A Status routes through the same checks as Transition.
type UpdateTaskParams struct {
	Title        *string
	Description  *string
	OwnerID      *string
	ProjectID    *string
	ClearProject bool
	DueDate      *time.Time
	ClearDueDate bool
	Status       *domain.TaskStatus
	Note         *string
}

// IsEmpty reports whether the patch changes nothing.
func (p UpdateTaskParams) IsEmpty() bool {
	return p.Title == nil &&
		p.Description == nil &&
		p.OwnerID == nil &&
		p.ProjectID == nil && !p.ClearProject &&
		p.DueDate == nil && !p.ClearDueDate &&
		p.Status == nil
}

// ListOptions filters List results. The status filter is applied after the
// visible scope has been computed.
type ListOptions struct {
	Status *domain.TaskStatus
}

// Create creates a task owned by params.OwnerID (or the caller) with a
// pending history entry attributed to the caller.
func (s *TaskService) Create(ctx context.Context, identity domain.Identity, params CreateTaskParams) (*domain.Task, error) {
	if !identity.IsAuthenticated() {
		return nil, fmt.Errorf("%w: unrecognized identity", domain.ErrForbidden)
	}

	title, err := validateTitle(params.Title)
	if err != nil {
		return nil, err
	}
	description, err := validateDescription(params.Description)
	if err != nil {
		return nil, err
	}

	ownerID := params.OwnerID
	if ownerID == "" {
		ownerID = identity.ID
	}
	if ownerID != identity.ID && !authz.CanAssignToOthers(identity) {
		return nil, fmt.Errorf("%w: %s cannot assign tasks to other users", domain.ErrForbidden, identity.Role)
	}

	owner, err := s.store.GetUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if params.ProjectID != nil {
		if _, err := s.store.GetProject(ctx, *params.ProjectID); err != nil {
			return nil, err
		}
	}

	if err := authz.AuthorizeCreate(identity, ownerID, authz.NewUsers(owner)); err != nil {
		return nil, err
	}

	task := &domain.Task{
		Title:       title,
		Description: description,
		OwnerID:     ownerID,
		CreatorID:   identity.ID,
		ProjectID:   params.ProjectID,
		DueDate:     params.DueDate,
	}
	entry := task.AppendStatus(domain.TaskStatusPending, &identity.ID, s.now(), nil)
	task.CreatedAt = entry.ChangedAt
	task.UpdatedAt = entry.ChangedAt

	created, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	slog.Info("task created",
		"task_id", created.ID,
		"owner_id", created.OwnerID,
		"actor_id", identity.ID,
	)

	return created, nil
}

// List returns the tasks the caller may see, oldest first.
func (s *TaskService) List(ctx context.Context, identity domain.Identity, opts ListOptions) ([]*domain.Task, error) {
	if opts.Status != nil && !opts.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, *opts.Status)
	}

	candidates, roster, err := s.candidates(ctx, identity)
	if err != nil {
		return nil, err
	}

	visible := authz.VisibleScope(identity, candidates, roster)
	if opts.Status == nil {
		return visible, nil
	}

	filtered := make([]*domain.Task, 0, len(visible))
	for _, task := range visible {
		if task.Status == *opts.Status {
			filtered = append(filtered, task)
		}
	}
	return filtered, nil
}

// Get returns a single task if the caller may see it.
func (s *TaskService) Get(ctx context.Context, identity domain.Identity, taskID string) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	roster, err := s.ownerRoster(ctx, task.OwnerID)
	if err != nil {
		return nil, err
	}
	if err := authz.AuthorizeView(identity, task, roster); err != nil {
		return nil, err
	}
	return task, nil
}

// Transition moves a task to newStatus and records the change. Moving a task
// to the status it already has is allowed and still recorded.
func (s *TaskService) Transition(
	ctx context.Context,
	identity domain.Identity,
	taskID string,
	newStatus domain.TaskStatus,
	note *string,
) (*domain.Task, error) {
	var oldStatus domain.TaskStatus

	task, err := s.store.UpdateTask(ctx, taskID, func(ctx context.Context, task *domain.Task) error {
		roster, err := s.ownerRoster(ctx, task.OwnerID)
		if err != nil {
			return err
		}
		if err := checkTransition(identity, task, newStatus, roster); err != nil {
			return err
		}

		oldStatus = task.Status
		appendStatus(identity, task, newStatus, note, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("task status changed",
		"task_id", task.ID,
		"actor_id", identity.ID,
		"old_status", oldStatus,
		"new_status", newStatus,
	)

	return task, nil
}

// Update applies a partial update atomically. Reassignment requires the
// right to mutate the task and the right to assign to the new owner.
func (s *TaskService) Update(
	ctx context.Context,
	identity domain.Identity,
	taskID string,
	params UpdateTaskParams,
) (*domain.Task, error) {
	if params.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrValidation)
	}
	if params.ProjectID != nil && params.ClearProject {
		return nil, fmt.Errorf("%w: project cannot be set and cleared at once", domain.ErrValidation)
	}
	if params.DueDate != nil && params.ClearDueDate {
		return nil, fmt.Errorf("%w: due date cannot be set and cleared at once", domain.ErrValidation)
	}
	if params.Title != nil {
		title, err := validateTitle(*params.Title)
		if err != nil {
			return nil, err
		}
		params.Title = &title
	}
	if params.Description != nil {
		description, err := validateDescription(*params.Description)
		if err != nil {
			return nil, err
		}
		params.Description = &description
	}

	var oldStatus domain.TaskStatus
	var oldOwner string

	task, err := s.store.UpdateTask(ctx, taskID, func(ctx context.Context, task *domain.Task) error {
		roster, err := s.ownerRoster(ctx, task.OwnerID)
		if err != nil {
			return err
		}
		if err := authz.AuthorizeMutate(identity, task, roster); err != nil {
			return err
		}
		if params.Status != nil {
			if err := checkTransition(identity, task, *params.Status, roster); err != nil {
				return err
			}
		}

		oldOwner = task.OwnerID
		if params.OwnerID != nil && *params.OwnerID != task.OwnerID {
			if !authz.CanAssignToOthers(identity) {
				return fmt.Errorf("%w: %s cannot assign tasks to other users", domain.ErrForbidden, identity.Role)
			}
			newOwner, err := s.store.GetUser(ctx, *params.OwnerID)
			if err != nil {
				return err
			}
			roster[newOwner.ID] = newOwner
			if err := authz.AuthorizeReassign(identity, task, newOwner.ID, roster); err != nil {
				return err
			}
			task.OwnerID = newOwner.ID
		}

		if params.ProjectID != nil {
			if _, err := s.store.GetProject(ctx, *params.ProjectID); err != nil {
				return err
			}
			project := *params.ProjectID
			task.ProjectID = &project
		}
		if params.ClearProject {
			task.ProjectID = nil
		}
		if params.DueDate != nil {
			due := *params.DueDate
			task.DueDate = &due
		}
		if params.ClearDueDate {
			task.DueDate = nil
		}
		if params.Title != nil {
			task.Title = *params.Title
		}
		if params.Description != nil {
			task.Description = *params.Description
		}

		now := s.now()
		task.Touch(now)
		if params.Status != nil {
			oldStatus = task.Status
			appendStatus(identity, task, *params.Status, params.Note, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("task updated",
		"task_id", task.ID,
		"actor_id", identity.ID,
	)
	if task.OwnerID != oldOwner {
		slog.Info("task reassigned",
			"task_id", task.ID,
			"actor_id", identity.ID,
			"old_owner_id", oldOwner,
			"new_owner_id", task.OwnerID,
		)
	}
	if params.Status != nil {
		slog.Info("task status changed",
			"task_id", task.ID,
			"actor_id", identity.ID,
			"old_status", oldStatus,
			"new_status", *params.Status,
		)
	}

	return task, nil
}

// Delete hard-deletes a task and leaves a TaskDeletion record behind.
func (s *TaskService) Delete(ctx context.Context, identity domain.Identity, taskID string) error {
	var deletion *domain.TaskDeletion

	err := s.store.DeleteTask(ctx, taskID, func(ctx context.Context, task *domain.Task) (*domain.TaskDeletion, error) {
		roster, err := s.ownerRoster(ctx, task.OwnerID)
		if err != nil {
			return nil, err
		}
		if err := authz.AuthorizeMutate(identity, task, roster); err != nil {
			return nil, err
		}

		deletion = domain.NewTaskDeletion(task, identity.ID, s.now())
		return deletion, nil
	})
	if err != nil {
		return err
	}

	slog.Info("task deleted",
		"task_id", taskID,
		"actor_id", identity.ID,
		"history_length", deletion.HistoryLength,
	)

	return nil
}

// ListDeletions returns every deletion record. Only super-admins may read them.
func (s *TaskService) ListDeletions(ctx context.Context, identity domain.Identity) ([]*domain.TaskDeletion, error) {
	if !identity.IsAuthenticated() || identity.Role != domain.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: only super-admins may read deletion records", domain.ErrForbidden)
	}
	return s.store.ListTaskDeletions(ctx)
}

// candidates returns the tasks that could possibly be visible to identity
// together with the roster needed to decide. The owner filter only narrows
// the query; VisibleScope makes the decision.
func (s *TaskService) candidates(ctx context.Context, identity domain.Identity) ([]*domain.Task, authz.Roster, error) {
	if !identity.IsAuthenticated() {
		return nil, nil, nil
	}

	var filter repository.TaskFilter
	roster := authz.Users{}

	switch identity.Role {
	case domain.RoleSuperAdmin:
	case domain.RoleManager:
		reports, err := s.store.ListUsers(ctx, repository.UserFilter{ManagerID: &identity.ID})
		if err != nil {
			return nil, nil, fmt.Errorf("list direct reports: %w", err)
		}
		filter.OwnerIDs = []string{identity.ID}
		for _, u := range reports {
			filter.OwnerIDs = append(filter.OwnerIDs, u.ID)
		}
		roster = authz.NewUsers(reports...)
	case domain.RoleUser:
		filter.OwnerIDs = []string{identity.ID}
	}

	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, roster, nil
}

// ownerRoster resolves the given users. Missing users are left out, which
// makes every relationship check against them fail.
func (s *TaskService) ownerRoster(ctx context.Context, userIDs ...string) (authz.Users, error) {
	roster := make(authz.Users, len(userIDs))
	for _, id := range userIDs {
		user, err := s.store.GetUser(ctx, id)
		if errors.Is(err, domain.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load user %s: %w", id, err)
		}
		roster[user.ID] = user
	}
	return roster, nil
}

// checkTransition authorizes a status change and then validates the status.
func checkTransition(identity domain.Identity, task *domain.Task, status domain.TaskStatus, roster authz.Roster) error {
	if err := authz.AuthorizeStatusChange(identity, task, status, roster); err != nil {
		return err
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidState, status)
	}
	return nil
}

func appendStatus(identity domain.Identity, task *domain.Task, status domain.TaskStatus, note *string, at time.Time) {
	text := fmt.Sprintf("Status changed to %s", status)
	if note != nil && strings.TrimSpace(*note) != "" {
		text = strings.TrimSpace(*note)
	}
	actor := identity.ID
	task.AppendStatus(status, &actor, at, &text)
}
