package service

import (
	"context"
	"fmt"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/repository"
)

// Summary aggregates the tasks visible to one caller.
type Summary struct {
	Total    int
	ByStatus map[domain.TaskStatus]int
	Overdue  int
}

// Summary counts the caller's visible tasks by status.
func (s *TaskService) Summary(ctx context.Context, identity domain.Identity) (*Summary, error) {
	tasks, err := s.List(ctx, identity, ListOptions{})
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Total:    len(tasks),
		ByStatus: make(map[domain.TaskStatus]int, len(domain.TaskStatuses)),
	}
	for _, status := range domain.TaskStatuses {
		summary.ByStatus[status] = 0
	}

	now := s.now()
	for _, task := range tasks {
		summary.ByStatus[task.Status]++
		if task.IsOverdue(now) {
			summary.Overdue++
		}
	}
	return summary, nil
}

// AssignableUsers lists the users the caller may name as a task owner.
func (s *TaskService) AssignableUsers(ctx context.Context, identity domain.Identity) ([]*domain.User, error) {
	if !identity.IsAuthenticated() {
		return nil, fmt.Errorf("%w: unrecognized identity", domain.ErrForbidden)
	}

	switch identity.Role {
	case domain.RoleSuperAdmin:
		return s.store.ListUsers(ctx, repository.UserFilter{})

	case domain.RoleManager:
		self, err := s.store.GetUser(ctx, identity.ID)
		if err != nil {
			return nil, err
		}
		reports, err := s.store.ListUsers(ctx, repository.UserFilter{ManagerID: &identity.ID})
		if err != nil {
			return nil, err
		}
		return append([]*domain.User{self}, reports...), nil

	default:
		self, err := s.store.GetUser(ctx, identity.ID)
		if err != nil {
			return nil, err
		}
		return []*domain.User{self}, nil
	}
}
