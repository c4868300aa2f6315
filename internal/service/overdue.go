package service

import (
	"context"
	"fmt"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/repository"
)

// ListOverdue returns every unfinished task whose due date has passed,
// regardless of owner. It is a system-level scan for operators and is not
// exposed to end users.
func (s *TaskService) ListOverdue(ctx context.Context) ([]*domain.Task, error) {
	now := s.now()

	tasks, err := s.store.ListTasks(ctx, repository.TaskFilter{
		ExcludeStatuses: []domain.TaskStatus{domain.TaskStatusCompleted},
		DueBefore:       &now,
	})
	if err != nil {
		return nil, fmt.Errorf("list overdue tasks: %w", err)
	}

	overdue := make([]*domain.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.IsOverdue(now) {
			overdue = append(overdue, task)
		}
	}
	return overdue, nil
}
