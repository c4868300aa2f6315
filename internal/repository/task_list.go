package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mtlprog/teamtask/internal/domain"
)

// TaskFilter narrows the candidate set returned by List. It only prunes rows
// the caller could never see; authorization is still decided by authz.
type TaskFilter struct {
	OwnerIDs        []string            // nil means any owner; empty means none
	ExcludeStatuses []domain.TaskStatus // drop tasks currently in these statuses
	DueBefore       *time.Time          // only tasks with a due date strictly before this instant
}

// Matches reports whether task passes the filter. It mirrors the SQL built by List.
func (f TaskFilter) Matches(task *domain.Task) bool {
	if f.OwnerIDs != nil && !slices.Contains(f.OwnerIDs, task.OwnerID) {
		return false
	}
	if slices.Contains(f.ExcludeStatuses, task.Status) {
		return false
	}
	if f.DueBefore != nil && (task.DueDate == nil || !task.DueDate.Before(*f.DueBefore)) {
		return false
	}
	return true
}

// List retrieves task rows matching the filter in creation order, without history.
func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error) {
	qb := psql.Select(taskColumns...).From("tasks")

	if filter.OwnerIDs != nil {
		owners := make([]string, 0, len(filter.OwnerIDs))
		for _, id := range filter.OwnerIDs {
			if isUUID(id) {
				owners = append(owners, id)
			}
		}
		qb = qb.Where(sq.Eq{"owner_id": owners})
	}

	if len(filter.ExcludeStatuses) > 0 {
		qb = qb.Where(sq.NotEq{"status": filter.ExcludeStatuses})
	}

	if filter.DueBefore != nil {
		qb = qb.Where(sq.Lt{"due_date": *filter.DueBefore})
	}

	query, args, err := qb.OrderBy("created_at ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build List query: %w", err)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	return scanTasks(rows)
}
