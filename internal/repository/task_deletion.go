package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/teamtask/internal/domain"
)

// TaskDeletionRepository records hard-deleted tasks.
type TaskDeletionRepository struct {
	pool *pgxpool.Pool
}

// NewTaskDeletionRepository creates a new TaskDeletionRepository.
func NewTaskDeletionRepository(pool *pgxpool.Pool) *TaskDeletionRepository {
	return &TaskDeletionRepository{pool: pool}
}

// Create inserts the deletion record within the transaction that deletes the task.
func (r *TaskDeletionRepository) Create(ctx context.Context, tx pgx.Tx, d *domain.TaskDeletion) error {
	query, args, err := psql.
		Insert("task_deletions").
		Columns(
			"task_id", "title", "owner_id", "creator_id", "last_status",
			"history_length", "deleted_by", "deleted_at",
		).
		Values(
			d.TaskID, d.Title, d.OwnerID, d.CreatorID, d.LastStatus,
			d.HistoryLength, d.DeletedBy, d.DeletedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for task deletion: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&d.ID); err != nil {
		return fmt.Errorf("create task deletion: %w", err)
	}
	return nil
}

// List returns deletion records, newest first.
func (r *TaskDeletionRepository) List(ctx context.Context) ([]*domain.TaskDeletion, error) {
	query, args, err := psql.
		Select(
			"id", "task_id", "title", "owner_id", "creator_id", "last_status",
			"history_length", "deleted_by", "deleted_at",
		).
		From("task_deletions").
		OrderBy("deleted_at DESC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build List query for task deletions: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task deletions: %w", err)
	}
	defer rows.Close()

	deletions := []*domain.TaskDeletion{}
	for rows.Next() {
		var d domain.TaskDeletion
		err := rows.Scan(
			&d.ID, &d.TaskID, &d.Title, &d.OwnerID, &d.CreatorID, &d.LastStatus,
			&d.HistoryLength, &d.DeletedBy, &d.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan task deletion: %w", err)
		}
		deletions = append(deletions, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return deletions, nil
}
