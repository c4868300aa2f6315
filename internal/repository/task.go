package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/teamtask/internal/domain"
)

// taskColumns is the shared list of columns for task queries.
var taskColumns = []string{
	"id", "title", "description", "owner_id", "creator_id", "project_id",
	"due_date", "status", "created_at", "updated_at",
}

// TaskRepository handles database operations for task rows. Status history
// lives in StatusHistoryRepository.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// scanTask scans a single row into a Task struct.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.OwnerID,
		&task.CreatorID,
		&task.ProjectID,
		&task.DueDate,
		&task.Status,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &task, nil
}

// scanTasks scans multiple rows into a slice of Task structs.
func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

// GetByID retrieves a task row by ID, without history. It reads inside the
// transaction carried by ctx, if any.
func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	if !isUUID(taskID) {
		return nil, domain.ErrTaskNotFound
	}

	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for task: %w", err)
	}

	return scanTask(conn(ctx, r.pool).QueryRow(ctx, query, args...))
}

// GetByIDForUpdate retrieves a task by ID with FOR UPDATE lock (within transaction).
func (r *TaskRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, taskID string) (*domain.Task, error) {
	if !isUUID(taskID) {
		return nil, domain.ErrTaskNotFound
	}

	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByIDForUpdate query for task %s: %w", taskID, err)
	}

	return scanTask(tx.QueryRow(ctx, query, args...))
}

// Create inserts the task row within a transaction and fills task.ID.
// CreatedAt and UpdatedAt are taken from the task so they line up with the
// first history entry.
func (r *TaskRepository) Create(ctx context.Context, tx pgx.Tx, task *domain.Task) error {
	query, args, err := psql.
		Insert("tasks").
		Columns(
			"title", "description", "owner_id", "creator_id", "project_id",
			"due_date", "status", "created_at", "updated_at",
		).
		Values(
			task.Title,
			task.Description,
			task.OwnerID,
			task.CreatorID,
			task.ProjectID,
			task.DueDate,
			task.Status,
			task.CreatedAt,
			task.UpdatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for task: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&task.ID); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return fmt.Errorf("create task: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Update writes every mutable column of the task row.
func (r *TaskRepository) Update(ctx context.Context, tx pgx.Tx, task *domain.Task) error {
	query, args, err := psql.
		Update("tasks").
		Set("title", task.Title).
		Set("description", task.Description).
		Set("owner_id", task.OwnerID).
		Set("project_id", task.ProjectID).
		Set("due_date", task.DueDate).
		Set("status", task.Status).
		Set("updated_at", task.UpdatedAt).
		Where(sq.Eq{"id": task.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Update query for task %s: %w", task.ID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return fmt.Errorf("update task %s: %w", task.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// Delete removes the task row; its history goes with it via ON DELETE CASCADE.
func (r *TaskRepository) Delete(ctx context.Context, tx pgx.Tx, taskID string) error {
	query, args, err := psql.
		Delete("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Delete query for task %s: %w", taskID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}
