package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/teamtask/internal/domain"
)

// StatusHistoryRepository handles the append-only task_status_history table.
// Rows are addressed by (task_id, seq); seq is the entry's index in the history.
type StatusHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewStatusHistoryRepository creates a new StatusHistoryRepository.
func NewStatusHistoryRepository(pool *pgxpool.Pool) *StatusHistoryRepository {
	return &StatusHistoryRepository{pool: pool}
}

// Append inserts entries as seq firstSeq, firstSeq+1, ... within the transaction.
// A duplicate (task_id, seq) fails the insert, so two writers can never both
// claim the same position.
func (r *StatusHistoryRepository) Append(
	ctx context.Context,
	tx pgx.Tx,
	taskID string,
	firstSeq int,
	entries []domain.StatusHistoryEntry,
) error {
	if len(entries) == 0 {
		return nil
	}

	qb := psql.
		Insert("task_status_history").
		Columns("task_id", "seq", "status", "changed_by", "changed_at", "note")
	for i, entry := range entries {
		qb = qb.Values(taskID, firstSeq+i, entry.Status, entry.ChangedBy, entry.ChangedAt, entry.Note)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return fmt.Errorf("build Append query for task %s: %w", taskID, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return fmt.Errorf("%w: task %s seq %d already written", domain.ErrHistoryRewritten, taskID, firstSeq)
		}
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

// GetByTaskID returns the history of one task in order.
func (r *StatusHistoryRepository) GetByTaskID(ctx context.Context, taskID string) ([]domain.StatusHistoryEntry, error) {
	byTask, err := r.getByTaskIDs(ctx, conn(ctx, r.pool), []string{taskID})
	if err != nil {
		return nil, err
	}
	return byTask[taskID], nil
}

// GetByTaskIDTx is GetByTaskID inside a transaction, used under the row lock.
func (r *StatusHistoryRepository) GetByTaskIDTx(ctx context.Context, tx pgx.Tx, taskID string) ([]domain.StatusHistoryEntry, error) {
	byTask, err := r.getByTaskIDs(ctx, tx, []string{taskID})
	if err != nil {
		return nil, err
	}
	return byTask[taskID], nil
}

// GetByTaskIDs returns the histories of several tasks keyed by task id.
func (r *StatusHistoryRepository) GetByTaskIDs(ctx context.Context, taskIDs []string) (map[string][]domain.StatusHistoryEntry, error) {
	return r.getByTaskIDs(ctx, conn(ctx, r.pool), taskIDs)
}

func (r *StatusHistoryRepository) getByTaskIDs(
	ctx context.Context,
	q querier,
	taskIDs []string,
) (map[string][]domain.StatusHistoryEntry, error) {
	byTask := make(map[string][]domain.StatusHistoryEntry, len(taskIDs))
	if len(taskIDs) == 0 {
		return byTask, nil
	}

	query, args, err := psql.
		Select("task_id", "status", "changed_by", "changed_at", "note").
		From("task_status_history").
		Where(sq.Eq{"task_id": taskIDs}).
		OrderBy("task_id ASC", "seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID string
		var entry domain.StatusHistoryEntry
		err := rows.Scan(
			&taskID,
			&entry.Status,
			&entry.ChangedBy,
			&entry.ChangedAt,
			&entry.Note,
		)
		if err != nil {
			return nil, fmt.Errorf("scan status history entry: %w", err)
		}
		byTask[taskID] = append(byTask[taskID], entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return byTask, nil
}
