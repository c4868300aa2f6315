package domain

import "time"

// StatusHistoryEntry is an immutable audit record of one status change.
type StatusHistoryEntry struct {
	Status    TaskStatus
	ChangedBy *string // nil for system-initiated changes
	ChangedAt time.Time
	Note      *string
}

// IsSystemEntry returns true if the entry was not caused by a user.
func (e StatusHistoryEntry) IsSystemEntry() bool {
	return e.ChangedBy == nil
}

func (e StatusHistoryEntry) equal(other StatusHistoryEntry) bool {
	return e.Status == other.Status &&
		equalStringPtr(e.ChangedBy, other.ChangedBy) &&
		e.ChangedAt.Equal(other.ChangedAt) &&
		equalStringPtr(e.Note, other.Note)
}

// TaskDeletion is the immutable record left behind when a task is hard-deleted.
type TaskDeletion struct {
	ID            string
	TaskID        string
	Title         string
	OwnerID       string
	CreatorID     string
	LastStatus    TaskStatus
	HistoryLength int
	DeletedBy     string
	DeletedAt     time.Time
}

// NewTaskDeletion builds the deletion record for task removed by actorID at the given time.
func NewTaskDeletion(task *Task, actorID string, at time.Time) *TaskDeletion {
	return &TaskDeletion{
		TaskID:        task.ID,
		Title:         task.Title,
		OwnerID:       task.OwnerID,
		CreatorID:     task.CreatorID,
		LastStatus:    task.Status,
		HistoryLength: len(task.StatusHistory),
		DeletedBy:     actorID,
		DeletedAt:     at,
	}
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
