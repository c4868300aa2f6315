package domain

import (
	"fmt"
	"time"
)

// TaskStatus represents the status of a task. Any status may follow any other.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// TaskStatuses lists every recognized status in board order.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
}

// IsValid checks if the status is one of the allowed values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// historyResolution is the smallest step between two history timestamps.
// It matches the microsecond precision of Postgres timestamptz.
const historyResolution = time.Microsecond

// Task is a unit of work owned by one user.
type Task struct {
	ID            string
	Title         string
	Description   string
	OwnerID       string
	CreatorID     string
	ProjectID     *string
	DueDate       *time.Time
	Status        TaskStatus
	StatusHistory []StatusHistoryEntry
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsOwnedBy checks if the task is assigned to the given user.
func (t *Task) IsOwnedBy(userID string) bool {
	return userID != "" && t.OwnerID == userID
}

// IsCreatedBy checks if the task was created by the given user.
func (t *Task) IsCreatedBy(userID string) bool {
	return userID != "" && t.CreatorID == userID
}

// IsOverdue reports whether the due date has passed on an unfinished task.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil &&
		t.DueDate.Before(now) &&
		t.Status != TaskStatusCompleted
}

// AppendStatus records a status change and makes it the current status.
// ChangedAt is kept strictly increasing within the task's history.
func (t *Task) AppendStatus(status TaskStatus, changedBy *string, at time.Time, note *string) StatusHistoryEntry {
	at = at.Truncate(historyResolution)
	if n := len(t.StatusHistory); n > 0 {
		if last := t.StatusHistory[n-1].ChangedAt; !at.After(last) {
			at = last.Add(historyResolution)
		}
	}

	entry := StatusHistoryEntry{
		Status:    status,
		ChangedBy: cloneString(changedBy),
		ChangedAt: at,
		Note:      cloneString(note),
	}
	t.StatusHistory = append(t.StatusHistory, entry)
	t.Status = status
	if at.After(t.UpdatedAt) {
		t.UpdatedAt = at
	}
	return entry
}

// Touch refreshes UpdatedAt without letting it move backwards.
func (t *Task) Touch(at time.Time) {
	at = at.Truncate(historyResolution)
	if at.After(t.UpdatedAt) {
		t.UpdatedAt = at
		return
	}
	t.UpdatedAt = t.UpdatedAt.Add(historyResolution)
}

// CheckHistory verifies the audit trail invariants of a persisted task.
func (t *Task) CheckHistory() error {
	n := len(t.StatusHistory)
	if n == 0 {
		return fmt.Errorf("%w: task %s has no history", ErrHistoryRewritten, t.ID)
	}
	if last := t.StatusHistory[n-1].Status; last != t.Status {
		return fmt.Errorf("%w: task %s status %s but last entry %s", ErrHistoryRewritten, t.ID, t.Status, last)
	}
	return nil
}

// VerifyAppendOnly checks that t is a legal successor of prev: identity fields
// are unchanged and prev's history is an untouched prefix of t's history.
func (t *Task) VerifyAppendOnly(prev *Task) error {
	if t.ID != prev.ID || t.CreatorID != prev.CreatorID || !t.CreatedAt.Equal(prev.CreatedAt) {
		return fmt.Errorf("%w: immutable fields of task %s changed", ErrHistoryRewritten, prev.ID)
	}
	if len(t.StatusHistory) < len(prev.StatusHistory) {
		return fmt.Errorf("%w: task %s history shrank from %d to %d entries",
			ErrHistoryRewritten, prev.ID, len(prev.StatusHistory), len(t.StatusHistory))
	}
	for i, entry := range prev.StatusHistory {
		if !entry.equal(t.StatusHistory[i]) {
			return fmt.Errorf("%w: task %s history entry %d rewritten", ErrHistoryRewritten, prev.ID, i)
		}
	}
	return t.CheckHistory()
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.ProjectID = cloneString(t.ProjectID)
	if t.DueDate != nil {
		due := *t.DueDate
		c.DueDate = &due
	}
	c.StatusHistory = make([]StatusHistoryEntry, len(t.StatusHistory))
	for i, entry := range t.StatusHistory {
		entry.ChangedBy = cloneString(entry.ChangedBy)
		entry.Note = cloneString(entry.Note)
		c.StatusHistory[i] = entry
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
