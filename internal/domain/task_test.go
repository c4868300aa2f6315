package domain_test

import (
	"testing"
	"time"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(at time.Time) *domain.Task {
	creator := "creator-1"
	task := &domain.Task{
		ID:        "task-1",
		Title:     "Write report",
		OwnerID:   "owner-1",
		CreatorID: creator,
		CreatedAt: at,
		UpdatedAt: at,
	}
	task.AppendStatus(domain.TaskStatusPending, &creator, at, nil)
	return task
}

func TestTaskStatus_IsValid(t *testing.T) {
	for _, status := range domain.TaskStatuses {
		assert.True(t, status.IsValid(), status)
	}
	assert.False(t, domain.TaskStatus("done").IsValid())
	assert.False(t, domain.TaskStatus("").IsValid())
	assert.False(t, domain.TaskStatus("Pending").IsValid())
}

func TestParseRole(t *testing.T) {
	role, err := domain.ParseRole("manager")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, role)

	_, err = domain.ParseRole("admin")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = domain.ParseRole("Manager")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUser_ReportsTo(t *testing.T) {
	managerID := "m-1"
	u := &domain.User{ID: "u-1", Role: domain.RoleUser, ManagerID: &managerID}

	assert.True(t, u.ReportsTo("m-1"))
	assert.False(t, u.ReportsTo("m-2"))
	assert.False(t, u.ReportsTo(""))
	assert.False(t, (&domain.User{ID: "u-2", Role: domain.RoleUser}).ReportsTo("m-1"))
}

func TestNotFoundErrorsShareParent(t *testing.T) {
	assert.ErrorIs(t, domain.ErrTaskNotFound, domain.ErrNotFound)
	assert.ErrorIs(t, domain.ErrUserNotFound, domain.ErrNotFound)
	assert.ErrorIs(t, domain.ErrProjectNotFound, domain.ErrNotFound)
	assert.NotErrorIs(t, domain.ErrForbidden, domain.ErrNotFound)
}

func TestAppendStatus_UpdatesStatusAndHistory(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	task := newTask(start)
	actor := "owner-1"
	note := "Status changed to in-progress"

	entry := task.AppendStatus(domain.TaskStatusInProgress, &actor, start.Add(time.Minute), &note)

	assert.Equal(t, domain.TaskStatusInProgress, task.Status)
	assert.Len(t, task.StatusHistory, 2)
	assert.Equal(t, entry, task.StatusHistory[1])
	assert.Equal(t, start.Add(time.Minute), task.UpdatedAt)
	require.NoError(t, task.CheckHistory())

	// the entry must not alias caller-owned strings
	note = "changed"
	assert.Equal(t, "Status changed to in-progress", *task.StatusHistory[1].Note)
}

func TestAppendStatus_TimestampsStrictlyIncrease(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	task := newTask(start)
	actor := "owner-1"

	// same instant and a clock that went backwards
	task.AppendStatus(domain.TaskStatusCompleted, &actor, start, nil)
	task.AppendStatus(domain.TaskStatusCompleted, &actor, start.Add(-time.Hour), nil)

	require.Len(t, task.StatusHistory, 3)
	for i := 1; i < len(task.StatusHistory); i++ {
		assert.True(t, task.StatusHistory[i].ChangedAt.After(task.StatusHistory[i-1].ChangedAt),
			"entry %d must be after entry %d", i, i-1)
	}
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
}

func TestCheckHistory(t *testing.T) {
	task := &domain.Task{ID: "t", Status: domain.TaskStatusPending}
	assert.ErrorIs(t, task.CheckHistory(), domain.ErrHistoryRewritten)

	task = newTask(time.Now())
	task.Status = domain.TaskStatusCompleted
	assert.ErrorIs(t, task.CheckHistory(), domain.ErrHistoryRewritten)
}

func TestVerifyAppendOnly(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	prev := newTask(start)
	actor := "owner-1"

	t.Run("append accepted", func(t *testing.T) {
		next := prev.Clone()
		next.AppendStatus(domain.TaskStatusInProgress, &actor, start.Add(time.Second), nil)
		assert.NoError(t, next.VerifyAppendOnly(prev))
	})

	t.Run("field edits accepted", func(t *testing.T) {
		next := prev.Clone()
		next.Title = "Renamed"
		next.OwnerID = "owner-2"
		assert.NoError(t, next.VerifyAppendOnly(prev))
	})

	t.Run("truncation rejected", func(t *testing.T) {
		next := prev.Clone()
		next.StatusHistory = nil
		assert.ErrorIs(t, next.VerifyAppendOnly(prev), domain.ErrHistoryRewritten)
	})

	t.Run("rewrite rejected", func(t *testing.T) {
		next := prev.Clone()
		next.StatusHistory[0].Status = domain.TaskStatusCompleted
		next.Status = domain.TaskStatusCompleted
		assert.ErrorIs(t, next.VerifyAppendOnly(prev), domain.ErrHistoryRewritten)
	})

	t.Run("status without entry rejected", func(t *testing.T) {
		next := prev.Clone()
		next.Status = domain.TaskStatusCompleted
		assert.ErrorIs(t, next.VerifyAppendOnly(prev), domain.ErrHistoryRewritten)
	})

	t.Run("creator change rejected", func(t *testing.T) {
		next := prev.Clone()
		next.CreatorID = "someone-else"
		assert.ErrorIs(t, next.VerifyAppendOnly(prev), domain.ErrHistoryRewritten)
	})
}

func TestClone_IsDeep(t *testing.T) {
	task := newTask(time.Now())
	project := "p-1"
	due := time.Now().Add(24 * time.Hour)
	task.ProjectID = &project
	task.DueDate = &due

	c := task.Clone()
	*c.ProjectID = "p-2"
	*c.DueDate = due.Add(time.Hour)
	*c.StatusHistory[0].ChangedBy = "other"

	assert.Equal(t, "p-1", *task.ProjectID)
	assert.Equal(t, due, *task.DueDate)
	assert.Equal(t, "creator-1", *task.StatusHistory[0].ChangedBy)
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	task := newTask(now.Add(-72 * time.Hour))
	assert.False(t, task.IsOverdue(now), "no due date")

	past := now.Add(-time.Hour)
	task.DueDate = &past
	assert.True(t, task.IsOverdue(now))

	actor := "owner-1"
	task.AppendStatus(domain.TaskStatusCompleted, &actor, now, nil)
	assert.False(t, task.IsOverdue(now), "completed tasks are never overdue")
}

func TestNewTaskDeletion(t *testing.T) {
	task := newTask(time.Now())
	at := time.Now()
	d := domain.NewTaskDeletion(task, "admin-1", at)

	assert.Equal(t, task.ID, d.TaskID)
	assert.Equal(t, task.OwnerID, d.OwnerID)
	assert.Equal(t, task.CreatorID, d.CreatorID)
	assert.Equal(t, domain.TaskStatusPending, d.LastStatus)
	assert.Equal(t, 1, d.HistoryLength)
	assert.Equal(t, "admin-1", d.DeletedBy)
	assert.Equal(t, at, d.DeletedAt)
}
