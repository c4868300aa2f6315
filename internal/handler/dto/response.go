package dto

import (
	"time"

	"github.com/mtlprog/teamtask/internal/domain"
)

// UserResponse is the public view of a user; the password hash is never exposed.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ManagerID *string   `json:"managerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// IdentityResponse represents the response for GET /me.
type IdentityResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// AuthResponse represents the response for register and login.
type AuthResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	TokenType string       `json:"tokenType"`
	ExpiresIn int64        `json:"expiresIn"`
}

// UsersListResponse represents the response for GET /users.
type UsersListResponse struct {
	Users []UserResponse `json:"users"`
}

// ProjectResponse represents a project.
type ProjectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProjectsListResponse represents the response for GET /projects.
type ProjectsListResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

// StatusHistoryEntryResponse is one audit entry. ChangedBy is null for
// system-initiated changes.
type StatusHistoryEntryResponse struct {
	Status    string    `json:"status"`
	ChangedBy *string   `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
	Note      *string   `json:"note"`
}

// TaskResponse represents a task with its full, chronological history.
type TaskResponse struct {
	ID            string                       `json:"id"`
	TaskTitle     string                       `json:"taskTitle"`
	Description   string                       `json:"description"`
	OwnerID       string                       `json:"ownerId"`
	CreatorID     string                       `json:"creatorId"`
	ProjectID     *string                      `json:"projectId"`
	DueDate       *time.Time                   `json:"dueDate"`
	Status        string                       `json:"status"`
	IsOverdue     bool                         `json:"isOverdue"`
	StatusHistory []StatusHistoryEntryResponse `json:"statusHistory"`
	CreatedAt     time.Time                    `json:"createdAt"`
	UpdatedAt     time.Time                    `json:"updatedAt"`
}

// TasksListResponse represents the response for GET /tasks.
type TasksListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

// StatsResponse represents the response for GET /stats.
type StatsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
	Overdue  int            `json:"overdue"`
}

// TaskDeletionResponse represents a deletion record.
type TaskDeletionResponse struct {
	ID            string    `json:"id"`
	TaskID        string    `json:"taskId"`
	TaskTitle     string    `json:"taskTitle"`
	OwnerID       string    `json:"ownerId"`
	CreatorID     string    `json:"creatorId"`
	LastStatus    string    `json:"lastStatus"`
	HistoryLength int       `json:"historyLength"`
	DeletedBy     string    `json:"deletedBy"`
	DeletedAt     time.Time `json:"deletedAt"`
}

// TaskDeletionsListResponse represents the response for GET /deletions.
type TaskDeletionsListResponse struct {
	Deletions []TaskDeletionResponse `json:"deletions"`
}

// ToUserResponse converts a domain.User to UserResponse.
func ToUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      string(user.Role),
		ManagerID: user.ManagerID,
		CreatedAt: user.CreatedAt,
	}
}

// ToUsersListResponse converts users to UsersListResponse.
func ToUsersListResponse(users []*domain.User) UsersListResponse {
	resp := UsersListResponse{Users: make([]UserResponse, len(users))}
	for i, u := range users {
		resp.Users[i] = ToUserResponse(u)
	}
	return resp
}

// ToIdentityResponse converts a domain.Identity to IdentityResponse.
func ToIdentityResponse(identity domain.Identity) IdentityResponse {
	return IdentityResponse{
		ID:       identity.ID,
		Username: identity.Username,
		Email:    identity.Email,
		Role:     string(identity.Role),
	}
}

// ToProjectResponse converts a domain.Project to ProjectResponse.
func ToProjectResponse(project *domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:        project.ID,
		Name:      project.Name,
		CreatedAt: project.CreatedAt,
	}
}

// ToProjectsListResponse converts projects to ProjectsListResponse.
func ToProjectsListResponse(projects []*domain.Project) ProjectsListResponse {
	resp := ProjectsListResponse{Projects: make([]ProjectResponse, len(projects))}
	for i, p := range projects {
		resp.Projects[i] = ToProjectResponse(p)
	}
	return resp
}

// ToTaskResponse converts a domain.Task to TaskResponse. now decides isOverdue.
func ToTaskResponse(task *domain.Task, now time.Time) TaskResponse {
	history := make([]StatusHistoryEntryResponse, len(task.StatusHistory))
	for i, entry := range task.StatusHistory {
		history[i] = StatusHistoryEntryResponse{
			Status:    string(entry.Status),
			ChangedBy: entry.ChangedBy,
			ChangedAt: entry.ChangedAt,
			Note:      entry.Note,
		}
	}

	return TaskResponse{
		ID:            task.ID,
		TaskTitle:     task.Title,
		Description:   task.Description,
		OwnerID:       task.OwnerID,
		CreatorID:     task.CreatorID,
		ProjectID:     task.ProjectID,
		DueDate:       task.DueDate,
		Status:        string(task.Status),
		IsOverdue:     task.IsOverdue(now),
		StatusHistory: history,
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
	}
}

// ToTasksListResponse converts tasks to TasksListResponse.
func ToTasksListResponse(tasks []*domain.Task, now time.Time) TasksListResponse {
	resp := TasksListResponse{
		Tasks: make([]TaskResponse, len(tasks)),
		Total: len(tasks),
	}
	for i, task := range tasks {
		resp.Tasks[i] = ToTaskResponse(task, now)
	}
	return resp
}

// ToTaskDeletionsListResponse converts deletion records to a list response.
func ToTaskDeletionsListResponse(deletions []*domain.TaskDeletion) TaskDeletionsListResponse {
	resp := TaskDeletionsListResponse{Deletions: make([]TaskDeletionResponse, len(deletions))}
	for i, d := range deletions {
		resp.Deletions[i] = TaskDeletionResponse{
			ID:            d.ID,
			TaskID:        d.TaskID,
			TaskTitle:     d.Title,
			OwnerID:       d.OwnerID,
			CreatorID:     d.CreatorID,
			LastStatus:    string(d.LastStatus),
			HistoryLength: d.HistoryLength,
			DeletedBy:     d.DeletedBy,
			DeletedAt:     d.DeletedAt,
		}
	}
	return resp
}

// ToStatsResponse converts a status summary to StatsResponse.
func ToStatsResponse(total int, byStatus map[domain.TaskStatus]int, overdue int) StatsResponse {
	resp := StatsResponse{
		Total:    total,
		ByStatus: make(map[string]int, len(byStatus)),
		Overdue:  overdue,
	}
	for status, n := range byStatus {
		resp.ByStatus[string(status)] = n
	}
	return resp
}
