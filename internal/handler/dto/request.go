package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mtlprog/teamtask/internal/domain"
)

// RegisterRequest represents the request body for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateProjectRequest represents the request body for POST /projects.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// CreateTaskRequest represents the request body for POST /tasks.
// UserID names the owner; omitted means the caller.
type CreateTaskRequest struct {
	TaskTitle   string  `json:"taskTitle"`
	Description string  `json:"description"`
	DueDate     *string `json:"dueDate,omitempty"`
	ProjectID   *string `json:"projectId,omitempty"`
	UserID      *string `json:"userId,omitempty"`
}

// UpdateTaskRequest represents the request body for PATCH /tasks/:id.
// dueDate and projectId accept null or "" to clear them.
type UpdateTaskRequest struct {
	TaskTitle   Optional[string] `json:"taskTitle"`
	Description Optional[string] `json:"description"`
	DueDate     Optional[string] `json:"dueDate"`
	ProjectID   Optional[string] `json:"projectId"`
	UserID      Optional[string] `json:"userId"`
	Status      Optional[string] `json:"status"`
	Note        *string          `json:"note,omitempty"`
}

// TransitionStatusRequest represents the request body for PATCH /tasks/:id/status.
type TransitionStatusRequest struct {
	Status string  `json:"status"`
	Note   *string `json:"note,omitempty"`
}

// Optional distinguishes an absent JSON field from an explicit null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Ptr returns the value when it is present and not null.
func (o Optional[T]) Ptr() *T {
	if !o.Set || o.Null {
		return nil
	}
	v := o.Value
	return &v
}

const dateLayout = "2006-01-02"

// ParseDueDate accepts RFC 3339 timestamps and bare YYYY-MM-DD dates (UTC
// midnight). An empty string yields nil.
func ParseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("%w: dueDate must be RFC 3339 or YYYY-MM-DD", domain.ErrValidation)
}
