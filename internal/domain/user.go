package domain

import (
	"fmt"
	"time"
)

// Role is the closed set of privilege levels a user can hold.
type Role string

const (
	RoleSuperAdmin Role = "super-admin"
	RoleManager    Role = "manager"
	RoleUser       Role = "user"
)

// IsValid checks if the role is one of the allowed values.
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleManager, RoleUser:
		return true
	default:
		return false
	}
}

// ParseRole converts a string into a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
	return role, nil
}

// User is a directory record. The task core only reads users.
type User struct {
	ID           string
	Username     string
	Email        string
	Role         Role
	ManagerID    *string // set only for users supervised by a manager
	PasswordHash string
	CreatedAt    time.Time
}

// ReportsTo returns true if the user is a direct report of the given manager.
func (u *User) ReportsTo(managerID string) bool {
	return u.ManagerID != nil && managerID != "" && *u.ManagerID == managerID
}

// Identity returns the actor view of the user.
func (u *User) Identity() Identity {
	return Identity{
		ID:       u.ID,
		Role:     u.Role,
		Username: u.Username,
		Email:    u.Email,
	}
}

// Identity is the authenticated actor performing an operation. It is passed
// explicitly into every task operation.
type Identity struct {
	ID       string
	Role     Role
	Username string
	Email    string
}

// IsAuthenticated reports whether the identity carries an id and a known role.
func (i Identity) IsAuthenticated() bool {
	return i.ID != "" && i.Role.IsValid()
}
