// Package authz decides who may see, create, assign, edit, transition and
// delete a task.
//
// Every decision is a pure function of the caller's Identity, the task and a
// Roster that resolves user ids to directory records. The only relationship
// consulted is User.ManagerID: a manager sees and mutates the tasks of direct
// reports, never those of other managers. A super-admin may do anything. A
// plain user is confined to tasks they own.
//
// Unknown or missing roles, unknown owners and missing tasks are denied.
package authz

import (
	"fmt"

	"github.com/mtlprog/teamtask/internal/domain"
)

// Roster resolves user ids to directory records.
type Roster interface {
	Lookup(userID string) (*domain.User, bool)
}

// Users is a Roster backed by a map keyed by user id.
type Users map[string]*domain.User

// NewUsers builds a Users roster from a list of records.
func NewUsers(users ...*domain.User) Users {
	roster := make(Users, len(users))
	for _, u := range users {
		if u != nil {
			roster[u.ID] = u
		}
	}
	return roster
}

// Lookup implements Roster.
func (u Users) Lookup(userID string) (*domain.User, bool) {
	user, ok := u[userID]
	return user, ok && user != nil
}

// CanView reports whether identity may see task.
func CanView(identity domain.Identity, task *domain.Task, roster Roster) bool {
	if task == nil || !identity.IsAuthenticated() {
		return false
	}

	switch identity.Role {
	case domain.RoleSuperAdmin:
		return true
	case domain.RoleManager:
		return task.IsOwnedBy(identity.ID) || isDirectReport(identity.ID, task.OwnerID, roster)
	case domain.RoleUser:
		return task.IsOwnedBy(identity.ID)
	default:
		return false
	}
}

// VisibleScope returns the tasks identity may see, preserving input order.
// Each distinct owner is resolved against the roster at most once.
func VisibleScope(identity domain.Identity, tasks []*domain.Task, roster Roster) []*domain.Task {
	visible := make([]*domain.Task, 0, len(tasks))
	if !identity.IsAuthenticated() {
		return visible
	}

	switch identity.Role {
	case domain.RoleSuperAdmin:
		for _, task := range tasks {
			if task != nil {
				visible = append(visible, task)
			}
		}

	case domain.RoleManager:
		reports := make(map[string]bool)
		for _, task := range tasks {
			if task == nil {
				continue
			}
			if task.IsOwnedBy(identity.ID) {
				visible = append(visible, task)
				continue
			}
			ok, seen := reports[task.OwnerID]
			if !seen {
				ok = isDirectReport(identity.ID, task.OwnerID, roster)
				reports[task.OwnerID] = ok
			}
			if ok {
				visible = append(visible, task)
			}
		}

	case domain.RoleUser:
		for _, task := range tasks {
			if task != nil && task.IsOwnedBy(identity.ID) {
				visible = append(visible, task)
			}
		}
	}

	return visible
}

// CanAssignToOthers reports whether identity may name an owner other than itself.
func CanAssignToOthers(identity domain.Identity) bool {
	if !identity.IsAuthenticated() {
		return false
	}
	return identity.Role == domain.RoleSuperAdmin || identity.Role == domain.RoleManager
}

// CanCreate reports whether identity may create a task owned by ownerID.
// An empty ownerID means the creator owns the task.
func CanCreate(identity domain.Identity, ownerID string, roster Roster) bool {
	if !identity.IsAuthenticated() {
		return false
	}
	if ownerID == "" || ownerID == identity.ID {
		return true
	}
	return canAssignTo(identity, ownerID, roster)
}

// CanMutate reports whether identity may edit or delete task. Visibility is a
// prerequisite; a manager is additionally never allowed to touch a task whose
// owner is not a plain user, even if a bad directory record made it visible.
func CanMutate(identity domain.Identity, task *domain.Task, roster Roster) bool {
	if !CanView(identity, task, roster) {
		return false
	}
	if identity.Role != domain.RoleManager || task.IsOwnedBy(identity.ID) {
		return true
	}

	owner, ok := lookup(roster, task.OwnerID)
	return ok && owner.Role == domain.RoleUser
}

// CanChangeStatus reports whether identity may move task to newStatus.
// Any party who can mutate a task may transition it.
func CanChangeStatus(identity domain.Identity, task *domain.Task, newStatus domain.TaskStatus, roster Roster) bool {
	return CanMutate(identity, task, roster)
}

// CanReassign reports whether identity may hand task over to newOwnerID.
func CanReassign(identity domain.Identity, task *domain.Task, newOwnerID string, roster Roster) bool {
	if !CanMutate(identity, task, roster) {
		return false
	}
	if newOwnerID == task.OwnerID {
		return true
	}
	if !CanAssignToOthers(identity) {
		return false
	}
	return newOwnerID == identity.ID || canAssignTo(identity, newOwnerID, roster)
}

// CanManageProjects reports whether identity may create projects.
func CanManageProjects(identity domain.Identity) bool {
	return CanAssignToOthers(identity)
}

// AuthorizeView returns a Forbidden error unless CanView allows the access.
func AuthorizeView(identity domain.Identity, task *domain.Task, roster Roster) error {
	if CanView(identity, task, roster) {
		return nil
	}
	return deny(identity, "view", task)
}

// AuthorizeCreate returns a Forbidden error unless CanCreate allows the access.
func AuthorizeCreate(identity domain.Identity, ownerID string, roster Roster) error {
	if CanCreate(identity, ownerID, roster) {
		return nil
	}
	return fmt.Errorf("%w: %s %q cannot create tasks for user %s",
		domain.ErrForbidden, roleName(identity), identity.ID, ownerID)
}

// AuthorizeMutate returns a Forbidden error unless CanMutate allows the access.
func AuthorizeMutate(identity domain.Identity, task *domain.Task, roster Roster) error {
	if CanMutate(identity, task, roster) {
		return nil
	}
	return deny(identity, "modify", task)
}

// AuthorizeStatusChange returns a Forbidden error unless CanChangeStatus allows the access.
func AuthorizeStatusChange(identity domain.Identity, task *domain.Task, newStatus domain.TaskStatus, roster Roster) error {
	if CanChangeStatus(identity, task, newStatus, roster) {
		return nil
	}
	return deny(identity, "change status of", task)
}

// AuthorizeReassign returns a Forbidden error unless CanReassign allows the access.
func AuthorizeReassign(identity domain.Identity, task *domain.Task, newOwnerID string, roster Roster) error {
	if CanReassign(identity, task, newOwnerID, roster) {
		return nil
	}
	return fmt.Errorf("%w: %s %q cannot assign task %s to user %s",
		domain.ErrForbidden, roleName(identity), identity.ID, taskID(task), newOwnerID)
}

func canAssignTo(identity domain.Identity, ownerID string, roster Roster) bool {
	switch identity.Role {
	case domain.RoleSuperAdmin:
		return true
	case domain.RoleManager:
		return isDirectReport(identity.ID, ownerID, roster)
	default:
		return false
	}
}

func isDirectReport(managerID, userID string, roster Roster) bool {
	user, ok := lookup(roster, userID)
	return ok && user.ReportsTo(managerID)
}

func lookup(roster Roster, userID string) (*domain.User, bool) {
	if roster == nil || userID == "" {
		return nil, false
	}
	return roster.Lookup(userID)
}

func deny(identity domain.Identity, action string, task *domain.Task) error {
	return fmt.Errorf("%w: %s %q cannot %s task %s",
		domain.ErrForbidden, roleName(identity), identity.ID, action, taskID(task))
}

func roleName(identity domain.Identity) string {
	if identity.Role.IsValid() {
		return string(identity.Role)
	}
	return "unrecognized role"
}

func taskID(task *domain.Task) string {
	if task == nil {
		return "<nil>"
	}
	return task.ID
}
