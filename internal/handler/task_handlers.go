package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/handler/dto"
	"github.com/mtlprog/teamtask/internal/middleware"
	"github.com/mtlprog/teamtask/internal/service"
)

// handleCreateTask creates a new task.
// @Summary Create a new task
// @Description Creates a pending task. userId assigns it to someone else; managers may only name their direct reports.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body dto.CreateTaskRequest true "Task creation request"
// @Success 201 {object} dto.TaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := middleware.GetIdentityFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
		return
	}

	var req dto.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dueDate, err := parseOptionalDueDate(req.DueDate)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	params := service.CreateTaskParams{
		Title:       req.TaskTitle,
		Description: req.Description,
		DueDate:     dueDate,
	}
	if req.UserID != nil {
		params.OwnerID = *req.UserID
	}
	if req.ProjectID != nil && *req.ProjectID != "" {
		params.ProjectID = req.ProjectID
	}

	task, err := h.taskService.Create(ctx, identity, params)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToTaskResponse(task, time.Now()))
}

// handleListTasks lists the tasks visible to the caller.
// @Summary List tasks
// @Description Super-admins see every task, managers see their own and their direct reports' tasks, users see their own.
// @Tags tasks
// @Produce json
// @Param status query string false "Filter by status: pending, in-progress, completed"
// @Success 200 {object} dto.TasksListResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks [get]
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := middleware.GetIdentityFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
		return
	}

	var opts service.ListOptions
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.TaskStatus(s)
		if !status.IsValid() {
			respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR",
				"status must be 'pending', 'in-progress', or 'completed'")
			return
		}
		opts.Status = &status
	}

	tasks, err := h.taskService.List(ctx, identity, opts)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTasksListResponse(tasks, time.Now()))
}

// handleGetTask retrieves task details with the full status history.
// @Summary Get task details
// @Description Get the task including its chronological status history
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} dto.TaskResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := middleware.GetIdentityFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
		return
	}

	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.Get(ctx, identity, taskID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task, time.Now()))
}

// handleUpdateTask applies a partial update.
// @Summary Update a task
// @Description Updates any subset of fields. A status change is recorded in the history; dueDate and projectId accept null to clear.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.UpdateTaskRequest true "Fields to change"
// @Success 200 {object} dto.TaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [patch]
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := middleware.GetIdentityFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
		return
	}

	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	params, err := toUpdateParams(req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	task, err := h.taskService.Update(ctx, identity, taskID, params)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task, time.Now()))
}

// handleTransitionStatus changes task status.
// @Summary Change task status
// @Description Moves the task to any status, including the current one, and appends a history entry.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.TransitionStatusRequest true "Status transition request"
// @Success 200 {object} dto.TaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/status [patch]
func (h *Handler) handleTransitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := middleware.GetIdentityFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
		return
	}

	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.TransitionStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.taskService.Transition(ctx, identity, taskID, domain.TaskStatus(req.Status), req.Note)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(task, time.Now()))
}

// handleDeleteTask hard-deletes a task.
// @Summary Delete a task
// @Description Removes the task and its history; a deletion record is kept.
// @Tags tasks
// @Param id path string true "Task ID"
// @Success 204
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [delete]
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := middleware.GetIdentityFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
		return
	}

	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	if err := h.taskService.Delete(ctx, identity, taskID); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListDeletions lists deletion records.
// @Summary List task deletions
// @Description Super-admin only. Newest first.
// @Tags tasks
// @Produce json
// @Success 200 {object} dto.TaskDeletionsListResponse
// @Failure 403 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /deletions [get]
func (h *Handler) handleListDeletions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := middleware.GetIdentityFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
		return
	}

	deletions, err := h.taskService.ListDeletions(ctx, identity)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskDeletionsListResponse(deletions))
}

func parseOptionalDueDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	return dto.ParseDueDate(*s)
}

// toUpdateParams converts the patch body. Explicit nulls clear nullable
// fields and are rejected for required ones.
func toUpdateParams(req dto.UpdateTaskRequest) (service.UpdateTaskParams, error) {
	var params service.UpdateTaskParams

	for name, null := range map[string]bool{
		"taskTitle":   req.TaskTitle.Null,
		"description": req.Description.Null,
		"userId":      req.UserID.Null,
		"status":      req.Status.Null,
	} {
		if null {
			return params, fmt.Errorf("%w: %s cannot be null", domain.ErrValidation, name)
		}
	}

	params.Title = req.TaskTitle.Ptr()
	params.Description = req.Description.Ptr()
	params.OwnerID = req.UserID.Ptr()
	params.Note = req.Note

	if req.Status.Set {
		status := domain.TaskStatus(req.Status.Value)
		params.Status = &status
	}

	if req.ProjectID.Set {
		if req.ProjectID.Null || strings.TrimSpace(req.ProjectID.Value) == "" {
			params.ClearProject = true
		} else {
			project := req.ProjectID.Value
			params.ProjectID = &project
		}
	}

	if req.DueDate.Set {
		if req.DueDate.Null {
			params.ClearDueDate = true
		} else {
			due, err := dto.ParseDueDate(req.DueDate.Value)
			if err != nil {
				return params, err
			}
			if due == nil {
				params.ClearDueDate = true
			} else {
				params.DueDate = due
			}
		}
	}

	return params, nil
}
