package handler

import (
	"net/http"

	"github.com/mtlprog/teamtask/internal/handler/dto"
	"github.com/mtlprog/teamtask/internal/middleware"
)

// handleListProjects lists all projects.
// @Summary List projects
// @Tags projects
// @Produce json
// @Success 200 {object} dto.ProjectsListResponse
// @Security BearerAuth
// @Router /projects [get]
func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := middleware.GetIdentityFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
		return
	}

	projects, err := h.projectService.List(ctx, identity)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToProjectsListResponse(projects))
}

// handleCreateProject creates a project.
// @Summary Create a project
// @Description Managers and super-admins only
// @Tags projects
// @Accept json
// @Produce json
// @Param request body dto.CreateProjectRequest true "Project creation request"
// @Success 201 {object} dto.ProjectResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /projects [post]
func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := middleware.GetIdentityFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
		return
	}

	var req dto.CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.projectService.Create(ctx, identity, req.Name)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToProjectResponse(project))
}
