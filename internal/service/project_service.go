package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mtlprog/teamtask/internal/authz"
	"github.com/mtlprog/teamtask/internal/domain"
)

// ProjectService manages the project directory.
type ProjectService struct {
	store Store
}

// NewProjectService creates a new ProjectService.
func NewProjectService(store Store) *ProjectService {
	return &ProjectService{store: store}
}

// Create adds a project. Only super-admins and managers may create projects.
func (s *ProjectService) Create(ctx context.Context, identity domain.Identity, name string) (*domain.Project, error) {
	if !authz.CanManageProjects(identity) {
		return nil, fmt.Errorf("%w: %q cannot create projects", domain.ErrForbidden, identity.ID)
	}

	name, err := validateProjectName(name)
	if err != nil {
		return nil, err
	}

	project, err := s.store.CreateProject(ctx, &domain.Project{Name: name})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	slog.Info("project created", "project_id", project.ID, "actor_id", identity.ID)

	return project, nil
}

// List returns every project. Any authenticated identity may list projects.
func (s *ProjectService) List(ctx context.Context, identity domain.Identity) ([]*domain.Project, error) {
	if !identity.IsAuthenticated() {
		return nil, fmt.Errorf("%w: unrecognized identity", domain.ErrForbidden)
	}
	return s.store.ListProjects(ctx)
}
