package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/teamtask/internal/domain"
)

// ProjectRepository handles database operations for projects.
type ProjectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

// GetByID retrieves a project by ID.
func (r *ProjectRepository) GetByID(ctx context.Context, projectID string) (*domain.Project, error) {
	if !isUUID(projectID) {
		return nil, domain.ErrProjectNotFound
	}

	query, args, err := psql.
		Select("id", "name", "created_at").
		From("projects").
		Where(sq.Eq{"id": projectID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for project %s: %w", projectID, err)
	}

	var project domain.Project
	err = conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&project.ID, &project.Name, &project.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("query project: %w", err)
	}

	return &project, nil
}

// List returns every project ordered by name.
func (r *ProjectRepository) List(ctx context.Context) ([]*domain.Project, error) {
	query, args, err := psql.
		Select("id", "name", "created_at").
		From("projects").
		OrderBy("name ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build List query for projects: %w", err)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := []*domain.Project{}
	for rows.Next() {
		var project domain.Project
		if err := rows.Scan(&project.ID, &project.Name, &project.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, &project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return projects, nil
}

// Create inserts a project and fills ID and CreatedAt.
func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	query, args, err := psql.
		Insert("projects").
		Columns("name").
		Values(project.Name).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for project: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&project.ID, &project.CreatedAt); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}
