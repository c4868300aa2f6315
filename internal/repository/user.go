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

var userColumns = []string{
	"id", "username", "email", "role", "manager_id", "password_hash", "created_at",
}

// UserFilter narrows ListUsers. Zero value lists every user.
type UserFilter struct {
	ManagerID *string  // only direct reports of this manager
	IDs       []string // only these ids; nil means no restriction
}

// UserRepository handles database operations for the user directory.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.ManagerID,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	if !isUUID(userID) {
		return nil, domain.ErrUserNotFound
	}

	query, args, err := psql.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for user %s: %w", userID, err)
	}

	return scanUser(conn(ctx, r.pool).QueryRow(ctx, query, args...))
}

// GetByEmail finds a user by login email. Emails are stored lowercased.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query, args, err := psql.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByEmail query: %w", err)
	}

	return scanUser(conn(ctx, r.pool).QueryRow(ctx, query, args...))
}

// List returns users matching the filter ordered by username.
func (r *UserRepository) List(ctx context.Context, filter UserFilter) ([]*domain.User, error) {
	qb := psql.Select(userColumns...).From("users")

	if filter.ManagerID != nil {
		if !isUUID(*filter.ManagerID) {
			return []*domain.User{}, nil
		}
		qb = qb.Where(sq.Eq{"manager_id": *filter.ManagerID})
	}
	if filter.IDs != nil {
		ids := make([]string, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			if isUUID(id) {
				ids = append(ids, id)
			}
		}
		qb = qb.Where(sq.Eq{"id": ids})
	}

	query, args, err := qb.OrderBy("username ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build List query for users: %w", err)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return users, nil
}

// Create inserts a user and fills ID and CreatedAt.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query, args, err := psql.
		Insert("users").
		Columns("username", "email", "role", "manager_id", "password_hash").
		Values(user.Username, user.Email, user.Role, user.ManagerID, user.PasswordHash).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for user: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return nil, fmt.Errorf("%w: %s", domain.ErrEmailTaken, user.Email)
		case pgForeignKeyViolation:
			return nil, fmt.Errorf("manager: %w", domain.ErrUserNotFound)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}
