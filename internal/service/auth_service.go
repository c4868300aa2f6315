package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mtlprog/teamtask/internal/auth"
	"github.com/mtlprog/teamtask/internal/domain"
)

// AuthService registers users, checks passwords and turns access tokens into
// identities. The user directory, not the token, is authoritative for role.
type AuthService struct {
	store  Store
	tokens *auth.JWTManager
	hasher *auth.PasswordHasher
}

// NewAuthService creates a new AuthService.
func NewAuthService(store Store, tokens *auth.JWTManager, hasher *auth.PasswordHasher) *AuthService {
	return &AuthService{
		store:  store,
		tokens: tokens,
		hasher: hasher,
	}
}

// Credentials is the result of a successful register or login.
type Credentials struct {
	User      *domain.User
	Token     string
	ExpiresIn int64
}

// RegisterParams describes a self-service sign-up.
type RegisterParams struct {
	Username string
	Email    string
	Password string
}

// CreateUserParams describes an operator-created account of any role.
type CreateUserParams struct {
	Username  string
	Email     string
	Password  string
	Role      domain.Role
	ManagerID *string
}

// Register creates a plain user account and signs it in.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*Credentials, error) {
	user, err := s.CreateUser(ctx, CreateUserParams{
		Username: params.Username,
		Email:    params.Email,
		Password: params.Password,
		Role:     domain.RoleUser,
	})
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login checks an email and password pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Credentials, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		slog.Warn("failed login", "user_id", user.ID)
		return nil, domain.ErrInvalidCredentials
	}

	return s.issue(user)
}

// CreateUser creates an account with any role. A manager may only be named
// for user-role accounts and must itself hold the manager role.
func (s *AuthService) CreateUser(ctx context.Context, params CreateUserParams) (*domain.User, error) {
	if !params.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, params.Role)
	}
	username, err := validateUsername(params.Username)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, err
	}

	if params.ManagerID != nil {
		if params.Role != domain.RoleUser {
			return nil, fmt.Errorf("%w: only user accounts can have a manager", domain.ErrValidation)
		}
		manager, err := s.store.GetUser(ctx, *params.ManagerID)
		if err != nil {
			return nil, fmt.Errorf("manager: %w", err)
		}
		if manager.Role != domain.RoleManager {
			return nil, fmt.Errorf("%w: user %s is not a manager", domain.ErrValidation, manager.ID)
		}
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmailTaken, email)
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, &domain.User{
		Username:     username,
		Email:        email,
		Role:         params.Role,
		ManagerID:    params.ManagerID,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user created", "user_id", user.ID, "role", user.Role)

	return user, nil
}

// Authenticate resolves an access token to the caller's current Identity.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := s.tokens.ValidateAccessToken(token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.Identity{}, fmt.Errorf("%w: unknown user", domain.ErrUnauthenticated)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("load user: %w", err)
	}

	return user.Identity(), nil
}

func (s *AuthService) issue(user *domain.User) (*Credentials, error) {
	token, err := s.tokens.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Credentials{
		User:      user,
		Token:     token,
		ExpiresIn: s.tokens.AccessTokenDuration(),
	}, nil
}
