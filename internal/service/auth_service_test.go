package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/mtlprog/teamtask/internal/auth"
	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/repository/memory"
	"github.com/mtlprog/teamtask/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (*service.AuthService, *memory.Store) {
	t.Helper()
	store := memory.New()
	tokens := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:           "test-secret",
		AccessTokenDuration: time.Hour,
		Issuer:              "teamtask-test",
	})
	return service.NewAuthService(store, tokens, auth.NewPasswordHasherWithCost(4)), store
}

func TestAuthService_RegisterLoginAuthenticate(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	creds, err := svc.Register(ctx, service.RegisterParams{
		Username: "alice",
		Email:    "  Alice@Example.com ",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, creds.User.Role)
	assert.Equal(t, "alice@example.com", creds.User.Email)
	assert.Nil(t, creds.User.ManagerID)
	assert.NotEmpty(t, creds.Token)
	assert.Equal(t, int64(3600), creds.ExpiresIn)

	login, err := svc.Login(ctx, "ALICE@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, creds.User.ID, login.User.ID)

	identity, err := svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, creds.User.ID, identity.ID)
	assert.Equal(t, domain.RoleUser, identity.Role)
	assert.True(t, identity.IsAuthenticated())
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, service.RegisterParams{Username: "bob", Email: "bob@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "bob@example.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "password1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "not-an-email", "password1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		params  service.RegisterParams
		wantErr error
	}{
		{"missing username", service.RegisterParams{Email: "a@example.com", Password: "password1"}, domain.ErrValidation},
		{"bad email", service.RegisterParams{Username: "a", Email: "a@", Password: "password1"}, domain.ErrValidation},
		{"display name email", service.RegisterParams{Username: "a", Email: "A <a@example.com>", Password: "password1"}, domain.ErrValidation},
		{"short password", service.RegisterParams{Username: "a", Email: "a@example.com", Password: "short"}, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := svc.Register(ctx, service.RegisterParams{Username: "a", Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, service.RegisterParams{Username: "b", Email: "A@example.com", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestAuthService_CreateUserManagerRules(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	manager, err := svc.CreateUser(ctx, service.CreateUserParams{
		Username: "mgr", Email: "mgr@example.com", Password: "password1", Role: domain.RoleManager,
	})
	require.NoError(t, err)
	plain, err := svc.CreateUser(ctx, service.CreateUserParams{
		Username: "plain", Email: "plain@example.com", Password: "password1", Role: domain.RoleUser,
	})
	require.NoError(t, err)

	report, err := svc.CreateUser(ctx, service.CreateUserParams{
		Username: "report", Email: "report@example.com", Password: "password1",
		Role: domain.RoleUser, ManagerID: &manager.ID,
	})
	require.NoError(t, err)
	assert.True(t, report.ReportsTo(manager.ID))

	_, err = svc.CreateUser(ctx, service.CreateUserParams{
		Username: "x", Email: "x@example.com", Password: "password1",
		Role: domain.RoleManager, ManagerID: &manager.ID,
	})
	assert.ErrorIs(t, err, domain.ErrValidation, "managers have no manager")

	_, err = svc.CreateUser(ctx, service.CreateUserParams{
		Username: "y", Email: "y@example.com", Password: "password1",
		Role: domain.RoleUser, ManagerID: &plain.ID,
	})
	assert.ErrorIs(t, err, domain.ErrValidation, "manager must hold the manager role")

	missing := "missing"
	_, err = svc.CreateUser(ctx, service.CreateUserParams{
		Username: "z", Email: "z@example.com", Password: "password1",
		Role: domain.RoleUser, ManagerID: &missing,
	})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = svc.CreateUser(ctx, service.CreateUserParams{
		Username: "r", Email: "r@example.com", Password: "password1", Role: domain.Role("root"),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAuthService_AuthenticateRejects(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	other := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:           "test-secret",
		AccessTokenDuration: time.Hour,
		Issuer:              "teamtask-test",
	})
	token, err := other.GenerateAccessToken("no-such-user", "ghost@example.com")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestAuthService_RoleComesFromDirectory(t *testing.T) {
	svc, store := newAuthService(t)
	ctx := context.Background()

	admin, err := svc.CreateUser(ctx, service.CreateUserParams{
		Username: "root", Email: "root@example.com", Password: "password1", Role: domain.RoleSuperAdmin,
	})
	require.NoError(t, err)

	creds, err := svc.Login(ctx, "root@example.com", "password1")
	require.NoError(t, err)

	identity, err := svc.Authenticate(ctx, creds.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperAdmin, identity.Role)

	stored, err := store.GetUser(ctx, admin.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "password1", stored.PasswordHash)
}
