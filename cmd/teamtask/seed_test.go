package main

import (
	"context"
	"testing"
	"time"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeedUser(t *testing.T) {
	seed, err := parseSeedUser("user:bob:bob@example.com: Alice@Example.com :pass:with:colons")
	require.NoError(t, err)
	assert.Equal(t, seedUser{
		Role:         domain.RoleUser,
		Username:     "bob",
		Email:        "bob@example.com",
		ManagerEmail: "alice@example.com",
		Password:     "pass:with:colons",
	}, seed)

	_, err = parseSeedUser("manager:alice:alice@example.com")
	assert.Error(t, err)

	_, err = parseSeedUser("owner:alice:alice@example.com::secret123")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSeedUsers_ManagerHierarchyOnMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	authService := newAuthService(store, "test-secret", time.Hour)

	seeds := []string{
		"manager:alice:alice@example.com::secret123",
		"user:bob:bob@example.com:alice@example.com:secret123",
	}
	require.NoError(t, seedUsers(ctx, store, authService, seeds))

	alice, err := store.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, alice.Role)

	bob, err := store.GetUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, bob.Role)
	require.NotNil(t, bob.ManagerID)
	assert.Equal(t, alice.ID, *bob.ManagerID)

	// a restart with the same seeds leaves existing accounts alone
	require.NoError(t, seedUsers(ctx, store, authService, seeds))
}

func TestSeedUsers_UnknownManager(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	authService := newAuthService(store, "test-secret", time.Hour)

	err := seedUsers(ctx, store, authService, []string{"user:bob:bob@example.com:nobody@example.com:secret123"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
