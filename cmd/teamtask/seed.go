package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/service"
)

// seedUser is one --seed-user entry.
type seedUser struct {
	Role         domain.Role
	Username     string
	Email        string
	ManagerEmail string
	Password     string
}

// parseSeedUser parses "role:username:email:manager-email:password". The
// password comes last and may contain colons. manager-email is empty for
// accounts without a manager.
func parseSeedUser(raw string) (seedUser, error) {
	parts := strings.SplitN(raw, ":", 5)
	if len(parts) != 5 {
		return seedUser{}, fmt.Errorf("seed-user %q: want role:username:email:manager-email:password", raw)
	}
	role, err := domain.ParseRole(parts[0])
	if err != nil {
		return seedUser{}, fmt.Errorf("seed-user %q: %w", raw, err)
	}
	return seedUser{
		Role:         role,
		Username:     parts[1],
		Email:        parts[2],
		ManagerEmail: strings.ToLower(strings.TrimSpace(parts[3])),
		Password:     parts[4],
	}, nil
}

// seedUsers creates the accounts in order, so a manager must be listed before
// the users reporting to them. Emails already registered are skipped.
func seedUsers(ctx context.Context, store service.Store, authService *service.AuthService, raw []string) error {
	for _, entry := range raw {
		seed, err := parseSeedUser(entry)
		if err != nil {
			return err
		}

		var managerID *string
		if seed.ManagerEmail != "" {
			manager, err := store.GetUserByEmail(ctx, seed.ManagerEmail)
			if err != nil {
				return fmt.Errorf("seed-user %s: manager %s: %w", seed.Email, seed.ManagerEmail, err)
			}
			managerID = &manager.ID
		}

		user, err := authService.CreateUser(ctx, service.CreateUserParams{
			Username:  seed.Username,
			Email:     seed.Email,
			Password:  seed.Password,
			Role:      seed.Role,
			ManagerID: managerID,
		})
		if errors.Is(err, domain.ErrEmailTaken) {
			slog.Info("seed user already exists", "email", seed.Email)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to seed user %s: %w", seed.Email, err)
		}

		slog.Info("seed user created", "user_id", user.ID, "role", user.Role)
	}
	return nil
}
