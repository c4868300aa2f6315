// @title			TeamTask API
// @version		1.0
// @description	Role-based task tracker with an append-only status audit trail.
// @BasePath		/api/v1

// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mtlprog/teamtask/internal/auth"
	"github.com/mtlprog/teamtask/internal/config"
	"github.com/mtlprog/teamtask/internal/database"
	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/handler"
	"github.com/mtlprog/teamtask/internal/logger"
	"github.com/mtlprog/teamtask/internal/ratelimit"
	"github.com/mtlprog/teamtask/internal/repository"
	"github.com/mtlprog/teamtask/internal/repository/memory"
	"github.com/mtlprog/teamtask/internal/service"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "teamtask",
		Usage: "Role-based task tracker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   config.DefaultLogLevel,
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "storage",
				Aliases: []string{"s"},
				Value:   config.DefaultStorage,
				Usage:   "Storage backend (memory, postgres)",
				EnvVars: []string{"STORAGE"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Aliases: []string{"d"},
				Value:   config.DefaultDatabaseURL,
				Usage:   "PostgreSQL database URL (postgres storage)",
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the web server",
				Flags:  serveFlags(),
				Action: runServe,
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations",
				Action: func(c *cli.Context) error {
					db, err := openDatabase(c)
					if err != nil {
						return err
					}
					db.Close()
					return nil
				},
			},
			{
				Name:  "create-user",
				Usage: "Create an account of any role",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true, Usage: "Display name"},
					&cli.StringFlag{Name: "email", Required: true, Usage: "Login email"},
					&cli.StringFlag{Name: "password", Required: true, Usage: "Password (8-72 bytes)", EnvVars: []string{"USER_PASSWORD"}},
					&cli.StringFlag{Name: "role", Value: string(domain.RoleUser), Usage: "Role (super-admin, manager, user)"},
					&cli.StringFlag{Name: "manager-id", Usage: "Manager of a user-role account"},
				},
				Action: runCreateUser,
			},
			{
				Name:   "list-overdue",
				Usage:  "Log every unfinished task past its due date",
				Action: runListOverdue,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Value:   config.DefaultPort,
			Usage:   "HTTP server port",
			EnvVars: []string{"PORT"},
		},
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "HMAC secret for access tokens",
			EnvVars: []string{"JWT_SECRET"},
		},
		&cli.DurationFlag{
			Name:    "token-ttl",
			Value:   config.DefaultTokenTTL,
			Usage:   "Access token lifetime",
			EnvVars: []string{"TOKEN_TTL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for login rate limiting (disabled when empty)",
			EnvVars: []string{"REDIS_URL"},
		},
		&cli.IntFlag{
			Name:    "login-rate-limit",
			Value:   config.DefaultLoginRateLimit,
			Usage:   "Login attempts per client IP per minute",
			EnvVars: []string{"LOGIN_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "admin-email",
			Usage:   "Bootstrap a super-admin with this email on start",
			EnvVars: []string{"ADMIN_EMAIL"},
		},
		&cli.StringFlag{
			Name:    "admin-password",
			Usage:   "Password of the bootstrap super-admin",
			EnvVars: []string{"ADMIN_PASSWORD"},
		},
		&cli.StringSliceFlag{
			Name:    "seed-user",
			Usage:   "Create an account on start, as role:username:email:manager-email:password (repeatable)",
			EnvVars: []string{"SEED_USERS"},
		},
	}
}

func runServe(c *cli.Context) error {
	ctx := c.Context

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}
	secret := c.String("jwt-secret")
	if secret == "" {
		return errors.New("jwt-secret is required")
	}
	ttl := c.Duration("token-ttl")
	if ttl <= 0 {
		ttl = config.DefaultTokenTTL
	}

	store, closeStore, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	authService := newAuthService(store, secret, ttl)
	if err := bootstrapAdmin(ctx, authService, c.String("admin-email"), c.String("admin-password")); err != nil {
		return err
	}
	if err := seedUsers(ctx, store, authService, c.StringSlice("seed-user")); err != nil {
		return err
	}

	var limiter *ratelimit.Limiter
	if redisURL := c.String("redis-url"); redisURL != "" {
		client, err := ratelimit.Connect(ctx, redisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()
		limiter = ratelimit.NewLimiter(client, ratelimit.DefaultKeyPrefix, c.Int("login-rate-limit"), config.DefaultLoginRateWindow)
		slog.Info("login rate limiting enabled", "limit", c.Int("login-rate-limit"))
	}

	h := handler.New(store, authService, limiter)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+port, "storage", c.String("storage"))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func runCreateUser(c *cli.Context) error {
	ctx := c.Context

	if c.String("storage") != config.StoragePostgres {
		return errors.New("create-user requires --storage postgres")
	}
	role, err := domain.ParseRole(c.String("role"))
	if err != nil {
		return err
	}
	var managerID *string
	if id := c.String("manager-id"); id != "" {
		managerID = &id
	}

	store, closeStore, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	user, err := newAuthService(store, "", config.DefaultTokenTTL).CreateUser(ctx, service.CreateUserParams{
		Username:  c.String("username"),
		Email:     c.String("email"),
		Password:  c.String("password"),
		Role:      role,
		ManagerID: managerID,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintln(c.App.Writer, user.ID)
	return nil
}

func runListOverdue(c *cli.Context) error {
	ctx := c.Context

	if c.String("storage") != config.StoragePostgres {
		return errors.New("list-overdue requires --storage postgres")
	}

	store, closeStore, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	tasks, err := service.NewTaskService(store).ListOverdue(ctx)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		slog.Warn("task overdue",
			"task_id", task.ID,
			"owner_id", task.OwnerID,
			"status", task.Status,
			"due_date", task.DueDate,
		)
	}
	slog.Info("overdue scan finished", "overdue", len(tasks))

	return nil
}

// openStore returns the configured storage backend and its cleanup function.
func openStore(c *cli.Context) (service.Store, func(), error) {
	switch c.String("storage") {
	case config.StorageMemory:
		return memory.New(), func() {}, nil
	case config.StoragePostgres:
		db, err := openDatabase(c)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewStore(db.Pool()), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q", c.String("storage"))
	}
}

func openDatabase(c *cli.Context) (*database.DB, error) {
	ctx := c.Context

	databaseURL := c.String("database-url")
	if databaseURL == "" {
		return nil, errors.New("database-url is required for postgres storage")
	}

	db, err := database.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func newAuthService(store service.Store, secret string, ttl time.Duration) *service.AuthService {
	tokens := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:           secret,
		AccessTokenDuration: ttl,
		Issuer:              config.DefaultTokenIssuer,
	})
	return service.NewAuthService(store, tokens, auth.NewPasswordHasher())
}

// bootstrapAdmin creates the super-admin account unless its email is already
// registered.
func bootstrapAdmin(ctx context.Context, authService *service.AuthService, email, password string) error {
	if email == "" && password == "" {
		return nil
	}
	if email == "" || password == "" {
		return errors.New("admin-email and admin-password must be set together")
	}

	user, err := authService.CreateUser(ctx, service.CreateUserParams{
		Username: "admin",
		Email:    email,
		Password: password,
		Role:     domain.RoleSuperAdmin,
	})
	if errors.Is(err, domain.ErrEmailTaken) {
		slog.Info("bootstrap super-admin already exists", "email", email)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to bootstrap super-admin: %w", err)
	}

	slog.Info("bootstrap super-admin created", "user_id", user.ID)
	return nil
}
