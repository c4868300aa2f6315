package config

import "time"

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; required only for the postgres storage.
	DefaultDatabaseURL = ""

	// DefaultStorage keeps everything in process memory.
	DefaultStorage = StorageMemory

	// DefaultLogLevel is the default slog level.
	DefaultLogLevel = "info"

	// DefaultTokenTTL is how long access tokens stay valid.
	DefaultTokenTTL = 24 * time.Hour

	// DefaultTokenIssuer is the iss claim of issued access tokens.
	DefaultTokenIssuer = "teamtask"

	// DefaultLoginRateLimit is the number of login attempts allowed per
	// client IP within DefaultLoginRateWindow.
	DefaultLoginRateLimit = 10

	// DefaultLoginRateWindow is the login rate limit window.
	DefaultLoginRateWindow = time.Minute
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)
