// Package cli provides common initialization for the billed commands.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"billed/internal/config"
	"billed/internal/core"
	"billed/internal/log"
	"billed/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the logger described by cfg and makes it the default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	lc.Component = component
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadConfig loads the environment, configures logging and validates the
// configuration, exiting the process when it is invalid.
func LoadConfig(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// UserEnsurer creates or refreshes an account.
type UserEnsurer interface {
	Ensure(ctx context.Context, email, password string, userType core.UserType) error
}

// SeedUsers makes sure every configured account exists. Failures are logged
// and counted, not fatal.
func SeedUsers(ctx context.Context, logger *log.Logger, users UserEnsurer, seeds []config.SeedUser) int {
	failed := 0
	for _, u := range seeds {
		if err := users.Ensure(ctx, u.Email, u.Password, u.Type); err != nil {
			logger.Error("Failed to seed user", log.FieldEmail, u.Email, log.FieldError, err)
			failed++
			continue
		}
		logger.Info("User ready", log.FieldEmail, u.Email, "type", u.Type)
	}
	return failed
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	}()
	return ctx, stop
}
