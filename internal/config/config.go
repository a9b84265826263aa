// Package config loads runtime configuration from the environment, with an
// optional .env file for development setups.
package config

import (
	"os"

	"github.com/joho/godotenv"

	apperrors "github.com/andenet/fieldsync/internal/errors"
	"github.com/andenet/fieldsync/internal/models"
	"github.com/andenet/fieldsync/internal/uuid"
)

// Config holds the settings the sync engine needs at startup.
type Config struct {
	// DataDir is where the SQLite database lives.
	DataDir string
	// DeviceID identifies this installation; generated once and persisted
	// by the caller if not configured.
	DeviceID string
	// UserID is the locally signed-in user.
	UserID string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFile enables rotating file output when set.
	LogFile string
	// MigrationsDir holds versioned SQL migrations; empty disables them.
	MigrationsDir string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present; real environment variables win.
func Load() (*Config, error) {
	// ignore missing .env, it is a development convenience
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:       getEnv("FIELDSYNC_DATA_DIR", "./data"),
		DeviceID:      os.Getenv("FIELDSYNC_DEVICE_ID"),
		UserID:        os.Getenv("FIELDSYNC_USER_ID"),
		LogLevel:      getEnv("FIELDSYNC_LOG_LEVEL", "info"),
		LogFile:       os.Getenv("FIELDSYNC_LOG_FILE"),
		MigrationsDir: os.Getenv("FIELDSYNC_MIGRATIONS_DIR"),
	}

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.New()
	}
	if err := uuid.Validate(cfg.DeviceID); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "invalid FIELDSYNC_DEVICE_ID", err)
	}
	if cfg.UserID != "" {
		if err := uuid.Validate(cfg.UserID); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrValidation, "invalid FIELDSYNC_USER_ID", err)
		}
	}
	return cfg, nil
}

// Actor returns the (user, device) pair attributed to local mutations.
func (c *Config) Actor() models.Actor {
	return models.Actor{
		UserID:   models.UUID(c.UserID),
		DeviceID: models.UUID(c.DeviceID),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
