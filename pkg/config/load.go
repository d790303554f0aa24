package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load applies the first env file found among envFiles, each searched from
// the working directory upwards, and then reads the process environment.
// Variables already set in the environment win over the file. With no
// envFiles, ".env" is tried.
func Load(envFiles ...string) (*App, error) {
	logger := slog.Default()
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	applyEnvFile(logger, envFiles)

	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	logger.Info("App config loaded",
		"env", cfg.Env,
		"db_path", cfg.DB.Path,
		"cache_backend", cfg.Cache.Backend,
		"redis_url", maskValue(cfg.Redis.URL),
		"admins", len(cfg.Store.AdminIDs),
		"display_channel", cfg.Store.ChannelID,
		"reconcile_interval", cfg.Store.ReconcileInterval,
		"rate_limit_max_requests", cfg.RateLimit.MaxRequests,
		"rate_limit_window", cfg.RateLimit.Window,
		"jwt_expiry", cfg.Jwt.Expiry,
	)
	return &cfg, nil
}

func applyEnvFile(logger *slog.Logger, names []string) {
	for _, name := range names {
		path, err := findUpwards(name)
		if err != nil {
			logger.Debug("Environment file not found", "name", name)
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.Error("Failed to load environment file", "path", path, "error", err)
			continue
		}
		logger.Info("Environment loaded from file", "path", path)
		return
	}
	logger.Warn("No environment file found, using process environment only")
}

var errEnvFileNotFound = errors.New("env file not found")

// findUpwards returns the nearest name in the working directory or one of
// its parents. Absolute names are checked as is.
func findUpwards(name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", errEnvFileNotFound
		}
		return name, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errEnvFileNotFound
		}
		dir = parent
	}
}

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
