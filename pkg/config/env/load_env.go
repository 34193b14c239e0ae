package env

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file.
// ENV_PATH overrides the default path when set. A missing file is only an
// error in local mode (APP_ENV unset or "local").
func LoadDotEnv(defaultPath string) error {
	envPath := os.Getenv("ENV_PATH")
	if envPath == "" {
		slog.Debug("ENV_PATH is not set, using default path", "defaultPath", defaultPath)
		envPath = defaultPath
	}

	if err := godotenv.Load(envPath); err != nil {
		appEnv := os.Getenv("APP_ENV")
		if appEnv == "local" || appEnv == "" {
			slog.Warn("Failed to load .env file", "path", envPath, "error", err)
			return err
		}
		slog.Debug("Skipping .env ...")
	}

	return nil
}
