package config

import (
	"os"
	"strconv"
)

// ApplyEnv overrides cfg with CODEBURST_* environment variables
func ApplyEnv(cfg *LocalConfig) {
	cfg.Daemon.Port = getEnvInt("CODEBURST_PORT", cfg.Daemon.Port)
	cfg.Daemon.Bind = getEnv("CODEBURST_BIND", cfg.Daemon.Bind)
	cfg.Daemon.LogLevel = getEnv("CODEBURST_LOG_LEVEL", cfg.Daemon.LogLevel)

	cfg.Runner.Executor = getEnv("CODEBURST_EXECUTOR", cfg.Runner.Executor)
	cfg.Runner.NodePath = getEnv("CODEBURST_NODE_PATH", cfg.Runner.NodePath)
	cfg.Runner.TimeoutSeconds = getEnvInt("CODEBURST_RUNNER_TIMEOUT", cfg.Runner.TimeoutSeconds)
	cfg.Runner.Docker.Image = getEnv("CODEBURST_RUNNER_IMAGE", cfg.Runner.Docker.Image)
	cfg.Runner.Docker.CPULimit = getEnvFloat("CODEBURST_RUNNER_CPU_LIMIT", cfg.Runner.Docker.CPULimit)

	cfg.Content.Source = getEnv("CODEBURST_CONTENT_SOURCE", cfg.Content.Source)
	cfg.Content.PacksPath = getEnv("CODEBURST_PACKS_PATH", cfg.Content.PacksPath)

	cfg.Progress.Writer = getEnv("CODEBURST_PROGRESS_WRITER", cfg.Progress.Writer)

	cfg.Storage.Driver = getEnv("CODEBURST_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.SQLitePath = getEnv("CODEBURST_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.PostgresURL = getEnv("CODEBURST_DATABASE_URL", cfg.Storage.PostgresURL)

	cfg.Remote.BaseURL = getEnv("CODEBURST_REMOTE_URL", cfg.Remote.BaseURL)
	cfg.Remote.ProjectID = getEnv("CODEBURST_PROJECT_ID", cfg.Remote.ProjectID)
	cfg.Remote.PublicKey = getEnv("CODEBURST_PUBLIC_KEY", cfg.Remote.PublicKey)

	cfg.Queue.URL = getEnv("CODEBURST_AMQP_URL", cfg.Queue.URL)

	cfg.Auth.CookieSecure = getEnvBool("CODEBURST_COOKIE_SECURE", cfg.Auth.CookieSecure)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
