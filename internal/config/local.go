package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for the daemon and CLI
type LocalConfig struct {
	Daemon      DaemonConfig      `yaml:"daemon"`
	Runner      RunnerConfig      `yaml:"runner"`
	Content     ContentConfig     `yaml:"content"`
	Progress    ProgressConfig    `yaml:"progress"`
	Storage     StorageConfig     `yaml:"storage"`
	Remote      RemoteConfig      `yaml:"remote"`
	Queue       QueueConfig       `yaml:"queue"`
	Auth        AuthConfig        `yaml:"auth"`
	Preferences PreferencesConfig `yaml:"preferences"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`
	// RunRatePerSecond limits POST /v1/run per client
	RunRatePerSecond int `yaml:"run_rate_per_second"`
}

// RunnerConfig holds snippet execution settings
type RunnerConfig struct {
	Executor       string             `yaml:"executor"` // auto, docker, local
	NodePath       string             `yaml:"node_path,omitempty"`
	TimeoutSeconds int                `yaml:"timeout_seconds"`
	MaxConcurrent  int                `yaml:"max_concurrent"`
	MaxSourceBytes int                `yaml:"max_source_bytes"`
	Docker         DockerRunnerConfig `yaml:"docker"`
}

// DockerRunnerConfig holds Docker executor settings
type DockerRunnerConfig struct {
	Image      string  `yaml:"image"`
	MemoryMB   int     `yaml:"memory_mb"`
	CPULimit   float64 `yaml:"cpu_limit"`
	PidsLimit  int     `yaml:"pids_limit"`
	NetworkOff bool    `yaml:"network_off"`
}

// ContentConfig holds tutorial step settings
type ContentConfig struct {
	// Source is "storage" (the configured storage driver) or "builtin"
	Source          string `yaml:"source"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	PacksPath       string `yaml:"packs_path,omitempty"`
}

// ProgressConfig holds progress write-behind settings
type ProgressConfig struct {
	Writer        string `yaml:"writer"` // async, amqp
	QueueSize     int    `yaml:"queue_size"`
	RetryAttempts int    `yaml:"retry_attempts"`
	RetryDelayMS  int    `yaml:"retry_delay_ms"`
}

// StorageConfig selects where steps and progress records live
type StorageConfig struct {
	Driver      string `yaml:"driver"` // sqlite, postgres, remote
	SQLitePath  string `yaml:"sqlite_path,omitempty"`
	PostgresURL string `yaml:"-"` // Loaded from secrets.yaml
}

// RemoteConfig holds the records API settings
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	ProjectID      string `yaml:"project_id"`
	PublicKey      string `yaml:"-"` // Loaded from secrets.yaml
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// QueueConfig holds RabbitMQ settings for the amqp progress writer
type QueueConfig struct {
	URL     string `yaml:"-"` // Loaded from secrets.yaml
	Workers int    `yaml:"workers"`
}

// AuthConfig holds session settings
type AuthConfig struct {
	SessionMaxAgeSeconds int    `yaml:"session_max_age_seconds"`
	CookieName           string `yaml:"cookie_name"`
	CookieSecure         bool   `yaml:"cookie_secure"`
}

// PreferencesConfig holds learner preferences used by the CLI
type PreferencesConfig struct {
	// DarkMode overrides the detected terminal preference when set
	DarkMode *bool `yaml:"dark_mode,omitempty"`
}

// SecretsConfig holds credentials loaded from secrets.yaml
type SecretsConfig struct {
	Remote struct {
		PublicKey string `yaml:"public_key"`
	} `yaml:"remote"`
	Storage struct {
		PostgresURL string `yaml:"postgres_url"`
	} `yaml:"storage"`
	Queue struct {
		URL string `yaml:"url"`
	} `yaml:"queue"`
}

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRemote   = "remote"
)

// Progress writers
const (
	WriterAsync = "async"
	WriterAMQP  = "amqp"
)

// CodeBurstDir returns the path to ~/.codeburst, or $CODEBURST_HOME when set
func CodeBurstDir() (string, error) {
	if dir := os.Getenv("CODEBURST_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".codeburst"), nil
}

// EnsureCodeBurstDir creates ~/.codeburst and subdirectories if they don't exist
func EnsureCodeBurstDir() (string, error) {
	dir, err := CodeBurstDir()
	if err != nil {
		return "", err
	}

	subdirs := []string{
		"",
		"logs",
		"packs",
		"preferences",
	}

	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:             7433,
			Bind:             "127.0.0.1",
			LogLevel:         "info",
			RunRatePerSecond: 2,
		},
		Runner: RunnerConfig{
			Executor:       "auto",
			TimeoutSeconds: 5,
			MaxConcurrent:  4,
			MaxSourceBytes: 64 * 1024,
			Docker: DockerRunnerConfig{
				Image:      "node:20-alpine",
				MemoryMB:   128,
				CPULimit:   0.5,
				PidsLimit:  64,
				NetworkOff: true,
			},
		},
		Content: ContentConfig{
			Source:          "storage",
			CacheTTLSeconds: 300,
		},
		Progress: ProgressConfig{
			Writer:        WriterAsync,
			QueueSize:     256,
			RetryAttempts: 3,
			RetryDelayMS:  200,
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
		},
		Remote: RemoteConfig{
			TimeoutSeconds: 10,
		},
		Queue: QueueConfig{
			Workers: 2,
		},
		Auth: AuthConfig{
			SessionMaxAgeSeconds: 86400 * 7,
			CookieName:           "codeburst_session",
		},
	}
}

// LoadLocalConfig loads ~/.codeburst/config.yaml and secrets.yaml over the
// defaults, then applies CODEBURST_* environment overrides.
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := CodeBurstDir()
	if err != nil {
		return nil, err
	}

	cfg := DefaultLocalConfig()

	configPath := filepath.Join(dir, "config.yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults only
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSecrets loads credentials from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	secretsPath := filepath.Join(dir, "secrets.yaml")

	data, err := os.ReadFile(secretsPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	cfg.Remote.PublicKey = secrets.Remote.PublicKey
	cfg.Storage.PostgresURL = secrets.Storage.PostgresURL
	cfg.Queue.URL = secrets.Queue.URL
	return nil
}

// SaveLocalConfig saves configuration to ~/.codeburst/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureCodeBurstDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveSecrets saves credentials to ~/.codeburst/secrets.yaml
func SaveSecrets(secrets SecretsConfig) error {
	dir, err := EnsureCodeBurstDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// Owner read/write only
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}

// Validate checks that the selected backends have what they need
func (c *LocalConfig) Validate() error {
	switch c.Runner.Executor {
	case "auto", "docker", "local":
	default:
		return fmt.Errorf("runner.executor: unknown executor %q", c.Runner.Executor)
	}

	switch c.Storage.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("storage.driver postgres requires storage.postgres_url in secrets.yaml or CODEBURST_DATABASE_URL")
		}
	case DriverRemote:
		if c.Remote.BaseURL == "" || c.Remote.ProjectID == "" {
			return errors.New("storage.driver remote requires remote.base_url and remote.project_id")
		}
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}

	switch c.Progress.Writer {
	case WriterAsync:
	case WriterAMQP:
		if c.Queue.URL == "" {
			return errors.New("progress.writer amqp requires queue.url in secrets.yaml or CODEBURST_AMQP_URL")
		}
	default:
		return fmt.Errorf("progress.writer: unknown writer %q", c.Progress.Writer)
	}

	if c.Content.Source != "storage" && c.Content.Source != "builtin" {
		return fmt.Errorf("content.source: unknown source %q", c.Content.Source)
	}
	return nil
}

// Addr returns the daemon listen address
func (c DaemonConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// Timeout returns the per-run timeout
func (c RunnerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns the step cache lifetime
func (c ContentConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// ResolvedPacksPath returns the packs directory, defaulting to ~/.codeburst/packs
func (c ContentConfig) ResolvedPacksPath() (string, error) {
	if c.PacksPath != "" {
		return c.PacksPath, nil
	}
	dir, err := CodeBurstDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "packs"), nil
}

// ResolvedSQLitePath returns the database file, defaulting to ~/.codeburst/codeburst.db
func (c StorageConfig) ResolvedSQLitePath() (string, error) {
	if c.SQLitePath != "" {
		return c.SQLitePath, nil
	}
	dir, err := CodeBurstDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "codeburst.db"), nil
}

// RetryDelay returns the initial write-behind retry delay
func (c ProgressConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// Timeout returns the records API request timeout
func (c RemoteConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SessionMaxAge returns the session lifetime
func (c AuthConfig) SessionMaxAge() time.Duration {
	return time.Duration(c.SessionMaxAgeSeconds) * time.Second
}
