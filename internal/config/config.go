package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pdfsqueeze/internal/common"
)

// Config holds application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Storage StorageConfig `yaml:"storage"`
	Stats   StatsConfig   `yaml:"stats"`
	Log     LogConfig     `yaml:"log"`

	Logger *slog.Logger `yaml:"-"`
}

// ServerConfig holds HTTP boundary settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	Workers          int           `yaml:"workers"`
}

// EngineConfig holds transcoder settings.
type EngineConfig struct {
	GhostscriptPath         string        `yaml:"ghostscript_path"`
	GhostscriptCandidates   []string      `yaml:"ghostscript_candidates"`
	ProbeTimeout            time.Duration `yaml:"probe_timeout"`
	NativeTimeout           time.Duration `yaml:"native_timeout"`
	WorkDir                 string        `yaml:"work_dir"`
	FallbackOnNativeFailure bool          `yaml:"fallback_on_native_failure"`
	LosslessPrepass         bool          `yaml:"lossless_prepass"`
}

// FetchConfig holds remote retrieval settings.
type FetchConfig struct {
	Attempts       int           `yaml:"attempts"`
	Delay          time.Duration `yaml:"delay"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// StorageConfig points at the object store used for out-of-band uploads.
type StorageConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
}

// StatsConfig holds the statistics store settings.
type StatsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with defaults for every field.
func Default() *Config {
	workDir := filepath.Join(os.TempDir(), "pdfsqueeze")

	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      65 * time.Second,
			WriteTimeout:     65 * time.Second,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   common.DefaultRequestTimeout,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   common.DefaultMaxUploadBytes,
			Workers:          common.DefaultWorkerCount(),
		},
		Engine: EngineConfig{
			ProbeTimeout:  common.DefaultProbeTimeout,
			NativeTimeout: common.DefaultNativeTimeout,
			WorkDir:       workDir,
		},
		Fetch: FetchConfig{
			Attempts:       common.DefaultFetchAttempts,
			Delay:          common.DefaultFetchDelay,
			AttemptTimeout: 20 * time.Second,
		},
		Stats: StatsConfig{
			Enabled:      true,
			DatabasePath: filepath.Join(workDir, "stats.sqlite3"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env (if present), the YAML file at path (if non-empty), then
// applies PDFSQUEEZE_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	cfg.Logger = NewLogger(os.Stderr, cfg.Log)
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	timeouts := map[string]time.Duration{
		"server.read_timeout":    c.Server.ReadTimeout,
		"server.write_timeout":   c.Server.WriteTimeout,
		"server.request_timeout": c.Server.RequestTimeout,
		"engine.probe_timeout":   c.Engine.ProbeTimeout,
		"engine.native_timeout":  c.Engine.NativeTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.Engine.NativeTimeout >= c.Server.RequestTimeout {
		return fmt.Errorf("engine.native_timeout (%s) must be shorter than server.request_timeout (%s)",
			c.Engine.NativeTimeout, c.Server.RequestTimeout)
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}

	if c.Server.Workers < 1 {
		return fmt.Errorf("server.workers must be at least 1")
	}

	if c.Fetch.Attempts < 1 {
		return fmt.Errorf("fetch.attempts must be at least 1")
	}

	if c.Fetch.Delay < 0 {
		return fmt.Errorf("fetch.delay must not be negative")
	}

	if c.Engine.WorkDir == "" {
		return fmt.Errorf("engine.work_dir must be set")
	}

	if c.Stats.Enabled && c.Stats.DatabasePath == "" {
		return fmt.Errorf("stats.database_path must be set when stats are enabled")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// Address returns host:port for the HTTP listener.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer, lc LogConfig) *slog.Logger {
	level, err := parseLevel(lc.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PDFSQUEEZE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PDFSQUEEZE_PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	if v := os.Getenv("PDFSQUEEZE_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PDFSQUEEZE_MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.Server.MaxUploadBytes = n
	}

	if v := os.Getenv("PDFSQUEEZE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("PDFSQUEEZE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if v := os.Getenv("PDFSQUEEZE_GHOSTSCRIPT_PATH"); v != "" {
		cfg.Engine.GhostscriptPath = v
	}

	if v := os.Getenv("PDFSQUEEZE_WORK_DIR"); v != "" {
		cfg.Engine.WorkDir = v
	}

	if v := os.Getenv("PDFSQUEEZE_STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}

	if v := os.Getenv("PDFSQUEEZE_STORAGE_TOKEN"); v != "" {
		cfg.Storage.Token = v
	}

	if v := os.Getenv("PDFSQUEEZE_STATS_PATH"); v != "" {
		cfg.Stats.DatabasePath = v
	}

	return nil
}
