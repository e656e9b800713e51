// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppConfig holds all application configuration.
// It is instantiated by NewConfig() and passed to components that need it (dependency injection).
type AppConfig struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Log         LogConfig         `mapstructure:"log"`
	Server      ServerConfig      `mapstructure:"server"`
	Oracle      OracleConfig      `mapstructure:"oracle"`
	Cascade     CascadeConfig     `mapstructure:"cascade"`
	Progression ProgressionConfig `mapstructure:"progression"`
}

// DatabaseConfig holds all database configuration.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// LogConfig holds comprehensive logging configuration
type LogConfig struct {
	Level    string            `mapstructure:"level"`
	Format   string            `mapstructure:"format"`
	Output   []LogOutputConfig `mapstructure:"output"`
	Levels   map[string]string `mapstructure:"levels"`
	Context  LogContextConfig  `mapstructure:"context"`
	Sampling LogSamplingConfig `mapstructure:"sampling"`
}

// LogOutputConfig defines where logs are written
type LogOutputConfig struct {
	Type    string          `mapstructure:"type"` // "file", "console"
	Enabled bool            `mapstructure:"enabled"`
	Path    string          `mapstructure:"path"`   // For file output
	Rotate  LogRotateConfig `mapstructure:"rotate"` // For file output
}

// LogRotateConfig defines log rotation settings
type LogRotateConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// LogContextConfig defines what context to include in logs
type LogContextConfig struct {
	IncludeCaller     bool   `mapstructure:"include_caller"`
	IncludeTimestamp  bool   `mapstructure:"include_timestamp"`
	IncludeLevel      bool   `mapstructure:"include_level"`
	IncludeStackTrace string `mapstructure:"include_stack_trace"` // Level at which to include stack trace
}

// LogSamplingConfig defines log sampling settings
type LogSamplingConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Initial    uint32        `mapstructure:"initial"`
	Thereafter uint32        `mapstructure:"thereafter"`
	Tick       time.Duration `mapstructure:"tick"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // Empty = allow all (development); set for production
}

// OracleConfig holds scoring-oracle configuration. The oracle is the only
// external call with meaningful latency, so its timeout and retry budget
// are bounded here rather than left to the transport defaults.
type OracleConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// CascadeConfig holds completion-predicate thresholds and the store retry
// policy applied at the cascade boundary.
type CascadeConfig struct {
	ChallengeMinTier     int           `mapstructure:"challenge_min_tier"`     // minimum rubric tier for Challenge children
	ConversationMinScore float64       `mapstructure:"conversation_min_score"` // minimum overall score for Conversation children
	StoreMaxRetries      int           `mapstructure:"store_max_retries"`
	StoreInitialBackoff  time.Duration `mapstructure:"store_initial_backoff"`
}

// ProgressionConfig holds the dimensional progression thresholds.
// Thresholds are cumulative XP required to reach levels 2..6; they must be
// strictly increasing.
type ProgressionConfig struct {
	LevelThresholds []int `mapstructure:"level_thresholds"`
	FocusDimensions int   `mapstructure:"focus_dimensions"` // N dimensions returned by focus recommendations
}

// NewConfig creates a new AppConfig by reading from a file, environment variables,
// and applying defaults.
func NewConfig(configPath string) (*AppConfig, error) {
	// Create a new config struct with default values
	cfg := defaultConfig()

	v := viper.New()

	// Set config file if provided, otherwise search in standard locations
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/questweave/")
		v.AddConfigPath("$HOME/.questweave")
	}

	// Configure viper to use environment variables
	v.SetEnvPrefix("QUESTWEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the config file. It's okay if it doesn't exist. Viper reports a
	// missing file two ways: ConfigFileNotFoundError when searching paths,
	// and a bare fs.ErrNotExist when the path was given explicitly.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal the viper configuration into our config struct.
	// This will overwrite the default values with any values found in the config file or env vars.
	// We use a decoder hook to correctly handle nested structs.
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand paths that may contain ~ or environment variables
	cfg.expandPaths()

	// Validate the final configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// defaultConfig returns an AppConfig with default values.
// This is more type-safe than using viper.SetDefault().
func defaultConfig() AppConfig {
	return AppConfig{
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Database: "questweave.db",
			Host:     "localhost",
			Port:     5432,
			SSLMode:  "disable",
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "console",
			Output: []LogOutputConfig{
				{
					Type:    "file",
					Enabled: true,
					Path:    "./logs/questweave.log",
					Rotate: LogRotateConfig{
						MaxSizeMB:  100,
						MaxBackups: 7,
						MaxAgeDays: 30,
						Compress:   true,
					},
				},
				{
					Type:    "console",
					Enabled: false,
				},
			},
			Levels: map[string]string{
				"engine":     "INFO",
				"cascade":    "INFO",
				"database":   "INFO",
				"oracle":     "INFO",
				"validation": "INFO",
				"api":        "INFO",
			},
			Context: LogContextConfig{
				IncludeCaller:     true,
				IncludeTimestamp:  true,
				IncludeLevel:      true,
				IncludeStackTrace: "ERROR",
			},
			Sampling: LogSamplingConfig{
				Enabled:    false,
				Initial:    100,
				Thereafter: 100,
				Tick:       time.Second,
			},
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Oracle: OracleConfig{
			Endpoint:       "http://localhost:9090/score",
			Timeout:        10 * time.Second,
			MaxRetries:     2,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
		},
		Cascade: CascadeConfig{
			ChallengeMinTier:     2,
			ConversationMinScore: 2.5,
			StoreMaxRetries:      3,
			StoreInitialBackoff:  100 * time.Millisecond,
		},
		Progression: ProgressionConfig{
			// Cumulative XP required for levels 2 through 6.
			LevelThresholds: []int{100, 300, 700, 1500, 3000},
			FocusDimensions: 3,
		},
	}
}

// expandPaths expands ~ and environment variables in path configuration values
func (c *AppConfig) expandPaths() {
	if c.Database.Driver == "sqlite" && c.Database.Database != "" {
		c.Database.Database = expandPath(c.Database.Database)
	}
	for i := range c.Log.Output {
		if c.Log.Output[i].Path != "" {
			c.Log.Output[i].Path = expandPath(c.Log.Output[i].Path)
		}
	}
}

// expandPath expands ~ to home directory and environment variables
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	path = os.ExpandEnv(path)

	return path
}

// validate checks if the configuration is valid.
func (c *AppConfig) validate() error {
	if c.Database.Driver == "" {
		return errors.New("database driver is required")
	}

	validLogLevels := map[string]bool{
		"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true, "PANIC": true,
	}
	if !validLogLevels[strings.ToUpper(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Oracle.Timeout <= 0 {
		return errors.New("oracle.timeout must be positive")
	}
	if c.Oracle.MaxRetries < 0 {
		return errors.New("oracle.max_retries must not be negative")
	}

	if c.Cascade.ChallengeMinTier < 1 || c.Cascade.ChallengeMinTier > 4 {
		return fmt.Errorf("cascade.challenge_min_tier must be 1-4, got: %d", c.Cascade.ChallengeMinTier)
	}
	if c.Cascade.StoreMaxRetries < 0 {
		return errors.New("cascade.store_max_retries must not be negative")
	}

	if len(c.Progression.LevelThresholds) != 5 {
		return fmt.Errorf("progression.level_thresholds must list 5 values (levels 2-6), got: %d", len(c.Progression.LevelThresholds))
	}
	if !sort.IntsAreSorted(c.Progression.LevelThresholds) {
		return errors.New("progression.level_thresholds must be monotonically increasing")
	}
	for i := 1; i < len(c.Progression.LevelThresholds); i++ {
		if c.Progression.LevelThresholds[i] == c.Progression.LevelThresholds[i-1] {
			return errors.New("progression.level_thresholds must be strictly increasing")
		}
	}
	if c.Progression.FocusDimensions < 1 || c.Progression.FocusDimensions > 7 {
		return fmt.Errorf("progression.focus_dimensions must be 1-7, got: %d", c.Progression.FocusDimensions)
	}

	return nil
}

// GetDSN returns the database connection string.
func (dc *DatabaseConfig) GetDSN() string {
	switch dc.Driver {
	case "sqlite":
		dsn := dc.Database
		if dsn == ":memory:" {
			dsn = "file::memory:?cache=shared"
		}
		return dsn
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			dc.Host, dc.Port, dc.Username, dc.Password, dc.Database, dc.SSLMode)
	default:
		// Fallback for other drivers that might just use a connection string directly
		return dc.Database
	}
}
