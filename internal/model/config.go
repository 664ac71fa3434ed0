package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DatabaseConfig points at the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" yaml:"format"`

	// File, when set, receives log output with size-based rotation.
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// KeyringConfig selects where owner credentials are stored.
type KeyringConfig struct {
	ServiceName string   `mapstructure:"service_name" yaml:"service_name"`
	Backends    []string `mapstructure:"backends" yaml:"backends"`
	FileDir     string   `mapstructure:"file_dir" yaml:"file_dir"`
	Password    string   `mapstructure:"password" yaml:"password"`
}

// CalendarConfig holds Google Calendar client settings.
type CalendarConfig struct {
	// CredentialsFile is the OAuth client secrets JSON downloaded from the
	// Google console.
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`

	// Endpoint overrides the API base URL (tests, proxies).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// LMSConfig holds LMS client and ingestion settings.
type LMSConfig struct {
	PageSize              int `mapstructure:"page_size" yaml:"page_size"`
	MaxPages              int `mapstructure:"max_pages" yaml:"max_pages"`
	SubmissionConcurrency int `mapstructure:"submission_concurrency" yaml:"submission_concurrency"`
	TimeoutSec            int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// ScheduleConfig optionally triggers LMS sync on a cron schedule. An empty
// spec disables the trigger.
type ScheduleConfig struct {
	LMSSync string `mapstructure:"lms_sync" yaml:"lms_sync"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Keyring  KeyringConfig  `mapstructure:"keyring" yaml:"keyring"`
	Calendar CalendarConfig `mapstructure:"calendar" yaml:"calendar"`
	LMS      LMSConfig      `mapstructure:"lms" yaml:"lms"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/studysync/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "studysync", "config.yaml")
}

// defaultDataDir is where the database and credential files live unless
// configured otherwise.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "studysync")
}

// setDefaults registers a default for every key so that missing keys and
// environment overrides resolve consistently.
func setDefaults(v *viper.Viper) {
	dataDir := defaultDataDir()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.path", filepath.Join(dataDir, "studysync.db"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("keyring.service_name", "studysync")
	v.SetDefault("keyring.backends", []string{"keychain", "secret-service", "wincred", "pass", "file"})
	v.SetDefault("keyring.file_dir", filepath.Join(dataDir, "credentials"))
	v.SetDefault("keyring.password", "studysync-file-key")
	v.SetDefault("calendar.credentials_file", filepath.Join(dataDir, "credentials.json"))
	v.SetDefault("calendar.endpoint", "")
	v.SetDefault("lms.page_size", 100)
	v.SetDefault("lms.max_pages", 50)
	v.SetDefault("lms.submission_concurrency", 4)
	v.SetDefault("lms.timeout_sec", 30)
	v.SetDefault("schedule.lms_sync", "")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with STUDYSYNC_ override file values
// (e.g. STUDYSYNC_SERVER_ADDR). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("STUDYSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.LMS.PageSize <= 0 || cfg.LMS.PageSize > 100 {
		cfg.LMS.PageSize = 100
	}
	if cfg.LMS.SubmissionConcurrency < 1 {
		cfg.LMS.SubmissionConcurrency = 1
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("database", cfg.Database)
	v.Set("log", cfg.Log)
	v.Set("keyring", cfg.Keyring)
	v.Set("calendar", cfg.Calendar)
	v.Set("lms", cfg.LMS)
	v.Set("schedule", cfg.Schedule)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
