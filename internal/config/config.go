package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GoogleCredentials represents the structure of Google OAuth credentials JSON file.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads Google OAuth credentials from a JSON file.
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Try "installed" first (for desktop apps), then "web"
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
}

// Storage backends understood by kv.Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// StorageConfig selects and configures the key-value backend.
type StorageConfig struct {
	Backend     string `json:"backend,omitempty" yaml:"backend,omitempty"`           // memory, file, redis or postgres
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`                 // directory for the file backend
	RedisURL    string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`       // redis://host:6379/0
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // postgres://...
}

// GoogleConfig configures publishing to Google Calendar.
type GoogleConfig struct {
	CredentialsPath string `json:"credentials_path,omitempty" yaml:"credentials_path,omitempty"`
	TokenKey        string `json:"token_key,omitempty" yaml:"token_key,omitempty"`                 // kv key holding the OAuth token
	CalendarName    string `json:"calendar_name,omitempty" yaml:"calendar_name,omitempty"`         // Name of the calendar to create/use
	CalendarColorID string `json:"calendar_color_id,omitempty" yaml:"calendar_color_id,omitempty"` // Color ID for the calendar
}

// Config holds the configuration for tripcal.
type Config struct {
	UserID              string        `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Storage             StorageConfig `json:"storage" yaml:"storage"`
	Listen              string        `json:"listen,omitempty" yaml:"listen,omitempty"`
	LogLevel            string        `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFormat           string        `json:"log_format,omitempty" yaml:"log_format,omitempty"`
	CalendarName        string        `json:"calendar_name,omitempty" yaml:"calendar_name,omitempty"`
	CalendarDescription string        `json:"calendar_description,omitempty" yaml:"calendar_description,omitempty"`
	Timezone            string        `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	SourcesPath         string        `json:"sources_path,omitempty" yaml:"sources_path,omitempty"` // trips file re-synced by serve
	ResyncCron          string        `json:"resync_cron,omitempty" yaml:"resync_cron,omitempty"`   // empty disables the scheduler
	Google              GoogleConfig  `json:"google" yaml:"google"`
}

// Overrides carries command-line flag values. Empty fields are ignored.
type Overrides struct {
	UserID         string
	StorageBackend string
	StoragePath    string
	Listen         string
	LogLevel       string
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendFile,
			Path:    defaultDataDir(),
		},
		Listen:              "127.0.0.1:8080",
		LogLevel:            "info",
		LogFormat:           "console",
		CalendarName:        "Minhas Viagens",
		CalendarDescription: "Calendário de viagens exportado pelo tripcal",
		Timezone:            "America/Sao_Paulo",
		Google: GoogleConfig{
			TokenKey:        "tripcal_google_token",
			CalendarName:    "Trips",
			CalendarColorID: "7",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tripcal")
	}
	return ".tripcal"
}

// LoadConfigFromFile loads configuration from a JSON or YAML file, chosen
// by extension. Fields missing from the file keep their defaults.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
func LoadConfig(configFile string, flags Overrides) (*Config, error) {
	config := DefaultConfig()

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	// Step 2: Override with environment variables
	envOverride(&config.UserID, "TRIPCAL_USER_ID")
	envOverride(&config.Storage.Backend, "TRIPCAL_STORAGE_BACKEND")
	envOverride(&config.Storage.Path, "TRIPCAL_STORAGE_PATH")
	envOverride(&config.Storage.RedisURL, "REDIS_URL")
	envOverride(&config.Storage.DatabaseURL, "DATABASE_URL")
	envOverride(&config.Listen, "TRIPCAL_LISTEN")
	envOverride(&config.LogLevel, "LOG_LEVEL")
	envOverride(&config.Google.CredentialsPath, "GOOGLE_CREDENTIALS_PATH")

	// Step 3: Override with command-line flags (highest priority)
	flagOverride(&config.UserID, flags.UserID)
	flagOverride(&config.Storage.Backend, flags.StorageBackend)
	flagOverride(&config.Storage.Path, flags.StoragePath)
	flagOverride(&config.Listen, flags.Listen)
	flagOverride(&config.LogLevel, flags.LogLevel)

	// Step 4: Validate
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path must be provided for the file backend via --storage-path flag, TRIPCAL_STORAGE_PATH environment variable, or config file")
		}
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url must be provided for the redis backend via REDIS_URL environment variable or config file")
		}
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.database_url must be provided for the postgres backend via DATABASE_URL environment variable or config file")
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, file, redis or postgres, got '%s'", c.Storage.Backend)
	}
	return nil
}

func envOverride(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func flagOverride(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Location loads the configured timezone. An empty timezone means the
// local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}
