package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"wikibridge/pkg/extentity"
)

// APIKeyEnv is consulted when a seeded entity type names an API-key header but no key.
const APIKeyEnv = "WIKIBRIDGE_API_KEY"

// Config holds the application configuration.
type Config struct {
	Request     RequestConfig      `yaml:"request"`
	Log         LogConfig          `yaml:"log"`
	DB          DBConfig           `yaml:"db"`
	Server      ServerConfig       `yaml:"server"`
	Queue       QueueConfig        `yaml:"queue"`
	EntityTypes []EntityTypeConfig `yaml:"entity_types"`
	Indexes     []IndexConfig      `yaml:"indexes"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries   int           `yaml:"retries"`
	Timeout   Duration      `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	Backoff   BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// QueueConfig controls the scheduled queue passes.
type QueueConfig struct {
	Interval    Duration `yaml:"interval"`     // time between cron passes
	TimeBudget  Duration `yaml:"time_budget"`  // max time spent per queue per pass
	Visibility  Duration `yaml:"visibility"`   // how long a claimed item stays hidden
	MaxAttempts int      `yaml:"max_attempts"` // 0 = unlimited
}

// EntityTypeConfig seeds an external entity type on first start.
// Storage holds the raw, unescaped form values.
type EntityTypeConfig struct {
	ID      string         `yaml:"id"`
	Label   string         `yaml:"label"`
	Client  string         `yaml:"client"` // "wikibase", "rest"
	Storage extentity.Form `yaml:"storage"`
}

// IndexConfig seeds a search index and the datasources it covers.
type IndexConfig struct {
	ID          string   `yaml:"id"`
	Datasources []string `yaml:"datasources"` // e.g. "entity:person"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Request: RequestConfig{
			Retries: 0,
			Timeout: Duration(30 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/wikibridge.db",
		},
		Server: ServerConfig{
			Address: "localhost:8420",
		},
		Queue: QueueConfig{
			Interval:    Duration(5 * time.Minute),
			TimeBudget:  Duration(60 * time.Second),
			Visibility:  Duration(5 * time.Minute),
			MaxAttempts: 0,
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// Existing files are merged over the defaults but never written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applyEnv(cfg)
		cfg.DB.Path = os.ExpandEnv(cfg.DB.Path)
		if err := validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	key := os.Getenv(APIKeyEnv)
	if key == "" {
		return
	}
	for i := range cfg.EntityTypes {
		ak := &cfg.EntityTypes[i].Storage.APIKey
		if ak.HeaderName != "" && ak.Key == "" {
			ak.Key = key
		}
	}
}

var idPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

func validate(cfg *Config) error {
	seen := make(map[string]bool)
	for _, et := range cfg.EntityTypes {
		if !idPattern.MatchString(et.ID) {
			return fmt.Errorf("invalid entity type id '%s': must match %s", et.ID, idPattern)
		}
		if seen[et.ID] {
			return fmt.Errorf("duplicate entity type id '%s'", et.ID)
		}
		seen[et.ID] = true
	}
	for _, idx := range cfg.Indexes {
		if idx.ID == "" {
			return fmt.Errorf("index without id")
		}
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# wikibridge configuration
# ------------------------
# Durations accept ns, us, ms, s, m, h, d (day), w (week).

`)
	data = append(header, data...)

	reClient := regexp.MustCompile(`(?m)^(\s+)client:`)
	data = reClient.ReplaceAll(data, []byte("${1}# Options: wikibase, rest\n${1}client:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
