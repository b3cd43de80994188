package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/PratikDhanave/driving-alerts/internal/rules"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
	BackendMemory   = "memory"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/driving-alerts/config.yaml",
}

// Config contains runtime configuration required by the service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Storage  StorageConfig  `koanf:"storage"`
	Log      LogConfig      `koanf:"log"`
	Engine   EngineConfig   `koanf:"engine"`
	Breaker  BreakerConfig  `koanf:"breaker"`

	// Rules maps location category to unsafe-event threshold. A file or the
	// RULES env var replaces the whole map; empty means the default catalog.
	Rules map[string]int `koanf:"rules"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type DatabaseConfig struct {
	URL string `koanf:"url"`
}

type StorageConfig struct {
	Backend  string `koanf:"backend"`
	BoltPath string `koanf:"bolt_path"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// EngineConfig holds the rule engine timing. Interval and Window default to
// the same value but are tuned independently.
type EngineConfig struct {
	Window        time.Duration `koanf:"window"`
	Interval      time.Duration `koanf:"interval"`
	StoreTimeout  time.Duration `koanf:"store_timeout"`
	MaxConcurrent int           `koanf:"max_concurrent"`
}

type BreakerConfig struct {
	Failures uint32        `koanf:"failures"`
	Cooldown time.Duration `koanf:"cooldown"`
}

func defaultConfig() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Storage:  StorageConfig{Backend: BackendPostgres, BoltPath: "driving-alerts.db"},
		Log:      LogConfig{Level: "info", Format: "json"},
		Engine: EngineConfig{
			Window:        5 * time.Minute,
			Interval:      5 * time.Minute,
			StoreTimeout:  5 * time.Second,
			MaxConcurrent: 8,
		},
		Breaker: BreakerConfig{Failures: 5, Cooldown: 30 * time.Second},
	}
}

// envKeys maps the flat environment variable names onto config paths.
var envKeys = map[string]string{
	"DB_URL":              "database.url",
	"LISTEN_ADDR":         "server.addr",
	"STORAGE_BACKEND":     "storage.backend",
	"BOLT_PATH":           "storage.bolt_path",
	"LOG_LEVEL":           "log.level",
	"LOG_FORMAT":          "log.format",
	"RULE_WINDOW":         "engine.window",
	"EVALUATION_INTERVAL": "engine.interval",
	"STORE_TIMEOUT":       "engine.store_timeout",
	"MAX_CONCURRENT":      "engine.max_concurrent",
	"BREAKER_FAILURES":    "breaker.failures",
	"BREAKER_COOLDOWN":    "breaker.cooldown",
}

// Load reads defaults, then the optional YAML file at path (or the first of
// CONFIG_PATH / DefaultConfigPaths that exists), then environment variables.
// RULES format: "highway:4,cityCenter:3"
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(key string) string {
		return envKeys[key]
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if raw := strings.TrimSpace(os.Getenv("RULES")); raw != "" {
		parsed, err := rules.ParseThresholds(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.Rules = parsed
	}
	if len(cfg.Rules) == 0 {
		cfg.Rules = rules.DefaultThresholds()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return errors.New("DB_URL required for postgres backend")
		}
	case BackendBolt:
		if strings.TrimSpace(c.Storage.BoltPath) == "" {
			return errors.New("BOLT_PATH required for bolt backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Engine.Window <= 0 {
		return errors.New("engine.window must be positive")
	}
	if c.Engine.Interval <= 0 {
		return errors.New("engine.interval must be positive")
	}
	if c.Engine.StoreTimeout <= 0 {
		return errors.New("engine.store_timeout must be positive")
	}

	for category, threshold := range c.Rules {
		if threshold <= 0 {
			return fmt.Errorf("rule %q: threshold must be positive", category)
		}
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
