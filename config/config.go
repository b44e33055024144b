// config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"secure.notes/internal/crypto"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Notes     NotesConfig     `yaml:"notes"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Client    ClientConfig    `yaml:"client"`
	Crypto    crypto.Params   `yaml:"crypto" envPrefix:"KDF_"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	BaseURL         string        `yaml:"base_url" env:"BASE_URL"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type StoreConfig struct {
	Type            string        `yaml:"type" env:"STORE_TYPE"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"STORE_CLEANUP_INTERVAL"`
	Redis           RedisConfig   `yaml:"redis"`
	SQL             SQLConfig     `yaml:"sql"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type SQLConfig struct {
	Driver string `yaml:"driver" env:"SQL_DRIVER"`
	DSN    string `yaml:"dsn" env:"SQL_DSN"`
}

// NotesConfig limits what the server keeps. Retention is how long an
// unread note survives; zero keeps it until read.
type NotesConfig struct {
	Retention time.Duration `yaml:"retention" env:"NOTE_RETENTION"`
	MaxSize   int64         `yaml:"max_size" env:"NOTE_MAX_SIZE"`
}

type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
	RequestsPerMin int  `yaml:"requests_per_min" env:"RATE_LIMIT_REQUESTS"`
	FetchPerMin    int  `yaml:"fetch_per_min" env:"RATE_LIMIT_FETCH"`
}

// ClientConfig drives the notes CLI. APIURL is where the store lives;
// Origin is what share links start with.
type ClientConfig struct {
	APIURL  string        `yaml:"api_url" env:"NOTES_API_URL"`
	Origin  string        `yaml:"origin" env:"NOTES_ORIGIN"`
	Timeout time.Duration `yaml:"timeout" env:"NOTES_TIMEOUT"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			BaseURL:         "http://localhost:8080",
			AllowedOrigins:  []string{"http://localhost:8080"},
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Type:            "memory",
			CleanupInterval: 30 * time.Second,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				Password: "",
				DB:       0,
			},
			SQL: SQLConfig{
				Driver: "sqlite3",
				DSN:    "notes.db",
			},
		},
		Notes: NotesConfig{
			Retention: 7 * 24 * time.Hour,
			MaxSize:   256 << 10,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 100,
			FetchPerMin:    20,
		},
		Client: ClientConfig{
			APIURL:  "http://localhost:8080",
			Origin:  "http://localhost:8080",
			Timeout: 15 * time.Second,
		},
		Crypto: crypto.DefaultParams,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load layers configuration: defaults, then the YAML file at path (if
// any), then a .env file in the working directory, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// WithOverrides returns a copy of c where every non-zero field of o wins.
// Used for command-line flags.
func (c *Config) WithOverrides(o Config) (*Config, error) {
	merged := o
	if err := mergo.Merge(&merged, *c); err != nil {
		return nil, fmt.Errorf("merging config overrides: %w", err)
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is OK, use defaults
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading .env: %w", err)
	}
	return nil
}

// loadFromEnv only touches fields whose variable is set.
func (c *Config) loadFromEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("error getting env configs: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("%w: base_url is required", ErrInvalidConfig)
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout must be positive", ErrInvalidConfig)
	}

	switch c.Store.Type {
	case "memory":
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("%w: redis addr is required when store type is 'redis'", ErrInvalidConfig)
		}
	case "sql":
		if c.Store.SQL.Driver != "pgx" && c.Store.SQL.Driver != "sqlite3" {
			return fmt.Errorf("%w: invalid sql driver: %s (must be 'pgx' or 'sqlite3')", ErrInvalidConfig, c.Store.SQL.Driver)
		}
		if c.Store.SQL.DSN == "" {
			return fmt.Errorf("%w: sql dsn is required when store type is 'sql'", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: invalid store type: %s (must be 'memory', 'redis' or 'sql')", ErrInvalidConfig, c.Store.Type)
	}

	if c.Store.CleanupInterval <= 0 {
		return fmt.Errorf("%w: cleanup_interval must be positive", ErrInvalidConfig)
	}

	if c.Notes.Retention < 0 {
		return fmt.Errorf("%w: retention must not be negative", ErrInvalidConfig)
	}

	if c.Notes.MaxSize < 1 {
		return fmt.Errorf("%w: max_size must be positive", ErrInvalidConfig)
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMin < 1 || c.RateLimit.FetchPerMin < 1) {
		return fmt.Errorf("%w: rate limits must be at least 1 per minute", ErrInvalidConfig)
	}

	if err := validateURL(c.Client.APIURL); err != nil {
		return fmt.Errorf("%w: client api_url: %v", ErrInvalidConfig, err)
	}

	if err := validateURL(c.Client.Origin); err != nil {
		return fmt.Errorf("%w: client origin: %v", ErrInvalidConfig, err)
	}

	if c.Client.Timeout <= 0 {
		return fmt.Errorf("%w: client timeout must be positive", ErrInvalidConfig)
	}

	if err := c.Crypto.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must be an http(s) URL", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}
