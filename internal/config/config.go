package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverPostgREST = "postgrest"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverMemory    = "memory"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" toml:"port"`
	} `yaml:"server" toml:"server"`
	Store struct {
		Driver  string `yaml:"driver" toml:"driver"`
		URL     string `yaml:"url" toml:"url"`
		Key     string `yaml:"key" toml:"key"`
		Timeout string `yaml:"timeout" toml:"timeout"`
	} `yaml:"store" toml:"store"`
	Postgres struct {
		URL string `yaml:"url" toml:"url"`
	} `yaml:"postgres" toml:"postgres"`
	SQLite struct {
		Path string `yaml:"path" toml:"path"`
	} `yaml:"sqlite" toml:"sqlite"`
	Redis struct {
		Addr     string `yaml:"addr" toml:"addr"`
		Password string `yaml:"password" toml:"password"`
		DB       int    `yaml:"db" toml:"db"`
		TTL      string `yaml:"ttl" toml:"ttl"`
	} `yaml:"redis" toml:"redis"`
	Leaderboard struct {
		CacheTTL string `yaml:"cacheTTL" toml:"cache-ttl"`
	} `yaml:"leaderboard" toml:"leaderboard"`
	Quiz struct {
		Duration string `yaml:"duration" toml:"duration"`
		Tick     string `yaml:"tick" toml:"tick"`
	} `yaml:"quiz" toml:"quiz"`
}

// Load reads the config file at path (YAML, or TOML for *.toml), then applies
// environment overrides and validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Config{}
	if err := decodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadEnv loads a .env file into the process environment when one exists.
func LoadEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

func decodeFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("STORE_URL"); v != "" {
		cfg.Store.URL = v
	}
	if v := os.Getenv("STORE_KEY"); v != "" {
		cfg.Store.Key = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverPostgREST
	}
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgREST:
		if c.Store.URL == "" {
			return errors.New("missing store url (set store.url or STORE_URL)")
		}
		u, err := url.Parse(c.Store.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid store url %q: expected an absolute http(s) URL", c.Store.URL)
		}
		if strings.TrimSpace(c.Store.Key) == "" {
			return errors.New("missing store key (set store.key or STORE_KEY)")
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return errors.New("postgres url not configured")
		}
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
