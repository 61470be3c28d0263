// Package config loads service settings from a .env file, an optional YAML
// file and the process environment, in that order of precedence (lowest
// first).
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           string         `yaml:"port"`
	Database       DatabaseConfig `yaml:"database"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	StaticDir      string         `yaml:"static_dir"`
	Timezone       string         `yaml:"timezone"`
	CacheTTL       time.Duration  `yaml:"cache_ttl"`
	Logging        LoggingConfig  `yaml:"logging"`
	GitHub         GitHubConfig   `yaml:"github"`
}

type DatabaseConfig struct {
	Driver        string `yaml:"driver"`
	URL           string `yaml:"url"`
	SeedTemplates bool   `yaml:"seed_templates"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// GitHubConfig points the monthly meal backup at a repository.
type GitHubConfig struct {
	Token   string `yaml:"token"`
	Repo    string `yaml:"repo"` // owner/name
	Branch  string `yaml:"branch"`
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"api_url"`
}

func (g GitHubConfig) Enabled() bool {
	return g.Token != "" && g.Repo != ""
}

var drivers = []string{"sqlite", "postgres", "mysql"}

func Default() Config {
	return Config{
		Port: "8080",
		Database: DatabaseConfig{
			Driver:        "sqlite",
			URL:           "macro_tracker.db",
			SeedTemplates: true,
		},
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:5174",
			"http://127.0.0.1:5173",
			"http://127.0.0.1:5174",
		},
		Timezone: "Local",
		CacheTTL: 30 * time.Second,
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		GitHub: GitHubConfig{
			Branch:  "main",
			Dir:     "meal_data",
			BaseURL: "https://api.github.com",
		},
	}
}

// Load reads envFile (ignored when missing), then the YAML file named by
// path or CONFIG_FILE, then environment overrides.
func Load(envFile, path string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_URL", &c.Database.URL)
	str("STATIC_DIR", &c.StaticDir)
	str("TIMEZONE", &c.Timezone)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("UP_TOK", &c.GitHub.Token)
	str("GITHUB_TOKEN", &c.GitHub.Token)
	str("GITHUB_REPO", &c.GitHub.Repo)
	str("GITHUB_BRANCH", &c.GitHub.Branch)
	str("GITHUB_DIR", &c.GitHub.Dir)
	str("GITHUB_API_URL", &c.GitHub.BaseURL)

	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
	if v, ok := lookup("CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		c.CacheTTL = d
	}
	if v, ok := lookup("SEED_TEMPLATES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SEED_TEMPLATES: %w", err)
		}
		c.Database.SeedTemplates = b
	}
	return nil
}

func (c Config) Validate() error {
	if !slices.Contains(drivers, c.Database.Driver) {
		return fmt.Errorf("database driver %q not one of %s", c.Database.Driver, strings.Join(drivers, ", "))
	}
	if c.Database.URL == "" {
		return errors.New("database url is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.CacheTTL < 0 {
		return errors.New("cache ttl must not be negative")
	}
	if c.GitHub.Repo != "" && strings.Count(c.GitHub.Repo, "/") != 1 {
		return fmt.Errorf("github repo %q must be owner/name", c.GitHub.Repo)
	}
	return nil
}

// Location resolves Timezone; "" and "Local" mean the host zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) Addr() string {
	return ":" + c.Port
}
