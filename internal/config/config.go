package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultURL            = "http://127.0.0.1:5000"
	DefaultUserID         = "anonymous"
	DefaultTimeoutSeconds = 120

	envURL    = "RAGCHAT_URL"
	envUserID = "RAGCHAT_USER_ID"
)

// Config is the persisted config file schema.
type Config struct {
	URL            string `toml:"url"`
	UserID         string `toml:"user_id"`
	UseRAG         bool   `toml:"use_rag"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	LogPath        string `toml:"log_path,omitempty"`
	LogLevel       string `toml:"log_level,omitempty"`
	Source         string `toml:"-"`
}

func Default() Config {
	return Config{
		URL:            DefaultURL,
		UserID:         DefaultUserID,
		UseRAG:         true,
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
}

// Timeout returns the request timeout, falling back to the default for non-positive values.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Dir is the per-user state directory (~/.ragchat).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ragchat")
}

func DefaultPath() string {
	d := Dir()
	if d == "" {
		return ""
	}
	return filepath.Join(d, "config.toml")
}

// Load reads the TOML file at path (default ~/.ragchat/config.toml). A missing file is
// not an error. Variables from ./.env are loaded first without overriding the real
// environment, then RAGCHAT_URL / RAGCHAT_USER_ID take precedence over the file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Default(), err
	}
	cfg, err := ReadFile(path)
	if err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	cfg.normalize()
	return cfg, nil
}

// ReadFile returns the defaults overlaid with the file at path, ignoring the environment.
func ReadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if env := strings.TrimSpace(os.Getenv(envURL)); env != "" {
		cfg.URL = env
	}
	if env := strings.TrimSpace(os.Getenv(envUserID)); env != "" {
		cfg.UserID = env
	}
}

func (c *Config) normalize() {
	c.URL = strings.TrimSpace(c.URL)
	if c.URL == "" {
		c.URL = DefaultURL
	}
	c.UserID = strings.TrimSpace(c.UserID)
	if c.UserID == "" {
		c.UserID = DefaultUserID
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
}
