package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/olhovivo/internal/logging"
)

// Config holds everything olhovivo needs to reach the API and log.
type Config struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	PollInterval      time.Duration
	RequestsPerSecond float64
	Reauthenticate    bool
	LogFile           string
	LogLevel          string
}

const (
	defaultConfigPath     = "~/.config/olhovivo/config.toml"
	defaultBaseURL        = "http://api.olhovivo.sptrans.com.br/v2.1"
	defaultTimeoutSeconds = 10
	defaultPollSeconds    = 15
	defaultLogFile        = "~/.local/state/olhovivo/olhovivo.log"
	defaultLogLevel       = "info"
)

// Environment variables that override the file.
const (
	EnvToken    = "OLHOVIVO_TOKEN"
	EnvBaseURL  = "OLHOVIVO_BASE_URL"
	EnvLogLevel = "OLHOVIVO_LOG_LEVEL"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		BaseURL:        defaultBaseURL,
		Timeout:        defaultTimeoutSeconds * time.Second,
		PollInterval:   defaultPollSeconds * time.Second,
		LogFile:        mustExpand(defaultLogFile),
		LogLevel:       defaultLogLevel,
	}
}

// Load reads the TOML config at path (default location when empty), then
// applies envFile and the process environment on top. A missing config file
// or env file is not an error.
func Load(path, envFile string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := loadFile(resolved, &cfg); err != nil {
		return Config{}, err
	}

	dotenv, err := readEnvFile(envFile)
	if err != nil {
		return Config{}, err
	}
	applyEnv(&cfg, func(key string) string {
		if value := os.Getenv(key); strings.TrimSpace(value) != "" {
			return value
		}
		return dotenv[key]
	})

	cfg.LogFile = mustExpand(cfg.LogFile)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		BaseURL           string   `toml:"base_url"`
		Token             string   `toml:"token"`
		TimeoutSeconds    *float64 `toml:"timeout_seconds"`
		PollSeconds       *float64 `toml:"poll_seconds"`
		RequestsPerSecond *float64 `toml:"requests_per_second"`
		Reauthenticate    *bool    `toml:"reauthenticate"`
		LogFile           string   `toml:"log_file"`
		LogLevel          string   `toml:"log_level"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.BaseURL); v != "" {
		cfg.BaseURL = v
	}
	cfg.Token = strings.TrimSpace(raw.Token)
	if raw.TimeoutSeconds != nil {
		cfg.Timeout = seconds(*raw.TimeoutSeconds)
	}
	if raw.PollSeconds != nil {
		cfg.PollInterval = seconds(*raw.PollSeconds)
	}
	if raw.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *raw.RequestsPerSecond
	}
	if raw.Reauthenticate != nil {
		cfg.Reauthenticate = *raw.Reauthenticate
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = v
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// readEnvFile parses a dotenv file without touching the process environment.
func readEnvFile(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	resolved, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	values, err := godotenv.Read(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return values, nil
}

func applyEnv(cfg *Config, lookup func(string) string) {
	if v := strings.TrimSpace(lookup(EnvToken)); v != "" {
		cfg.Token = v
	}
	if v := strings.TrimSpace(lookup(EnvBaseURL)); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(lookup(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url %q: missing host", c.BaseURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_seconds must not be negative")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// HasToken reports whether an API token is configured. Without one the
// client still runs but every login fails.
func (c Config) HasToken() bool {
	return strings.TrimSpace(c.Token) != ""
}

// DefaultPath returns the expanded default config location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
