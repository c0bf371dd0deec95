// Package config loads linear-sync settings from defaults, an optional JSONC
// file, an optional .env file and the process environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tailscale/hujson"
)

// Environment variable names.
const (
	LinearAPIKeyEnv   = "LINEAR_API_KEY"
	APIEndpointEnv    = "LINEAR_API_ENDPOINT"
	ConfigFileEnv     = "LINEAR_SYNC_CONFIG"
	PageSizeEnv       = "LINEAR_SYNC_PAGE_SIZE"
	CacheTTLEnv       = "LINEAR_SYNC_CACHE_TTL"
	DetailTTLEnv      = "LINEAR_SYNC_DETAIL_TTL"
	TimeoutEnv        = "LINEAR_SYNC_TIMEOUT"
	RetryBaseDelayEnv = "LINEAR_SYNC_RETRY_BASE_DELAY"
	LogFileEnv        = "LINEAR_SYNC_LOG_FILE"
	LogLevelEnv       = "LINEAR_SYNC_LOG_LEVEL"
	CachePathEnv      = "LINEAR_SYNC_CACHE_PATH"
	CacheBackendEnv   = "LINEAR_SYNC_CACHE_BACKEND"
)

// Cache backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Defaults.
const (
	DefaultEndpoint       = "https://api.linear.app/graphql"
	DefaultPageSize       = 50
	DefaultCacheTTL       = 5 * time.Minute
	DefaultDetailTTL      = time.Minute
	DefaultTimeout        = 30 * time.Second
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultLogLevel       = "warning"
	DefaultCacheBackend   = BackendFile
)

var (
	// ErrMissingAPIKey is returned when no Linear API key is configured.
	ErrMissingAPIKey = errors.New("linear api key is not set")
	// ErrInvalidConfig wraps any malformed setting.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds runtime configuration.
type Config struct {
	LinearAPIKey   string
	APIEndpoint    string
	PageSize       int
	CacheTTL       time.Duration // issue lists and metadata
	DetailTTL      time.Duration // single issue and comments
	Timeout        time.Duration
	RetryBaseDelay time.Duration
	LogFile        string
	LogLevel       string
	CachePath      string
	CacheBackend   string
}

// fileConfig mirrors Config in the JSONC file. Durations are Go duration strings.
type fileConfig struct {
	APIKey         string `json:"api_key"`
	APIEndpoint    string `json:"api_endpoint"`
	PageSize       int    `json:"page_size"`
	CacheTTL       string `json:"cache_ttl"`
	DetailTTL      string `json:"detail_ttl"`
	Timeout        string `json:"timeout"`
	RetryBaseDelay string `json:"retry_base_delay"`
	LogFile        string `json:"log_file"`
	LogLevel       string `json:"log_level"`
	CachePath      string `json:"cache_path"`
	CacheBackend   string `json:"cache_backend"`
}

// Defaults returns the built-in configuration without an API key.
func Defaults() Config {
	return Config{
		APIEndpoint:    DefaultEndpoint,
		PageSize:       DefaultPageSize,
		CacheTTL:       DefaultCacheTTL,
		DetailTTL:      DefaultDetailTTL,
		Timeout:        DefaultTimeout,
		RetryBaseDelay: DefaultRetryBaseDelay,
		LogLevel:       DefaultLogLevel,
		CachePath:      defaultCachePath(),
		CacheBackend:   DefaultCacheBackend,
	}
}

// LoadFromEnv builds configuration from defaults and environment variables only.
func LoadFromEnv() (Config, error) {
	cfg := Defaults()
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Load builds configuration from defaults, the JSONC config file, a .env file
// in the working directory, and the environment, in that order of precedence.
func Load() (Config, error) {
	cfg := Defaults()

	path := os.Getenv(ConfigFileEnv)
	mustExist := path != ""
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := applyFile(&cfg, path, mustExist); err != nil {
		return Config{}, err
	}

	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: load .env: %w", ErrInvalidConfig, err)
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks required and bounded fields.
func (c Config) Validate() error {
	if strings.TrimSpace(c.LinearAPIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.PageSize <= 0 || c.PageSize > 250 {
		return fmt.Errorf("%w: page size %d out of range 1-250", ErrInvalidConfig, c.PageSize)
	}
	switch c.CacheBackend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.CacheBackend)
	}
	return nil
}

// DefaultConfigPath returns ~/.config/linear-sync/config.jsonc.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "linear-sync", "config.jsonc")
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "linear-sync")
	}
	return filepath.Join(dir, "linear-sync")
}

func applyFile(cfg *Config, path string, mustExist bool) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user's environment
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return nil
		}
		return fmt.Errorf("%w: read %s: %w", ErrInvalidConfig, path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("%w: %s: invalid JSONC: %w", ErrInvalidConfig, path, err)
	}
	var fc fileConfig
	if err := json.Unmarshal(standardized, &fc); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}

	get := func(key string) string {
		switch key {
		case LinearAPIKeyEnv:
			return fc.APIKey
		case APIEndpointEnv:
			return fc.APIEndpoint
		case PageSizeEnv:
			if fc.PageSize != 0 {
				return strconv.Itoa(fc.PageSize)
			}
		case CacheTTLEnv:
			return fc.CacheTTL
		case DetailTTLEnv:
			return fc.DetailTTL
		case TimeoutEnv:
			return fc.Timeout
		case RetryBaseDelayEnv:
			return fc.RetryBaseDelay
		case LogFileEnv:
			return fc.LogFile
		case LogLevelEnv:
			return fc.LogLevel
		case CachePathEnv:
			return fc.CachePath
		case CacheBackendEnv:
			return fc.CacheBackend
		}
		return ""
	}
	if err := applyEnv(cfg, get); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// applyEnv overlays every non-empty value returned by get onto cfg.
func applyEnv(cfg *Config, get func(string) string) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(get(key)); v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) error {
		v := strings.TrimSpace(get(key))
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, key, v, err)
		}
		*dst = d
		return nil
	}

	setString(LinearAPIKeyEnv, &cfg.LinearAPIKey)
	setString(APIEndpointEnv, &cfg.APIEndpoint)
	setString(LogFileEnv, &cfg.LogFile)
	setString(LogLevelEnv, &cfg.LogLevel)
	setString(CachePathEnv, &cfg.CachePath)
	setString(CacheBackendEnv, &cfg.CacheBackend)

	if v := strings.TrimSpace(get(PageSizeEnv)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, PageSizeEnv, v, err)
		}
		cfg.PageSize = n
	}

	for key, dst := range map[string]*time.Duration{
		CacheTTLEnv:       &cfg.CacheTTL,
		DetailTTLEnv:      &cfg.DetailTTL,
		TimeoutEnv:        &cfg.Timeout,
		RetryBaseDelayEnv: &cfg.RetryBaseDelay,
	} {
		if err := setDuration(key, dst); err != nil {
			return err
		}
	}
	cfg.CacheBackend = strings.ToLower(cfg.CacheBackend)
	return nil
}
