// Package config loads flags-fetch configuration from the environment, an
// optional .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/batch-fetch/pkg/fetch"
	"github.com/Sternrassler/batch-fetch/pkg/pipeline"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. FLAGS_CONCURRENCY.
const EnvPrefix = "FLAGS"

// Store backends.
const (
	StoreFile  = "file"
	StoreRedis = "redis"
	StoreNone  = "none"
)

// Servers maps preset labels to flag server base URLs.
var Servers = map[string]string{
	"REMOTE": "http://flupy.org/data/flags",
	"LOCAL":  "http://localhost:8001/flags",
	"DELAY":  "http://localhost:8002/flags",
	"ERROR":  "http://localhost:8003/flags",
}

// CustomServer labels a run against an explicit base_url.
const CustomServer = "CUSTOM"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete flags-fetch configuration.
type Config struct {
	Server      string        `mapstructure:"server"`
	BaseURL     string        `mapstructure:"base_url"`
	Codes       []string      `mapstructure:"codes"`
	Every       bool          `mapstructure:"every"`
	Limit       int           `mapstructure:"limit"`
	Concurrency int           `mapstructure:"concurrency"`
	Verbose     bool          `mapstructure:"verbose"`
	Store       string        `mapstructure:"store"`
	DestDir     string        `mapstructure:"dest_dir"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	RedisTTL    time.Duration `mapstructure:"redis_ttl"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	RateBurst   int           `mapstructure:"rate_burst"`
	LogLevel    string        `mapstructure:"log_level"`
	LogPretty   bool          `mapstructure:"log_pretty"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
	UserAgent   string        `mapstructure:"user_agent"`
}

var defaults = map[string]any{
	"server":       "LOCAL",
	"base_url":     "",
	"codes":        []string{},
	"every":        false,
	"limit":        1000,
	"concurrency":  pipeline.DefaultConcurrency,
	"verbose":      false,
	"store":        StoreFile,
	"dest_dir":     "downloads",
	"redis_addr":   "localhost:6379",
	"redis_ttl":    time.Duration(0),
	"timeout":      30 * time.Second,
	"max_attempts": 1,
	"rate_limit":   0.0,
	"rate_burst":   1,
	"log_level":    "warn",
	"log_pretty":   false,
	"metrics_addr": "",
	"user_agent":   "flags-fetch/1.0",
}

type loadOptions struct {
	configFile string
	envFile    string
}

// Option customizes Load.
type Option func(*loadOptions)

// WithConfigFile reads a YAML file. Defaults to $FLAGS_CONFIG.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// WithEnvFile loads a .env file into the environment. Defaults to ".env";
// a missing file is ignored.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) { o.envFile = path }
}

// Load resolves the configuration. Precedence, highest first: environment
// (including .env), YAML file, defaults.
func Load(opts ...Option) (*Config, error) {
	lo := loadOptions{envFile: ".env"}
	for _, opt := range opts {
		opt(&lo)
	}

	if lo.envFile != "" {
		if _, err := os.Stat(lo.envFile); err == nil {
			if err := godotenv.Load(lo.envFile); err != nil {
				return nil, fmt.Errorf("load env file %s: %w", lo.envFile, err)
			}
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if lo.configFile == "" {
		lo.configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if lo.configFile != "" {
		v.SetConfigFile(lo.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", lo.configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Codes = splitTokens(cfg.Codes)

	return &cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.BaseURL == "" {
		if _, ok := Servers[strings.ToUpper(c.Server)]; !ok {
			errs = append(errs, fmt.Errorf("server must be one of LOCAL, REMOTE, DELAY, ERROR (got %q)", c.Server))
		}
	}
	if c.Limit < 1 {
		errs = append(errs, fmt.Errorf("limit must be >= 1 (got %d)", c.Limit))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 1 (got %d)", c.Concurrency))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be >= 1 (got %d)", c.MaxAttempts))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must be >= 0 (got %s)", c.Timeout))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must be >= 0 (got %g)", c.RateLimit))
	}

	switch c.Store {
	case StoreFile:
		if c.DestDir == "" {
			errs = append(errs, fmt.Errorf("dest_dir is required for the file store"))
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("redis_addr is required for the redis store"))
		}
	case StoreNone:
	default:
		errs = append(errs, fmt.Errorf("store must be one of file, redis, none (got %q)", c.Store))
	}

	if _, err := ExpandCodes(c.Codes, c.Every, max(c.Limit, 1)); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Target returns the server label and base URL.
func (c *Config) Target() (label, baseURL string) {
	if c.BaseURL != "" {
		return CustomServer, c.BaseURL
	}
	label = strings.ToUpper(c.Server)
	return label, Servers[label]
}

// CodeList returns the expanded codes, POP20 when none are configured.
func (c *Config) CodeList() ([]string, error) {
	tokens := c.Codes
	if len(tokens) == 0 && !c.Every {
		tokens = POP20
	}
	return ExpandCodes(tokens, c.Every, c.Limit)
}

// Identifiers returns the expanded codes as pipeline identifiers.
func (c *Config) Identifiers() ([]fetch.Identifier, error) {
	codes, err := c.CodeList()
	if err != nil {
		return nil, err
	}
	return ToIdentifiers(codes), nil
}

// ActualConcurrency is the number of connections a run over total
// identifiers really opens.
func (c *Config) ActualConcurrency(total int) int {
	return min(c.Concurrency, pipeline.MaxConcurrency, total)
}
