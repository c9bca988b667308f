// Package config loads the petstore-browser runtime configuration from
// defaults, an optional YAML file and PETSTORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/petstore-browser/pkg/catalog"
	"github.com/Sternrassler/petstore-browser/pkg/connectivity"
	"github.com/Sternrassler/petstore-browser/pkg/logging"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. PETSTORE_BASE_URL.
const EnvPrefix = "PETSTORE"

const (
	defaultUserAgent             = "petstore-browser/0.1.0"
	defaultFetchTimeout          = 8 * time.Second
	defaultFetchMaxAttempts      = 1
	defaultProbeTimeout          = 5 * time.Second
	defaultProbeInterval         = 10 * time.Second
	defaultDebounceWindow        = 500 * time.Millisecond
	defaultPageSettleDelay       = 500 * time.Millisecond
	defaultInterfacePollInterval = 2 * time.Second
	defaultCacheTTL              = 5 * time.Minute
	defaultListenAddr            = "127.0.0.1:8080"

	minProbeTimeout = 1500 * time.Millisecond
	maxProbeTimeout = 5 * time.Second
)

// Config is the runtime configuration.
type Config struct {
	BaseURL               string        `mapstructure:"base-url" yaml:"base-url"`
	UserAgent             string        `mapstructure:"user-agent" yaml:"user-agent"`
	FetchTimeout          time.Duration `mapstructure:"fetch-timeout" yaml:"fetch-timeout"`
	FetchMaxAttempts      int           `mapstructure:"fetch-max-attempts" yaml:"fetch-max-attempts"`
	ProbeURL              string        `mapstructure:"probe-url" yaml:"probe-url"` // empty = derived from base-url
	ProbeTimeout          time.Duration `mapstructure:"probe-timeout" yaml:"probe-timeout"`
	ProbeMethod           string        `mapstructure:"probe-method" yaml:"probe-method"`
	ProbeInterval         time.Duration `mapstructure:"probe-interval" yaml:"probe-interval"`
	DebounceWindow        time.Duration `mapstructure:"debounce-window" yaml:"debounce-window"`
	PageSettleDelay       time.Duration `mapstructure:"page-settle-delay" yaml:"page-settle-delay"`
	InterfacePollInterval time.Duration `mapstructure:"interface-poll-interval" yaml:"interface-poll-interval"`
	RedisURL              string        `mapstructure:"redis-url" yaml:"redis-url"` // empty = cache disabled
	CacheTTL              time.Duration `mapstructure:"cache-ttl" yaml:"cache-ttl"`
	ListenAddr            string        `mapstructure:"listen-addr" yaml:"listen-addr"`
	LogLevel              string        `mapstructure:"log-level" yaml:"log-level"`
	LogPretty             bool          `mapstructure:"log-pretty" yaml:"log-pretty"`

	ConfigPath string `mapstructure:"-" yaml:"-"` // not from config file
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:               catalog.DefaultBaseURL,
		UserAgent:             defaultUserAgent,
		FetchTimeout:          defaultFetchTimeout,
		FetchMaxAttempts:      defaultFetchMaxAttempts,
		ProbeTimeout:          defaultProbeTimeout,
		ProbeMethod:           http.MethodGet,
		ProbeInterval:         defaultProbeInterval,
		DebounceWindow:        defaultDebounceWindow,
		PageSettleDelay:       defaultPageSettleDelay,
		InterfacePollInterval: defaultInterfacePollInterval,
		CacheTTL:              defaultCacheTTL,
		ListenAddr:            defaultListenAddr,
		LogLevel:              string(logging.LevelInfo),
	}
}

// Load reads the configuration. A missing file at path is not an error; an
// empty path reads only defaults and the environment.
func Load(path string) (Config, error) {
	var cfg Config

	def := Default()
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("base-url", def.BaseURL)
	v.SetDefault("user-agent", def.UserAgent)
	v.SetDefault("fetch-timeout", def.FetchTimeout)
	v.SetDefault("fetch-max-attempts", def.FetchMaxAttempts)
	v.SetDefault("probe-url", def.ProbeURL)
	v.SetDefault("probe-timeout", def.ProbeTimeout)
	v.SetDefault("probe-method", def.ProbeMethod)
	v.SetDefault("probe-interval", def.ProbeInterval)
	v.SetDefault("debounce-window", def.DebounceWindow)
	v.SetDefault("page-settle-delay", def.PageSettleDelay)
	v.SetDefault("interface-poll-interval", def.InterfacePollInterval)
	v.SetDefault("redis-url", def.RedisURL)
	v.SetDefault("cache-ttl", def.CacheTTL)
	v.SetDefault("listen-addr", def.ListenAddr)
	v.SetDefault("log-level", def.LogLevel)
	v.SetDefault("log-pretty", def.LogPretty)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	cfg.ProbeMethod = strings.ToUpper(cfg.ProbeMethod)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks ranges and formats.
func (c Config) Validate() error {
	if err := validateURL("base-url", c.BaseURL); err != nil {
		return err
	}
	if c.ProbeURL != "" {
		if err := validateURL("probe-url", c.ProbeURL); err != nil {
			return err
		}
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("invalid fetch-timeout: %s", c.FetchTimeout)
	}
	if c.FetchMaxAttempts < 1 {
		return fmt.Errorf("invalid fetch-max-attempts: %d", c.FetchMaxAttempts)
	}
	if c.ProbeTimeout < minProbeTimeout || c.ProbeTimeout > maxProbeTimeout {
		return fmt.Errorf("invalid probe-timeout: %s (must be between %s and %s)", c.ProbeTimeout, minProbeTimeout, maxProbeTimeout)
	}
	if c.ProbeMethod != http.MethodGet && c.ProbeMethod != http.MethodHead {
		return fmt.Errorf("invalid probe-method: %q", c.ProbeMethod)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("invalid probe-interval: %s", c.ProbeInterval)
	}
	if c.DebounceWindow < 0 {
		return fmt.Errorf("invalid debounce-window: %s", c.DebounceWindow)
	}
	if c.PageSettleDelay < 0 {
		return fmt.Errorf("invalid page-settle-delay: %s", c.PageSettleDelay)
	}
	if c.InterfacePollInterval <= 0 {
		return fmt.Errorf("invalid interface-poll-interval: %s", c.InterfacePollInterval)
	}
	if c.RedisURL != "" && c.CacheTTL <= 0 {
		return fmt.Errorf("invalid cache-ttl: %s", c.CacheTTL)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen-addr is required")
	}
	switch logging.LogLevel(strings.ToLower(c.LogLevel)) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("invalid log-level: %q", c.LogLevel)
	}
	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}

// ProbeTarget returns probe-url, or the available-pets listing under base-url.
func (c Config) ProbeTarget() string {
	if c.ProbeURL != "" {
		return c.ProbeURL
	}
	return strings.TrimRight(c.BaseURL, "/") + catalog.FindByStatusPath + "?status=" + string(catalog.StatusAvailable)
}

// Catalog returns the catalog client configuration. The cache is attached by
// the caller.
func (c Config) Catalog() catalog.Config {
	cfg := catalog.DefaultConfig()
	cfg.BaseURL = c.BaseURL
	cfg.UserAgent = c.UserAgent
	cfg.Timeout = c.FetchTimeout
	cfg.Retry.MaxAttempts = c.FetchMaxAttempts
	return cfg
}

// Probe returns the connectivity probe configuration.
func (c Config) Probe() connectivity.ProbeConfig {
	cfg := connectivity.DefaultProbeConfig(c.ProbeTarget())
	cfg.Method = c.ProbeMethod
	cfg.Timeout = c.ProbeTimeout
	cfg.UserAgent = c.UserAgent
	return cfg
}

// Monitor returns the connectivity monitor timing.
func (c Config) Monitor() connectivity.Config {
	return connectivity.Config{
		Interval:       c.ProbeInterval,
		DebounceWindow: c.DebounceWindow,
	}
}

// Logging returns the logger configuration writing to stderr.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.LogLevel))
	cfg.Pretty = c.LogPretty
	return cfg
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// WriteDefault writes the built-in configuration to path. An existing file is
// left untouched and reported as an error.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	return Save(path, Default())
}
