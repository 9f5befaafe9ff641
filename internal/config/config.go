package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the search service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Model     ModelConfig     `yaml:"model"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Redis     RedisConfig     `yaml:"redis"`
	Store     StoreConfig     `yaml:"store"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type HTTPConfig struct {
	Port              int `yaml:"port"`
	ReadTimeoutSec    int `yaml:"read_timeout_sec"`
	WriteTimeoutSec   int `yaml:"write_timeout_sec"`
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
	ShutdownSec       int `yaml:"shutdown_timeout_sec"`
}

// ModelConfig selects the language model endpoint.
type ModelConfig struct {
	Provider   string `yaml:"provider"` // ollama (default) | openai
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"` // per attempt
	FormatJSON bool   `yaml:"format_json"`
}

type SearchConfig struct {
	CacheTTLSec     int `yaml:"cache_ttl_sec"`
	MaxResults      int `yaml:"max_results"`
	RetryBackoffMs  int `yaml:"retry_backoff_ms"`
	MaxRetryAfterMs int `yaml:"max_retry_after_ms"` // 0 = ignore Retry-After
}

type CacheConfig struct {
	Backend string `yaml:"backend"` // memory (default) | redis
	Size    int    `yaml:"size"`
	Prefix  string `yaml:"prefix"`
	Version string `yaml:"version"` // bump to invalidate cached answers
}

type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	Driver    string   `yaml:"driver"` // sqlite (default) | postgres | elasticsearch | mongo
	DSN       string   `yaml:"dsn"`
	Addresses []string `yaml:"addresses"`
	Index     string   `yaml:"index"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Database  string   `yaml:"database"`
	Seed      bool     `yaml:"seed"` // load development posts on start
}

type RateLimitConfig struct {
	Disabled  bool   `yaml:"disabled"`
	Backend   string `yaml:"backend"` // memory (default) | redis
	Max       int    `yaml:"max"`
	WindowMs  int    `yaml:"window_ms"`
}

type LoggingConfig struct {
	Env   string `yaml:"env"`   // local/dev get console output, anything else JSON
	Level string `yaml:"level"` // debug, info, warn, error
}

const (
	DriverSQLite        = "sqlite"
	DriverPostgres      = "postgres"
	DriverElasticsearch = "elasticsearch"
	DriverMongo         = "mongo"

	backendMemory = "memory"
	backendRedis  = "redis"
)

// Load reads configuration from a YAML file by environment name (local, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 3001
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 15
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		c.HTTP.RequestTimeoutSec = 75
	}
	if c.HTTP.WriteTimeoutSec <= c.HTTP.RequestTimeoutSec {
		c.HTTP.WriteTimeoutSec = c.HTTP.RequestTimeoutSec + 15
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Model.Provider == "" {
		c.Model.Provider = "ollama"
	}
	if c.Model.BaseURL == "" {
		c.Model.BaseURL = "http://10.0.0.100:11434"
	}
	if c.Model.Model == "" {
		c.Model.Model = "gemma3:12b"
	}
	if c.Model.TimeoutSec <= 0 {
		c.Model.TimeoutSec = 30
	}

	if c.Search.CacheTTLSec <= 0 {
		c.Search.CacheTTLSec = 60
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 20
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = backendMemory
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = 1024
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "safekids"
	}
	if c.Cache.Version == "" {
		c.Cache.Version = "v1"
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	if c.Store.Driver == DriverSQLite && c.Store.DSN == "" {
		c.Store.DSN = "file:safekids.db"
	}
	if c.Store.Index == "" {
		c.Store.Index = "posts"
	}
	if c.Store.Database == "" {
		c.Store.Database = "safekids"
	}

	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = backendMemory
	}
	if c.RateLimit.Max <= 0 {
		c.RateLimit.Max = 5
	}
	if c.RateLimit.WindowMs <= 0 {
		c.RateLimit.WindowMs = 60_000
	}

	if c.Logging.Env == "" {
		c.Logging.Env = GetEnv()
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Model.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("model.provider must be \"ollama\" or \"openai\", got %q", c.Model.Provider)
	}
	if (c.Model.Username == "") != (c.Model.Password == "") {
		return errors.New("model.username and model.password must be set together")
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	case DriverElasticsearch:
		if len(c.Store.Addresses) == 0 {
			return errors.New("store.addresses is required for driver \"elasticsearch\"")
		}
	case DriverMongo:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for driver \"mongo\"")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}

	for name, backend := range map[string]string{"cache.backend": c.Cache.Backend, "rate_limit.backend": c.RateLimit.Backend} {
		if backend != backendMemory && backend != backendRedis {
			return fmt.Errorf("%s must be \"memory\" or \"redis\", got %q", name, backend)
		}
	}
	if c.NeedsRedis() && len(c.Redis.Addrs) == 0 {
		return errors.New("redis.addrs is required when a redis backend is selected")
	}
	return nil
}

// NeedsRedis reports whether any component is configured to use Redis.
func (c *Config) NeedsRedis() bool {
	return c.Cache.Backend == backendRedis || (!c.RateLimit.Disabled && c.RateLimit.Backend == backendRedis)
}

func (c ModelConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSec) * time.Second }

func (c SearchConfig) CacheTTL() time.Duration { return time.Duration(c.CacheTTLSec) * time.Second }

func (c SearchConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

func (c SearchConfig) MaxRetryAfter() time.Duration {
	return time.Duration(c.MaxRetryAfterMs) * time.Millisecond
}

func (c RateLimitConfig) Window() time.Duration { return time.Duration(c.WindowMs) * time.Millisecond }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// relative to the source file, for tests run from package dirs
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b)))
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
