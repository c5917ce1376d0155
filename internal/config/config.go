// Package config loads gifctl and gif-proxy settings from defaults, an
// optional YAML file, .env files and DEVLIFE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/devlife-client/pkg/client"
	"github.com/Sternrassler/devlife-client/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. DEVLIFE_REDIS_ADDR.
const EnvPrefix = "DEVLIFE"

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Prefetch  PrefetchConfig  `mapstructure:"prefetch"`
}

type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
	ThrottleDelay     time.Duration `mapstructure:"throttle_delay"`
}

type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

type CacheConfig struct {
	RespectExpires bool `mapstructure:"respect_expires"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type ProxyConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PrefetchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	Pages       int `mapstructure:"pages"`
	PageSize    int `mapstructure:"page_size"`
}

// Load reads configuration. configPath may be empty, in which case
// config.yaml is looked up in ./configs and the working directory.
// envFiles default to .env; missing files are ignored.
func Load(configPath string, envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.base_url", client.DefaultBaseURL)
	v.SetDefault("api.user_agent", "devlife-client/1.0")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.throttle_delay", time.Second)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", time.Second)
	v.SetDefault("retry.max_backoff", 30*time.Second)
	v.SetDefault("cache.respect_expires", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("proxy.port", 8080)
	v.SetDefault("proxy.shutdown_timeout", 10*time.Second)
	v.SetDefault("prefetch.concurrency", 4)
	v.SetDefault("prefetch.pages", 5)
	v.SetDefault("prefetch.page_size", 5)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Conventional names used by container platforms.
	v.BindEnv("redis.addr", EnvPrefix+"_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("proxy.port", EnvPrefix+"_PROXY_PORT", "PORT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values the client would reject later with a less
// helpful message.
func (c *Config) Validate() error {
	if c.API.UserAgent == "" {
		return fmt.Errorf("api.user_agent is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be >= 0 (got %d)", c.RateLimit.RequestsPerSecond)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1 (got %d)", c.Retry.MaxAttempts)
	}
	if c.Proxy.Port <= 0 || c.Proxy.Port > 65535 {
		return fmt.Errorf("proxy.port out of range: %d", c.Proxy.Port)
	}
	if c.Prefetch.Concurrency < 1 {
		return fmt.Errorf("prefetch.concurrency must be >= 1 (got %d)", c.Prefetch.Concurrency)
	}
	if c.Prefetch.PageSize < 0 {
		return fmt.Errorf("prefetch.page_size must be >= 0 (got %d)", c.Prefetch.PageSize)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// RedisOptions returns the go-redis options for the configured server.
func (c *Config) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

// ClientConfig returns the API client configuration using redisClient.
func (c *Config) ClientConfig(redisClient *redis.Client) client.Config {
	return client.Config{
		Redis:          redisClient,
		BaseURL:        c.API.BaseURL,
		UserAgent:      c.API.UserAgent,
		RateLimit:      c.RateLimit.RequestsPerSecond,
		ThrottleDelay:  c.RateLimit.ThrottleDelay,
		Timeout:        c.API.Timeout,
		RespectExpires: c.Cache.RespectExpires,
		MaxRetries:     c.Retry.MaxAttempts,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
	}
}

// LoggingConfig returns the logger configuration. The level has been
// validated by Load.
func (c *Config) LoggingConfig() logging.Config {
	level, _ := logging.ParseLevel(c.Log.Level)
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.Log.Pretty
	return cfg
}
