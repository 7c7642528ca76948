// Package config loads process configuration from FANOUT_-prefixed
// environment variables (and a .env file when present).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

// EnvPrefix is the prefix of every configuration variable.
// Nested keys use a double underscore: FANOUT_UPSTREAM__BASE_URL.
const EnvPrefix = "FANOUT_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Batch    BatchConfig    `koanf:"batch"`
	Redis    RedisConfig    `koanf:"redis"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port           string        `koanf:"port" validate:"required"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"required"`
}

type UpstreamConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	UserAgent string        `koanf:"user_agent"`
	Timeout   time.Duration `koanf:"timeout" validate:"required"`
}

type BatchConfig struct {
	ConcurrencyLimit int `koanf:"concurrency_limit" validate:"min=1"`
}

// RedisConfig configures the optional payload cache. An empty Addr disables it.
type RedisConfig struct {
	Addr string `koanf:"addr"`
	DB   int    `koanf:"db" validate:"min=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Pretty bool   `koanf:"pretty"`
}

// defaults mirror the values the handler was first deployed with.
var defaults = map[string]interface{}{
	"server.port":             "8080",
	"server.request_timeout":  "30s",
	"upstream.base_url":       "http://host.docker.internal:4000",
	"upstream.user_agent":     "account-batch-fetcher/0.1.0",
	"upstream.timeout":        "10s",
	"batch.concurrency_limit": 5,
	"redis.addr":              "",
	"redis.db":                0,
	"log.level":               "info",
	"log.pretty":              false,
}

// Load reads defaults, then the environment, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, EnvPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// CacheEnabled reports whether a Redis address was configured.
func (c *Config) CacheEnabled() bool {
	return c.Redis.Addr != ""
}
