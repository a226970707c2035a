package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port int `mapstructure:"port"`

	// Submission rate limit, per client address.
	RatePerMinute int `mapstructure:"rate_per_minute"`
	RateBurst     int `mapstructure:"rate_burst"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type ChannelConfig struct {
	// Backend selects the session store: "memory" or "redis".
	Backend  string `mapstructure:"backend"`
	RedisURL string `mapstructure:"redis_url"`

	OutputTTL time.Duration `mapstructure:"output_ttl"`
	RelayTTL  time.Duration `mapstructure:"relay_ttl"`
}

type RunnerConfig struct {
	MaxMemoryMiB int `mapstructure:"max_memory_mib"`

	// MaxRunSeconds covers the whole run, time spent waiting on
	// input() included. Interactive deployments need a larger value.
	MaxRunSeconds int `mapstructure:"max_run_seconds"`

	InputPollSeconds int `mapstructure:"input_poll_seconds"`
	InputMaxAttempts int `mapstructure:"input_max_attempts"`
	Workers          int `mapstructure:"workers"`
	QueueSize        int `mapstructure:"queue_size"`
}

type SandboxConfig struct {
	// PolicyPath optionally points at a YAML execution policy that
	// overrides the built-in denylist and limits.
	PolicyPath string `mapstructure:"policy_path"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Channel ChannelConfig `mapstructure:"channel"`
	Runner  RunnerConfig  `mapstructure:"runner"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("crucible")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.crucible")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Running on pure defaults is fine; only a malformed file is fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_minute", 10)
	v.SetDefault("server.rate_burst", 5)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".crucible", "crucible.db"))
	v.SetDefault("channel.backend", "memory")
	v.SetDefault("channel.redis_url", "redis://localhost:6379/0")
	v.SetDefault("channel.output_ttl", time.Hour)
	v.SetDefault("channel.relay_ttl", 5*time.Minute)
	v.SetDefault("runner.max_memory_mib", 100)
	v.SetDefault("runner.max_run_seconds", 5)
	v.SetDefault("runner.input_poll_seconds", 1)
	v.SetDefault("runner.input_max_attempts", 300)
	v.SetDefault("runner.workers", 4)
	v.SetDefault("runner.queue_size", 64)
	v.SetDefault("sandbox.policy_path", "")
}
