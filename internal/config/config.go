// Package config loads and validates the promotion service configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aurelius/promotion/internal/engine"
	"github.com/aurelius/promotion/internal/gates"
	"github.com/aurelius/promotion/internal/parity"
	"github.com/aurelius/promotion/internal/readiness"
)

// HTTPConfig holds server binding and timeout settings.
type HTTPConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// PostgresConfig holds the gate/readiness store connection settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds the scorecard cache connection settings.
type RedisConfig struct {
	Addr string        `yaml:"addr"`
	DB   int           `yaml:"db"`
	TTL  time.Duration `yaml:"ttl"`
}

// Config is the complete service configuration.
type Config struct {
	Engine    engine.ProcessRunnerConfig `yaml:"engine"`
	Replay    parity.ReplayCheckerConfig `yaml:"replay"`
	Gates     gates.CRVThresholds        `yaml:"gates"`
	Readiness readiness.Config           `yaml:"readiness"`
	HTTP      HTTPConfig                 `yaml:"http"`
	Postgres  PostgresConfig             `yaml:"postgres"`
	Redis     RedisConfig                `yaml:"redis"`
	DataDir   string                     `yaml:"data_dir"`
	WorkDir   string                     `yaml:"work_dir"`
}

// Default returns a fully populated configuration suitable for local use.
func Default() Config {
	return Config{
		Engine:    engine.DefaultProcessRunnerConfig(),
		Replay:    parity.DefaultReplayCheckerConfig(),
		Gates:     gates.DefaultCRVThresholds(),
		Readiness: readiness.DefaultConfig(),
		HTTP: HTTPConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  24 * time.Hour,
		},
		DataDir: "data",
		WorkDir: os.TempDir(),
	}
}

// Load reads a YAML configuration file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section that can reject input. Configuration is
// the only fatal error class: nothing here is silently corrected.
func (c Config) Validate() error {
	if err := c.Replay.Tolerances.Validate(); err != nil {
		return err
	}
	if err := c.Gates.Validate(); err != nil {
		return err
	}
	if err := c.Readiness.Validate(); err != nil {
		return err
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Engine.RunTimeout <= 0 {
		return fmt.Errorf("engine run timeout must be positive, got %s", c.Engine.RunTimeout)
	}
	return nil
}
