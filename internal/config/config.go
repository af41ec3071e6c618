// Package config loads the engine's YAML configuration with environment
// variable overrides, following the shape of
// minis/50-mini-service-all-features/internal/config/config.go: a single
// Config struct with one sub-struct per concern, a Load(path) entry point,
// and a Validate() pass that fails loudly on missing required fields.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine's full runtime configuration.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway"`
	SwapRouter SwapRouterConfig `yaml:"swap_router"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Store      StoreConfig      `yaml:"store"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// GatewayConfig configures the settlement gateway HTTP client.
type GatewayConfig struct {
	Endpoints         []string      `yaml:"endpoints"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	APIKey            string        `yaml:"api_key"`
	RelayerPrivateKey string        `yaml:"relayer_private_key"`
}

// SwapRouterConfig configures the swap aggregator HTTP client.
type SwapRouterConfig struct {
	Endpoints         []string      `yaml:"endpoints"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	APIKey            string        `yaml:"api_key"`
}

// ReconcilerConfig configures the background reconciler loop.
type ReconcilerConfig struct {
	Schedule    string        `yaml:"schedule"`     // cron spec, e.g. "@every 30s"
	StepTimeout time.Duration `yaml:"step_timeout"` // spec.md's STEP_TIMEOUT
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	Driver   string `yaml:"driver"` // "memory" | "file"
	FilePath string `yaml:"file_path"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" | "console"
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads config from a YAML file, applies environment variable
// overrides, validates, and returns the result.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("GATEWAY_API_KEY"); key != "" {
		cfg.Gateway.APIKey = key
	}
	if key := os.Getenv("GATEWAY_RELAYER_PRIVATE_KEY"); key != "" {
		cfg.Gateway.RelayerPrivateKey = key
	}
	if key := os.Getenv("SWAP_ROUTER_API_KEY"); key != "" {
		cfg.SwapRouter.APIKey = key
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// Validate checks that the configuration is complete enough to start the
// engine.
func (c *Config) Validate() error {
	if len(c.Gateway.Endpoints) == 0 {
		return fmt.Errorf("gateway.endpoints is required")
	}
	if len(c.SwapRouter.Endpoints) == 0 {
		return fmt.Errorf("swap_router.endpoints is required")
	}
	if c.Reconciler.Schedule == "" {
		c.Reconciler.Schedule = "@every 30s"
	}
	if c.Reconciler.StepTimeout <= 0 {
		c.Reconciler.StepTimeout = 30 * time.Minute
	}
	switch c.Store.Driver {
	case "", "memory":
		c.Store.Driver = "memory"
	case "file":
		if c.Store.FilePath == "" {
			return fmt.Errorf("store.file_path is required when store.driver is \"file\"")
		}
	default:
		return fmt.Errorf("store.driver %q is not one of memory|file", c.Store.Driver)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	return nil
}
