// Package config provides the configuration types for poolkit tools.
//
// The configuration is organized into logical sections:
//   - Simulation: pool shape and the generated acquire/release workload
//   - Observability: logging, metrics and tracing
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.Simulation.Pool.Size = 64
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"github.com/boxfriend/poolkit/pkg/errors"
)

// Config is the root configuration of the pool simulator.
type Config struct {
	// Simulation describes the pool and the workload driven against it
	Simulation SimulationConfig `yaml:"simulation" json:"simulation" mapstructure:"simulation"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// PoolConfig describes one circular pool.
type PoolConfig struct {
	// Name labels the pool in logs and metrics
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// Size is the fixed number of pooled items
	Size int `yaml:"size" json:"size" mapstructure:"size"`
}

// SimulationConfig describes a randomized acquire/release workload.
type SimulationConfig struct {
	Pool PoolConfig `yaml:"pool" json:"pool" mapstructure:"pool"`
	// Steps is the number of operations to perform
	Steps int `yaml:"steps" json:"steps" mapstructure:"steps"`
	// AcquireRatio is the probability that a step acquires instead of releases
	AcquireRatio float64 `yaml:"acquire_ratio" json:"acquire_ratio" mapstructure:"acquire_ratio"`
	// Seed makes runs reproducible
	Seed int64 `yaml:"seed" json:"seed" mapstructure:"seed"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	// LogEncoding selects json or console output
	LogEncoding string `yaml:"log_encoding" json:"log_encoding" mapstructure:"log_encoding"`
	// EnableTracing exports spans to stdout
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// MetricsAddr serves Prometheus metrics when set (e.g. ":9090")
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
	// MetricsNamespace prefixes every metric name
	MetricsNamespace string `yaml:"metrics_namespace" json:"metrics_namespace" mapstructure:"metrics_namespace"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Pool: PoolConfig{
				Name: "sim",
				Size: 16,
			},
			Steps:        10000,
			AcquireRatio: 0.6,
			Seed:         1,
		},
		Observability: ObservabilityConfig{
			LogLevel:         "info",
			LogEncoding:      "json",
			MetricsNamespace: "poolkit",
		},
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	return c.Observability.Validate()
}

// Validate checks the pool shape.
func (p *PoolConfig) Validate() error {
	if p.Size < 1 {
		return invalid("pool.size must be positive", "size", p.Size)
	}
	return nil
}

// Validate checks the workload parameters.
func (s *SimulationConfig) Validate() error {
	if err := s.Pool.Validate(); err != nil {
		return err
	}
	if s.Steps < 0 {
		return invalid("steps cannot be negative", "steps", s.Steps)
	}
	if s.AcquireRatio < 0 || s.AcquireRatio > 1 {
		return invalid("acquire_ratio must be between 0 and 1", "acquire_ratio", s.AcquireRatio)
	}
	return nil
}

// Validate checks the observability settings.
func (o *ObservabilityConfig) Validate() error {
	switch o.LogEncoding {
	case "", "json", "console":
	default:
		return invalid("log_encoding must be json or console", "log_encoding", o.LogEncoding)
	}
	return nil
}

func invalid(msg, key string, value interface{}) error {
	return errors.New(errors.ErrorTypeInvalidConfiguration, msg).WithDetail(key, value)
}
