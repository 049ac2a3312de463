// Package config loads the query server daemon configuration from YAML.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/getada/ada/pkg/rpcserver"
)

// Config is the daemon configuration. Limits of 0 mean unlimited.
type Config struct {
	// ListenAddr is the host:port the query server binds.
	ListenAddr string `yaml:"listen_addr"`

	// MaxRequestsPerSecond caps the request rate per client address.
	MaxRequestsPerSecond int `yaml:"max_requests_per_second"`

	// MaxConcurrentPerAddr caps in-flight requests per client address.
	MaxConcurrentPerAddr int `yaml:"max_concurrent_per_address"`

	// MaxTotalConcurrent caps in-flight requests across all clients.
	MaxTotalConcurrent int `yaml:"max_total_concurrent"`

	// SessionsDir overrides the default ~/.ada/sessions root.
	SessionsDir string `yaml:"sessions_dir,omitempty"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	limits := rpcserver.DefaultConfig()
	return &Config{
		ListenAddr:           "127.0.0.1:9700",
		MaxRequestsPerSecond: limits.MaxRequestsPerSecond,
		MaxConcurrentPerAddr: limits.MaxConcurrentPerAddr,
		MaxTotalConcurrent:   limits.MaxTotalConcurrent,
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// Load reads a YAML config file. Unknown keys are rejected so typos fail
// loudly instead of silently falling back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ServerConfig maps the daemon configuration onto the query server limits.
func (c *Config) ServerConfig() rpcserver.Config {
	return rpcserver.Config{
		MaxRequestsPerSecond: c.MaxRequestsPerSecond,
		MaxConcurrentPerAddr: c.MaxConcurrentPerAddr,
		MaxTotalConcurrent:   c.MaxTotalConcurrent,
	}
}
