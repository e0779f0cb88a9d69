// Package config loads and validates the server configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sxlmons/filelink/pkg/constants"
)

// Config holds the server configuration. Zero values are replaced by
// defaults in Normalize, so a partial YAML file is enough.
type Config struct {
	// Port the server listens on.
	Port int `yaml:"port"`

	// FileStoragePath is the root directory for file bytes.
	FileStoragePath string `yaml:"file_storage_path"`

	// MetadataPath is the root directory for per-user metadata documents.
	MetadataPath string `yaml:"metadata_path"`

	// UsersPath is the root directory for user records.
	UsersPath string `yaml:"users_path"`

	// MaxConcurrentClients caps simultaneous sessions.
	MaxConcurrentClients int `yaml:"max_concurrent_clients"`

	// NetworkBufferSize sizes the buffered reader on each connection.
	NetworkBufferSize int `yaml:"network_buffer_size"`

	// SessionTimeoutMinutes is the idle cutoff enforced by the sweeper.
	SessionTimeoutMinutes int `yaml:"session_timeout_minutes"`

	// MaxPacketSize bounds a single frame on the wire.
	MaxPacketSize int `yaml:"max_packet_size"`
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Load reads a YAML configuration file and normalizes it. A missing file is
// not an error; the defaults apply.
func Load(path string) (*Config, error) {
	c := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.Normalize()
			return c, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Normalize replaces zero values with defaults.
func (c *Config) Normalize() {
	if c.Port == 0 {
		c.Port = constants.DefaultPort
	}
	if c.FileStoragePath == "" {
		c.FileStoragePath = "data/storage"
	}
	if c.MetadataPath == "" {
		c.MetadataPath = "data/metadata"
	}
	if c.UsersPath == "" {
		c.UsersPath = "data/users"
	}
	if c.MaxConcurrentClients == 0 {
		c.MaxConcurrentClients = constants.DefaultMaxConcurrentClients
	}
	if c.NetworkBufferSize == 0 {
		c.NetworkBufferSize = constants.DefaultNetworkBufferSize
	}
	if c.SessionTimeoutMinutes == 0 {
		c.SessionTimeoutMinutes = int(constants.DefaultSessionTimeout / time.Minute)
	}
	if c.MaxPacketSize == 0 {
		c.MaxPacketSize = constants.DefaultMaxPacketSize
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxPacketSize < constants.MinMaxPacketSize {
		return fmt.Errorf("max_packet_size %d below minimum %d (chunk size plus overhead)",
			c.MaxPacketSize, constants.MinMaxPacketSize)
	}
	if c.MaxConcurrentClients < 1 {
		return fmt.Errorf("max_concurrent_clients must be positive")
	}
	if c.SessionTimeoutMinutes < 1 {
		return fmt.Errorf("session_timeout_minutes must be positive")
	}
	return nil
}

// SessionTimeout returns the idle cutoff as a duration.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMinutes) * time.Minute
}

// ListenAddr returns the TCP listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
