package utils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vybium/vybium-advice/internal/vybium-advice/merkle"
)

// Config represents the configuration for advice recording and replay
type Config struct {
	// Hash function used for Merkle store nodes
	HashFunction string // "tip5" or "sha3"

	// Execution parameters
	MaxCycles uint64 // Upper bound on executed instructions

	// Logging
	LogLevel string // zap level name: "debug", "info", "warn", "error"
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		HashFunction: merkle.HashTip5,
		MaxCycles:    1_000_000,
		LogLevel:     "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HashFunction != merkle.HashTip5 && c.HashFunction != merkle.HashSHA3 {
		return fmt.Errorf("hash function must be '%s' or '%s', got '%s'", merkle.HashTip5, merkle.HashSHA3, c.HashFunction)
	}

	if c.MaxCycles == 0 {
		return fmt.Errorf("max cycles must be positive")
	}

	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level '%s': %w", c.LogLevel, err)
	}

	return nil
}

// Hasher returns the Merkle hasher selected by HashFunction
func (c *Config) Hasher() (merkle.Hasher, error) {
	return merkle.HasherByName(c.HashFunction)
}

// WithHashFunction sets the hash function
func (c *Config) WithHashFunction(hashFunc string) *Config {
	c.HashFunction = hashFunc
	return c
}

// WithMaxCycles sets the cycle limit
func (c *Config) WithMaxCycles(cycles uint64) *Config {
	c.MaxCycles = cycles
	return c
}

// WithLogLevel sets the log level
func (c *Config) WithLogLevel(level string) *Config {
	c.LogLevel = level
	return c
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	return &Config{
		HashFunction: c.HashFunction,
		MaxCycles:    c.MaxCycles,
		LogLevel:     c.LogLevel,
	}
}
