package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration
type Config struct {
	Server    ServerConfig
	Engine    EngineConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        // Server host (default: "0.0.0.0")
	Port            int           // Server port (default: 8080)
	ReadTimeout     time.Duration // HTTP read timeout
	WriteTimeout    time.Duration // HTTP write timeout
	ShutdownTimeout time.Duration // Graceful shutdown timeout
	LogLevel        string        // Minimum log level
}

// EngineConfig holds discrepancy engine configuration
type EngineConfig struct {
	MaxInstances int // Max registered discrepancy instances
	Workers      int // L2 kernel fan-out (0 = one per CPU)
	MaxChannels  int // Upper bound on path channels accepted by the API
	MaxKnots     int // Upper bound on grid length accepted by the API
}

// AuthConfig holds JWT authentication configuration
type AuthConfig struct {
	Enabled   bool   // Require bearer tokens
	JWTSecret string // HMAC signing secret
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool    // Enable rate limiting
	RequestsPerSec float64 // Requests per second per client
	Burst          int     // Maximum burst size
	PerIP          bool    // Track limits per client IP
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			LogLevel:        "info",
		},
		Engine: EngineConfig{
			MaxInstances: 100,
			Workers:      0,
			MaxChannels:  64,
			MaxKnots:     4096,
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		RateLimit: RateLimitConfig{
			Enabled:        false,
			RequestsPerSec: 100,
			Burst:          200,
			PerIP:          true,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := Default()

	if host := os.Getenv("SHAPELET_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SHAPELET_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if timeout := os.Getenv("SHAPELET_READ_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			cfg.Server.ReadTimeout = t
		}
	}
	if timeout := os.Getenv("SHAPELET_WRITE_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			cfg.Server.WriteTimeout = t
		}
	}
	if level := os.Getenv("SHAPELET_LOG_LEVEL"); level != "" {
		cfg.Server.LogLevel = level
	}

	if max := os.Getenv("SHAPELET_MAX_INSTANCES"); max != "" {
		if m, err := strconv.Atoi(max); err == nil {
			cfg.Engine.MaxInstances = m
		}
	}
	if workers := os.Getenv("SHAPELET_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			cfg.Engine.Workers = w
		}
	}
	if max := os.Getenv("SHAPELET_MAX_CHANNELS"); max != "" {
		if m, err := strconv.Atoi(max); err == nil {
			cfg.Engine.MaxChannels = m
		}
	}
	if max := os.Getenv("SHAPELET_MAX_KNOTS"); max != "" {
		if m, err := strconv.Atoi(max); err == nil {
			cfg.Engine.MaxKnots = m
		}
	}

	if enabled := os.Getenv("SHAPELET_AUTH_ENABLED"); enabled == "true" {
		cfg.Auth.Enabled = true
		cfg.Auth.JWTSecret = os.Getenv("SHAPELET_JWT_SECRET")
	}

	if enabled := os.Getenv("SHAPELET_RATE_LIMIT_ENABLED"); enabled == "true" {
		cfg.RateLimit.Enabled = true
	}
	if rps := os.Getenv("SHAPELET_RATE_LIMIT_RPS"); rps != "" {
		if r, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.RateLimit.RequestsPerSec = r
		}
	}
	if burst := os.Getenv("SHAPELET_RATE_LIMIT_BURST"); burst != "" {
		if b, err := strconv.Atoi(burst); err == nil {
			cfg.RateLimit.Burst = b
		}
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Engine.MaxInstances < 1 {
		return fmt.Errorf("invalid max instances: %d (must be > 0)", c.Engine.MaxInstances)
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("invalid workers: %d (must be >= 0)", c.Engine.Workers)
	}
	if c.Engine.MaxChannels < 1 {
		return fmt.Errorf("invalid max channels: %d (must be > 0)", c.Engine.MaxChannels)
	}
	if c.Engine.MaxKnots < 2 {
		return fmt.Errorf("invalid max knots: %d (must be >= 2)", c.Engine.MaxKnots)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth enabled but SHAPELET_JWT_SECRET not set")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSec <= 0 {
			return fmt.Errorf("invalid rate limit: %v req/s (must be > 0)", c.RateLimit.RequestsPerSec)
		}
		if c.RateLimit.Burst < 1 {
			return fmt.Errorf("invalid burst: %d (must be > 0)", c.RateLimit.Burst)
		}
	}
	return nil
}

// Address returns the server address (host:port)
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
