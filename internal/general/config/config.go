package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string // YAML key: "database"
	}
	Redis struct {
		Host     string
		Port     int
		Password string
		DB       int
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	Matching struct {
		Enabled               bool
		DriverResponseSeconds int // per-offer response window
		BroadcastSeconds      int // broadcast phase bound
		RetryDelaySeconds     int // redelivery delay for failed commands
		MaxDeliveryAttempts   int // attempts before a command is dead-lettered
		DeadLetterThreshold   int // attempts above which dead-letter forces expiry
		MinSessionTTLSeconds  int // floor for session-store TTLs
		ForcedExpirySeconds   int // TTL for dead-letter forced terminal writes
	}
	Services struct {
		MatchingServicePort int
		Prefetch            int
	}
}

// LoadFromFile loads config from a YAML file to a Config struct, applies defaults, and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := parseYAML(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// Redis
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Matching windows
	if cfg.Matching.DriverResponseSeconds == 0 {
		cfg.Matching.DriverResponseSeconds = 30
	}
	if cfg.Matching.BroadcastSeconds == 0 {
		cfg.Matching.BroadcastSeconds = 120
	}
	if cfg.Matching.RetryDelaySeconds == 0 {
		cfg.Matching.RetryDelaySeconds = 5
	}
	if cfg.Matching.MaxDeliveryAttempts == 0 {
		cfg.Matching.MaxDeliveryAttempts = 5
	}
	if cfg.Matching.DeadLetterThreshold == 0 {
		cfg.Matching.DeadLetterThreshold = 3
	}
	if cfg.Matching.MinSessionTTLSeconds == 0 {
		cfg.Matching.MinSessionTTLSeconds = 10
	}
	if cfg.Matching.ForcedExpirySeconds == 0 {
		cfg.Matching.ForcedExpirySeconds = 60
	}

	// Services
	if cfg.Services.MatchingServicePort == 0 {
		cfg.Services.MatchingServicePort = 3002
	}
	if cfg.Services.Prefetch == 0 {
		cfg.Services.Prefetch = 10
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// DB
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Password == "" {
		problems = append(problems, "database.password is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.name is required")
	}

	// Redis
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		problems = append(problems, "redis.port must be in 1..65535")
	}
	if c.Redis.DB < 0 {
		problems = append(problems, "redis.db must be >= 0")
	}

	// RabbitMQ
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.RabbitMQ.User == "" {
		problems = append(problems, "rabbitmq.user is required")
	}
	if c.RabbitMQ.Password == "" {
		problems = append(problems, "rabbitmq.password is required")
	}

	// Matching
	if c.Matching.DriverResponseSeconds <= 0 {
		problems = append(problems, "matching.driver_response_seconds must be > 0")
	}
	if c.Matching.BroadcastSeconds <= 0 {
		problems = append(problems, "matching.broadcast_seconds must be > 0")
	}
	if c.Matching.RetryDelaySeconds <= 0 {
		problems = append(problems, "matching.retry_delay_seconds must be > 0")
	}
	if c.Matching.MaxDeliveryAttempts <= 0 {
		problems = append(problems, "matching.max_delivery_attempts must be > 0")
	}
	if c.Matching.DeadLetterThreshold <= 0 {
		problems = append(problems, "matching.dead_letter_threshold must be > 0")
	}

	// Services
	if c.Services.MatchingServicePort <= 0 || c.Services.MatchingServicePort > 65535 {
		problems = append(problems, "services.matching_service must be in 1..65535")
	}
	if c.Services.Prefetch <= 0 {
		problems = append(problems, "services.prefetch must be > 0")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// DriverResponseWindow returns the per-offer response window as a duration.
func (c *Config) DriverResponseWindow() time.Duration {
	return time.Duration(c.Matching.DriverResponseSeconds) * time.Second
}

// BroadcastWindow returns the broadcast phase bound as a duration.
func (c *Config) BroadcastWindow() time.Duration {
	return time.Duration(c.Matching.BroadcastSeconds) * time.Second
}

// RetryDelay returns the failed-command redelivery delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Matching.RetryDelaySeconds) * time.Second
}

// MinSessionTTL returns the session TTL floor as a duration.
func (c *Config) MinSessionTTL() time.Duration {
	return time.Duration(c.Matching.MinSessionTTLSeconds) * time.Second
}

// ForcedExpiryTTL returns the TTL used for dead-letter forced terminal writes.
func (c *Config) ForcedExpiryTTL() time.Duration {
	return time.Duration(c.Matching.ForcedExpirySeconds) * time.Second
}
