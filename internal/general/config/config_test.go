package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validConfig = `
database:
  host: "db.internal"
  port: 5433
  user: "matching"
  password: 'secret'
  database: "campus_rides"

redis:
  host: "cache.internal"
  port: 6380
  password: ""
  db: 2

rabbitmq:
  host: "mq.internal"
  port: 5672
  user: "guest"
  password: "guest"

matching:
  enabled: true
  driver_response_seconds: 20  # shorter window for tests
  broadcast_seconds: 90
  retry_delay_seconds: 3
  max_delivery_attempts: 4
  dead_letter_threshold: 2
  min_session_ttl_seconds: 5
  forced_expiry_seconds: 30

services:
  matching_service: 4002
  prefetch: 25
`

func TestLoadFromFile(t *testing.T) {
	cfg, err := LoadFromFile(writeConfigFile(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "campus_rides", cfg.Database.Name)

	assert.Equal(t, "cache.internal", cfg.Redis.Host)
	assert.Equal(t, 2, cfg.Redis.DB)

	assert.Equal(t, "mq.internal", cfg.RabbitMQ.Host)

	assert.True(t, cfg.Matching.Enabled)
	assert.Equal(t, 20*time.Second, cfg.DriverResponseWindow())
	assert.Equal(t, 90*time.Second, cfg.BroadcastWindow())
	assert.Equal(t, 3*time.Second, cfg.RetryDelay())
	assert.Equal(t, 4, cfg.Matching.MaxDeliveryAttempts)
	assert.Equal(t, 2, cfg.Matching.DeadLetterThreshold)
	assert.Equal(t, 5*time.Second, cfg.MinSessionTTL())
	assert.Equal(t, 30*time.Second, cfg.ForcedExpiryTTL())

	assert.Equal(t, 4002, cfg.Services.MatchingServicePort)
	assert.Equal(t, 25, cfg.Services.Prefetch)
}

func TestLoadFromFile_Defaults(t *testing.T) {
	minimal := `
database:
  user: "matching"
  password: "secret"
  database: "campus_rides"

rabbitmq:
  user: "guest"
  password: "guest"
`
	cfg, err := LoadFromFile(writeConfigFile(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 5672, cfg.RabbitMQ.Port)

	// matching defaults, disabled unless switched on
	assert.False(t, cfg.Matching.Enabled)
	assert.Equal(t, 30*time.Second, cfg.DriverResponseWindow())
	assert.Equal(t, 120*time.Second, cfg.BroadcastWindow())
	assert.Equal(t, 5, cfg.Matching.MaxDeliveryAttempts)
	assert.Equal(t, 3, cfg.Matching.DeadLetterThreshold)
	assert.Equal(t, 10*time.Second, cfg.MinSessionTTL())
	assert.Equal(t, 60*time.Second, cfg.ForcedExpiryTTL())

	assert.Equal(t, 3002, cfg.Services.MatchingServicePort)
	assert.Equal(t, 10, cfg.Services.Prefetch)
}

func TestLoadFromFile_MissingRequiredFields(t *testing.T) {
	noCreds := `
database:
  host: "db.internal"

rabbitmq:
  host: "mq.internal"
`
	_, err := LoadFromFile(writeConfigFile(t, noCreds))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.user is required")
	assert.Contains(t, err.Error(), "rabbitmq.password is required")
}

func TestLoadFromFile_RejectsUnknownKeys(t *testing.T) {
	unknown := validConfig + "\nmatching_extras:\n  foo: 1\n"
	_, err := LoadFromFile(writeConfigFile(t, unknown))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown top-level key")
}

func TestLoadFromFile_DuplicateSection(t *testing.T) {
	dup := validConfig + "\nredis:\n  port: 6379\n"
	_, err := LoadFromFile(writeConfigFile(t, dup))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate 'redis' section")
}

func TestLoadFromFile_BadScalar(t *testing.T) {
	bad := `
matching:
  driver_response_seconds: soon
`
	_, err := LoadFromFile(writeConfigFile(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver_response_seconds must be int")
}
