package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func clearEnv(t *testing.T) {
	for _, key := range []string{
		EnvDatabase, EnvKafkaBrokers, EnvKafkaTopic, EnvOtelEndpoint,
		EnvOtelAuthHeader, EnvAbandonAfter, EnvSweepInterval,
	} {
		t.Setenv(key, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "shop.db", cfg.Database)
	assert.Equal(t, "shop-events", cfg.Kafka.Topic)
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Telemetry.Enabled())
	assert.Equal(t, 24*time.Hour, cfg.Sweeper.AbandonAfter)
	assert.Equal(t, 15*time.Minute, cfg.Sweeper.Interval)
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database: /var/lib/shop/shop.db
kafka:
  brokers: [kafka-1:9092, kafka-2:9092]
telemetry:
  endpoint: otel.example.com:4318
  insecure: true
sweeper:
  abandon_after: 2h
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/shop/shop.db", cfg.Database)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "shop-events", cfg.Kafka.Topic, "unset keys keep defaults")
	assert.True(t, cfg.Kafka.Enabled())
	assert.True(t, cfg.Telemetry.Enabled())
	assert.True(t, cfg.Telemetry.Insecure)
	assert.Equal(t, "/v1/traces", cfg.Telemetry.URLPath)
	assert.Equal(t, 2*time.Hour, cfg.Sweeper.AbandonAfter)
	assert.Equal(t, 15*time.Minute, cfg.Sweeper.Interval)
}

func TestLoad_UnknownField(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "databse: typo.db\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDatabase, "/tmp/env.db")
	path := writeConfig(t, "database: file.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Database)
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "sweeper:\n  interval: -5m\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweeper.interval must be positive")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, fakeEnv(map[string]string{
		EnvDatabase:       "env.db",
		EnvKafkaBrokers:   " a:9092, ,b:9092 ",
		EnvKafkaTopic:     "orders",
		EnvOtelEndpoint:   "collector:4318",
		EnvOtelAuthHeader: "Bearer abc",
		EnvAbandonAfter:   "90m",
		EnvSweepInterval:  "1m",
	}))
	require.NoError(t, err)

	assert.Equal(t, "env.db", cfg.Database)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "orders", cfg.Kafka.Topic)
	assert.Equal(t, "collector:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, "Bearer abc", cfg.Telemetry.AuthHeader)
	assert.Equal(t, 90*time.Minute, cfg.Sweeper.AbandonAfter)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
}

func TestApplyEnv_EmptyValuesIgnored(t *testing.T) {
	cfg := Default()
	require.NoError(t, applyEnv(&cfg, fakeEnv(map[string]string{EnvDatabase: ""})))
	assert.Equal(t, "shop.db", cfg.Database)
}

func TestApplyEnv_BadDuration(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, fakeEnv(map[string]string{EnvAbandonAfter: "soon"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvAbandonAfter)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty database", func(c *Config) { c.Database = "" }, "database is required"},
		{"zero abandon", func(c *Config) { c.Sweeper.AbandonAfter = 0 }, "abandon_after"},
		{"blank broker", func(c *Config) { c.Kafka.Brokers = []string{"a:9092", " "} }, "kafka.brokers[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
