// Package config loads engine configuration from an optional YAML file and
// environment overrides. CLI flags are applied on top by the cli package.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ServiceName    = "shopledger"
	ServiceVersion = "0.1.0"
)

// Environment variables consulted by Load.
const (
	EnvDatabase       = "SHOP_DB"
	EnvKafkaBrokers   = "SHOP_KAFKA_BROKERS" // comma separated
	EnvKafkaTopic     = "SHOP_KAFKA_TOPIC"
	EnvOtelEndpoint   = "SHOP_OTEL_ENDPOINT"
	EnvOtelAuthHeader = "SHOP_OTEL_AUTH_HEADER"
	EnvAbandonAfter   = "SHOP_ABANDON_AFTER"
	EnvSweepInterval  = "SHOP_SWEEP_INTERVAL"
)

// Config is the full engine configuration.
type Config struct {
	Database  string          `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
}

// KafkaConfig enables event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether events should be published to Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// TelemetryConfig enables OTLP/HTTP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint   string `yaml:"endpoint"`
	URLPath    string `yaml:"url_path"`
	AuthHeader string `yaml:"auth_header"`
	Insecure   bool   `yaml:"insecure"`
}

// Enabled reports whether traces should be exported.
func (t TelemetryConfig) Enabled() bool {
	return t.Endpoint != ""
}

// SweeperConfig controls the abandonment sweep.
type SweeperConfig struct {
	AbandonAfter time.Duration `yaml:"abandon_after"`
	Interval     time.Duration `yaml:"interval"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Database: "shop.db",
		Kafka:    KafkaConfig{Topic: "shop-events"},
		Telemetry: TelemetryConfig{
			URLPath: "/v1/traces",
		},
		Sweeper: SweeperConfig{
			AbandonAfter: 24 * time.Hour,
			Interval:     15 * time.Minute,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and environment overrides, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true) // Reject unknown fields
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Sweeper.AbandonAfter <= 0 {
		return fmt.Errorf("sweeper.abandon_after must be positive")
	}
	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper.interval must be positive")
	}
	for i, b := range c.Kafka.Brokers {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("kafka.brokers[%d] is empty", i)
		}
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		cfg.Database = v
	}
	if v, ok := lookup(EnvKafkaBrokers); ok && v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup(EnvKafkaTopic); ok && v != "" {
		cfg.Kafka.Topic = v
	}
	if v, ok := lookup(EnvOtelEndpoint); ok && v != "" {
		cfg.Telemetry.Endpoint = v
	}
	if v, ok := lookup(EnvOtelAuthHeader); ok && v != "" {
		cfg.Telemetry.AuthHeader = v
	}
	if v, ok := lookup(EnvAbandonAfter); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAbandonAfter, err)
		}
		cfg.Sweeper.AbandonAfter = d
	}
	if v, ok := lookup(EnvSweepInterval); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSweepInterval, err)
		}
		cfg.Sweeper.Interval = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
