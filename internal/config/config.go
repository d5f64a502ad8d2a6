// Package config provides unified configuration for the lessonpulse service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lessonpulse/lessonpulse/internal/ingest"
	"github.com/lessonpulse/lessonpulse/internal/journal"
	"github.com/lessonpulse/lessonpulse/internal/publish"
)

// Config holds the complete service configuration.
type Config struct {
	// DataDir is the base directory for all on-disk state
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP server configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// GRPC server configuration
	GRPC GRPCConfig `json:"grpc" yaml:"grpc"`

	// Ingest limits applied at the ingress adapters and the processor
	Ingest ingest.Limits `json:"ingest" yaml:"ingest"`

	// Stream windowing for the gRPC streaming adapter
	Stream StreamConfig `json:"stream" yaml:"stream"`

	// Journal (durable buffer) configuration
	Journal journal.Config `json:"journal" yaml:"journal"`

	// Retention horizon for sealed journal segments
	Retention time.Duration `json:"retention" yaml:"retention"`

	// ReclaimInterval is the period between reclamation scans
	ReclaimInterval time.Duration `json:"reclaim_interval" yaml:"reclaim_interval"`

	// Publish (downstream drain) configuration
	Publish publish.Config `json:"publish" yaml:"publish"`

	// Kafka downstream log configuration
	Kafka publish.KafkaConfig `json:"kafka" yaml:"kafka"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address for the HTTP ingress and operator API
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	// Addr is the gRPC listen address
	Addr string `json:"addr" yaml:"addr"`

	// Enabled controls whether the gRPC adapter is started
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// StreamConfig bounds the logical batch window of a streaming session.
type StreamConfig struct {
	// WindowMaxEvents closes a window once it holds this many events
	WindowMaxEvents int `json:"window_max_events" yaml:"window_max_events"`

	// WindowMaxAge closes a window once it has been open this long
	WindowMaxAge time.Duration `json:"window_max_age" yaml:"window_max_age"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		DataDir: "./data",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		GRPC: GRPCConfig{
			Addr:    ":9090",
			Enabled: true,
		},
		Ingest: ingest.DefaultLimits(),
		Stream: StreamConfig{
			WindowMaxEvents: 100,
			WindowMaxAge:    time.Second,
		},
		Journal:         journal.DefaultConfig(),
		Retention:       24 * time.Hour,
		ReclaimInterval: time.Minute,
		Publish:         publish.DefaultConfig(),
		Kafka: publish.KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "learner-activity",
		},
	}
}

// Load reads configuration from a YAML or JSON file, layered over defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("config: unsupported file extension: %s", path)
	}

	return cfg, nil
}

// ApplyEnv overlays LESSONPULSE_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LESSONPULSE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LESSONPULSE_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("LESSONPULSE_GRPC_ADDR"); v != "" {
		c.GRPC.Addr = v
	}
	if v := os.Getenv("LESSONPULSE_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LESSONPULSE_KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("LESSONPULSE_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Retention = d
		}
	}
}

// JournalDir returns the directory holding journal segments and the cursor.
func (c *Config) JournalDir() string {
	return filepath.Join(c.DataDir, "journal")
}

// DeadLetterPath returns the dead-letter database path.
func (c *Config) DeadLetterPath() string {
	return filepath.Join(c.DataDir, "deadletter.db")
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("config: http.addr is required")
	}
	if c.GRPC.Enabled && c.GRPC.Addr == "" {
		return fmt.Errorf("config: grpc.addr is required when grpc is enabled")
	}
	if c.Ingest.MaxBatchEvents <= 0 {
		return fmt.Errorf("config: ingest.max_batch_events must be positive")
	}
	if c.Ingest.MaxBatchBytes <= 0 {
		return fmt.Errorf("config: ingest.max_batch_bytes must be positive")
	}
	if c.Journal.HighWaterBytes <= c.Journal.MaxSegmentBytes {
		return fmt.Errorf("config: journal.high_water_bytes must exceed journal.max_segment_bytes")
	}
	if c.Stream.WindowMaxEvents <= 0 {
		return fmt.Errorf("config: stream.window_max_events must be positive")
	}
	if c.Stream.WindowMaxEvents > c.Ingest.MaxBatchEvents {
		return fmt.Errorf("config: stream.window_max_events must not exceed ingest.max_batch_events")
	}
	if c.Retention <= 0 {
		return fmt.Errorf("config: retention must be positive")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers is required")
	}
	if c.Kafka.Topic == "" {
		return fmt.Errorf("config: kafka.topic is required")
	}
	return nil
}

// EnsureDirectories creates the data directories if they do not exist.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.JournalDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: failed to create %s: %w", dir, err)
		}
	}
	return nil
}
