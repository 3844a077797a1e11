package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the sentinel service.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Database   DatabaseConfig    `yaml:"database"`
	Pipeline   PipelineConfig    `yaml:"pipeline"`
	Analyzer   AnalyzerConfig    `yaml:"analyzer"`
	Notify     *NotifyConfig     `yaml:"notify,omitempty"`
	Workers    *WorkerConfig     `yaml:"workers,omitempty"`
	DeadLetter *DeadLetterConfig `yaml:"dead_letter,omitempty"`
	Logging    LoggingConfig     `yaml:"logging"`
	Metrics    *MetricsConfig    `yaml:"metrics,omitempty"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// ServerConfig defines the HTTP API surface.
type ServerConfig struct {
	Address      string        `yaml:"address"`
	APIKeys      []string      `yaml:"api_keys,omitempty"`
	RateLimit    int           `yaml:"rate_limit,omitempty"` // requests/sec per client IP
	MaxBodySize  int64         `yaml:"max_body_size,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
}

// DatabaseConfig defines the persistence gateway backing store.
type DatabaseConfig struct {
	Path string `yaml:"path"` // sqlite file path; empty means in-memory
}

// PipelineConfig holds retry orchestration parameters.
type PipelineConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	// MaxDelay caps exponential backoff growth. Zero disables the cap,
	// matching the historical behavior of unbounded growth.
	MaxDelay time.Duration `yaml:"max_delay,omitempty"`
}

// AnalyzerConfig selects and configures the severity analyzer.
type AnalyzerConfig struct {
	Provider string        `yaml:"provider"` // "heuristic" or "llm"
	Endpoint string        `yaml:"endpoint,omitempty"`
	APIKey   string        `yaml:"api_key,omitempty"`
	Model    string        `yaml:"model,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// NotifyConfig selects the processed-event update sink.
type NotifyConfig struct {
	Type          string               `yaml:"type"` // none, kafka, webhook, elasticsearch, multi
	Kafka         *KafkaNotifyConfig   `yaml:"kafka,omitempty"`
	Webhook       *WebhookNotifyConfig `yaml:"webhook,omitempty"`
	Elasticsearch *ESNotifyConfig      `yaml:"elasticsearch,omitempty"`
	Multi         []NotifyConfig       `yaml:"multi,omitempty"`
}

// KafkaNotifyConfig configures the Kafka update sink.
type KafkaNotifyConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id,omitempty"`
	Version  string   `yaml:"version,omitempty"`
}

// WebhookNotifyConfig configures the HTTP POST update sink.
type WebhookNotifyConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
}

// ESNotifyConfig configures the Elasticsearch update sink.
type ESNotifyConfig struct {
	Addresses []string `yaml:"addresses"`
	Index     string   `yaml:"index"`
	Username  string   `yaml:"username,omitempty"`
	Password  string   `yaml:"password,omitempty"`
	APIKey    string   `yaml:"api_key,omitempty"`
}

// WorkerConfig bounds async processing admission.
type WorkerConfig struct {
	NumWorkers int `yaml:"num_workers"`
	QueueSize  int `yaml:"queue_size,omitempty"`
}

// DeadLetterConfig configures the failed-job journal.
type DeadLetterConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// LoggingConfig defines log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// Defaults.
const (
	DefaultAddress    = "0.0.0.0:8080"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	DefaultMaxRetries = 3
	DefaultProvider   = "heuristic"
)

const (
	DefaultBaseDelay       = 1 * time.Second
	DefaultAnalyzerTimeout = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Load reads a YAML config file, expands environment variables, applies
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads from path, falling back to DefaultConfig on error.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Pipeline.MaxRetries == 0 {
		c.Pipeline.MaxRetries = DefaultMaxRetries
	}
	if c.Pipeline.BaseDelay == 0 {
		c.Pipeline.BaseDelay = DefaultBaseDelay
	}
	if c.Analyzer.Provider == "" {
		c.Analyzer.Provider = DefaultProvider
	}
	if c.Analyzer.Timeout == 0 {
		c.Analyzer.Timeout = DefaultAnalyzerTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Workers != nil && c.Workers.NumWorkers == 0 {
		c.Workers.NumWorkers = 4
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must not be negative")
	}
	if c.Pipeline.BaseDelay < 0 {
		return fmt.Errorf("pipeline.base_delay must not be negative")
	}

	switch c.Analyzer.Provider {
	case "heuristic":
	case "llm":
		if c.Analyzer.Endpoint == "" {
			return fmt.Errorf("analyzer.endpoint is required for the llm provider")
		}
	default:
		return fmt.Errorf("unknown analyzer provider: %s", c.Analyzer.Provider)
	}

	if c.Notify != nil {
		if err := c.Notify.validate(); err != nil {
			return err
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.DeadLetter != nil && c.DeadLetter.Enabled && c.DeadLetter.Dir == "" {
		return fmt.Errorf("dead_letter.dir is required when the dead letter journal is enabled")
	}

	return nil
}

func (n *NotifyConfig) validate() error {
	switch n.Type {
	case "", "none":
	case "kafka":
		if n.Kafka == nil || len(n.Kafka.Brokers) == 0 {
			return fmt.Errorf("notify.kafka.brokers is required for the kafka sink")
		}
		if n.Kafka.Topic == "" {
			return fmt.Errorf("notify.kafka.topic is required for the kafka sink")
		}
	case "webhook":
		if n.Webhook == nil || n.Webhook.URL == "" {
			return fmt.Errorf("notify.webhook.url is required for the webhook sink")
		}
	case "elasticsearch":
		if n.Elasticsearch == nil || len(n.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("notify.elasticsearch.addresses is required for the elasticsearch sink")
		}
		if n.Elasticsearch.Index == "" {
			return fmt.Errorf("notify.elasticsearch.index is required for the elasticsearch sink")
		}
	case "multi":
		if len(n.Multi) == 0 {
			return fmt.Errorf("notify.multi requires at least one nested sink")
		}
		for i := range n.Multi {
			if err := n.Multi[i].validate(); err != nil {
				return fmt.Errorf("notify.multi[%d]: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown notify sink type: %s", n.Type)
	}
	return nil
}

// DefaultConfig returns a runnable default configuration: in-memory
// database, heuristic analyzer, no sink.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Address: DefaultAddress},
		Pipeline: PipelineConfig{
			MaxRetries: DefaultMaxRetries,
			BaseDelay:  DefaultBaseDelay,
		},
		Analyzer: AnalyzerConfig{
			Provider: DefaultProvider,
			Timeout:  DefaultAnalyzerTimeout,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}
