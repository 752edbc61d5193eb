// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultItemAttachmentNamespace is the OData namespace used for the item
// attachment cast segment.
const DefaultItemAttachmentNamespace = "Microsoft.OutlookServices"

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	OData         ODataConfig         `yaml:"odata"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ReplyTimeout    time.Duration `yaml:"reply_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// ODataConfig describes how the bridge talks to the Outlook REST service.
type ODataConfig struct {
	Timeout                 time.Duration        `yaml:"timeout"`
	UserAgent               string               `yaml:"user_agent"`
	ItemAttachmentNamespace string               `yaml:"item_attachment_namespace"`
	MaxResponseBytes        int64                `yaml:"max_response_bytes"`
	CircuitBreaker          CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry                   RetryConfig          `yaml:"retry"`
	Pool                    PoolConfig           `yaml:"pool"`
}

// CircuitBreakerConfig describes circuit breaker settings for the remote service.
type CircuitBreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	SuccessThreshold   int           `yaml:"success_threshold"`
	Timeout            time.Duration `yaml:"timeout"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold"`
	ErrorRateWindow    time.Duration `yaml:"error_rate_window"`
}

// RetryConfig describes retry settings for remote calls.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffInitial    time.Duration `yaml:"backoff_initial"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	IdempotentOnly    bool          `yaml:"idempotent_only"`
}

// PoolConfig describes the shared HTTP connection pool.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	Tracing   TracingConfig `yaml:"tracing"`
	Metrics   MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			ReplyTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    4 << 20,
		},
		OData: ODataConfig{
			Timeout:                 30 * time.Second,
			UserAgent:               "outlook-bridge",
			ItemAttachmentNamespace: DefaultItemAttachmentNamespace,
			MaxResponseBytes:        32 << 20,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts:       2,
				BackoffInitial:    200 * time.Millisecond,
				BackoffMultiplier: 2,
				BackoffMax:        2 * time.Second,
				IdempotentOnly:    true,
			},
			Pool: PoolConfig{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates the result. An empty path skips the file and starts from
// Defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.ReplyTimeout < 0 {
		errs = append(errs, "server.reply_timeout must not be negative")
	}
	if c.OData.Timeout < 0 {
		errs = append(errs, "odata.timeout must not be negative")
	}
	if strings.TrimSpace(c.OData.ItemAttachmentNamespace) == "" {
		errs = append(errs, "odata.item_attachment_namespace is required")
	}
	if c.OData.Retry.MaxAttempts < 0 {
		errs = append(errs, "odata.retry.max_attempts must not be negative")
	}
	if r := c.OData.CircuitBreaker.ErrorRateThreshold; r < 0 || r > 1 {
		errs = append(errs, "odata.circuit_breaker.error_rate_threshold must be between 0 and 1")
	}
	switch c.Observability.LogFormat {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("observability.log_format %q is not supported", c.Observability.LogFormat))
	}
	switch c.Observability.Tracing.Exporter {
	case "", "otlp", "stdout":
	default:
		errs = append(errs, fmt.Sprintf("observability.tracing.exporter %q is not supported", c.Observability.Tracing.Exporter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// envOverrides maps OUTLOOKBRIDGE_* variables onto config fields. Values
// that fail to parse are ignored.
var envOverrides = map[string]func(c *Config, v string){
	"OUTLOOKBRIDGE_SERVER_PORT": func(c *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	},
	"OUTLOOKBRIDGE_REPLY_TIMEOUT": durationInto(func(c *Config) *time.Duration { return &c.Server.ReplyTimeout }),
	"OUTLOOKBRIDGE_ODATA_TIMEOUT": durationInto(func(c *Config) *time.Duration { return &c.OData.Timeout }),
	"OUTLOOKBRIDGE_LOG_LEVEL":     func(c *Config, v string) { c.Observability.LogLevel = v },
	"OUTLOOKBRIDGE_LOG_FORMAT":    func(c *Config, v string) { c.Observability.LogFormat = v },
	"OUTLOOKBRIDGE_ODATA_USER_AGENT": func(c *Config, v string) {
		c.OData.UserAgent = v
	},
	"OUTLOOKBRIDGE_ODATA_ITEM_ATTACHMENT_NAMESPACE": func(c *Config, v string) {
		c.OData.ItemAttachmentNamespace = v
	},
	"OUTLOOKBRIDGE_TRACING_ENABLED": func(c *Config, v string) {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Observability.Tracing.Enabled = on
		}
	},
	"OUTLOOKBRIDGE_TRACING_ENDPOINT": func(c *Config, v string) { c.Observability.Tracing.Endpoint = v },
}

func durationInto(field func(*Config) *time.Duration) func(*Config, string) {
	return func(c *Config, v string) {
		if d, err := time.ParseDuration(v); err == nil {
			*field(c) = d
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	for name, apply := range envOverrides {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			apply(cfg, v)
		}
	}
}
