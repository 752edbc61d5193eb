package config

import (
	"testing"
	"time"
)

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.ReplyTimeout != 45*time.Second {
		t.Errorf("Server.ReplyTimeout = %v, want 45s", cfg.Server.ReplyTimeout)
	}
	// Untouched fields keep their defaults.
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 30s", cfg.Server.ShutdownTimeout)
	}
	if cfg.OData.Timeout != 20*time.Second {
		t.Errorf("OData.Timeout = %v, want 20s", cfg.OData.Timeout)
	}
	if cfg.OData.UserAgent != "outlook-bridge-test" {
		t.Errorf("OData.UserAgent = %q", cfg.OData.UserAgent)
	}
	if cfg.OData.Retry.MaxAttempts != 3 {
		t.Errorf("OData.Retry.MaxAttempts = %d, want 3", cfg.OData.Retry.MaxAttempts)
	}
	if cfg.OData.Retry.BackoffInitial != 50*time.Millisecond {
		t.Errorf("OData.Retry.BackoffInitial = %v, want 50ms", cfg.OData.Retry.BackoffInitial)
	}
	if cfg.OData.CircuitBreaker.Timeout != 10*time.Second {
		t.Errorf("OData.CircuitBreaker.Timeout = %v, want 10s", cfg.OData.CircuitBreaker.Timeout)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Observability.LogLevel)
	}
	if cfg.Observability.Tracing.Exporter != "stdout" {
		t.Errorf("Tracing.Exporter = %q, want stdout", cfg.Observability.Tracing.Exporter)
	}
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load("testdata/nonexistent.yaml")
	if err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestLoad_empty_path_uses_defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoad_invalid_exporter(t *testing.T) {
	_, err := Load("testdata/invalid_exporter.yaml")
	if err == nil {
		t.Fatal("Load() with unsupported exporter should return error")
	}
}

func TestLoad_empty_namespace(t *testing.T) {
	_, err := Load("testdata/empty_namespace.yaml")
	if err == nil {
		t.Fatal("Load() with blank item attachment namespace should return error")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.OData.ItemAttachmentNamespace != DefaultItemAttachmentNamespace {
		t.Errorf("default ItemAttachmentNamespace = %q", cfg.OData.ItemAttachmentNamespace)
	}
	if !cfg.OData.Retry.IdempotentOnly {
		t.Error("default Retry.IdempotentOnly = false, want true")
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OUTLOOKBRIDGE_SERVER_PORT", "3000")
	t.Setenv("OUTLOOKBRIDGE_LOG_LEVEL", "error")
	t.Setenv("OUTLOOKBRIDGE_ODATA_TIMEOUT", "5s")
	t.Setenv("OUTLOOKBRIDGE_ODATA_ITEM_ATTACHMENT_NAMESPACE", "Microsoft.Graph")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000 (env override)", cfg.Server.Port)
	}
	if cfg.Observability.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error (env override)", cfg.Observability.LogLevel)
	}
	if cfg.OData.Timeout != 5*time.Second {
		t.Errorf("OData.Timeout = %v, want 5s (env override)", cfg.OData.Timeout)
	}
	if cfg.OData.ItemAttachmentNamespace != "Microsoft.Graph" {
		t.Errorf("ItemAttachmentNamespace = %q, want env override", cfg.OData.ItemAttachmentNamespace)
	}
}

func TestEnvOverrides_bad_duration_ignored(t *testing.T) {
	t.Setenv("OUTLOOKBRIDGE_ODATA_TIMEOUT", "soon")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OData.Timeout != 20*time.Second {
		t.Errorf("OData.Timeout = %v, want file value 20s", cfg.OData.Timeout)
	}
}

func TestValidate_invalid_port(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() with port 0 should return error")
	}
}

func TestValidate_error_rate_out_of_range(t *testing.T) {
	cfg := Defaults()
	cfg.OData.CircuitBreaker.ErrorRateThreshold = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with error rate 1.5 should return error")
	}
}

func TestEnvOverrides_replyTimeoutAndTracing(t *testing.T) {
	t.Setenv("OUTLOOKBRIDGE_REPLY_TIMEOUT", "45s")
	t.Setenv("OUTLOOKBRIDGE_TRACING_ENABLED", "true")
	t.Setenv("OUTLOOKBRIDGE_TRACING_ENDPOINT", "collector:4317")
	t.Setenv("OUTLOOKBRIDGE_LOG_FORMAT", "console")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.ReplyTimeout != 45*time.Second {
		t.Errorf("ReplyTimeout = %v, want 45s", cfg.Server.ReplyTimeout)
	}
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.Endpoint != "collector:4317" {
		t.Errorf("Tracing = %+v, want enabled with collector endpoint", cfg.Observability.Tracing)
	}
	if cfg.Observability.LogFormat != "console" {
		t.Errorf("LogFormat = %q, want console", cfg.Observability.LogFormat)
	}
}

func TestValidate_log_format(t *testing.T) {
	cfg := Defaults()
	cfg.Observability.LogFormat = "xml"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with log_format xml should return error")
	}
}
