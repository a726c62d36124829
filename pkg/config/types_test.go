package config

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(Duration(90 * time.Second))
	if err != nil {
		t.Fatalf("Failed to marshal duration: %v", err)
	}

	if strings.TrimSpace(string(out)) != "1m30s" {
		t.Errorf("Expected '1m30s', got '%s'", strings.TrimSpace(string(out)))
	}

	var d Duration
	if err := yaml.Unmarshal(out, &d); err != nil {
		t.Fatalf("Failed to unmarshal duration: %v", err)
	}

	if d.Duration() != 90*time.Second {
		t.Errorf("Expected 90s, got %v", d.Duration())
	}
}

func TestToTelemetry(t *testing.T) {
	cfg := Default()
	cfg.Robot.Name = "rover-2"
	cfg.Robot.Environment = "production"
	cfg.Telemetry.Logging.Level = "debug"
	cfg.Telemetry.Logging.Format = "json"
	cfg.Telemetry.Tracing.Enabled = true
	cfg.Telemetry.Tracing.Exporter = "otlp"
	cfg.Telemetry.Tracing.Endpoint = "localhost:4317"
	cfg.Telemetry.Events.FlushInterval = Duration(2 * time.Second)

	tc := cfg.ToTelemetry("1.2.3")

	if tc.ServiceName != "rove" {
		t.Errorf("Expected service name 'rove', got '%s'", tc.ServiceName)
	}

	if tc.ServiceVersion != "1.2.3" {
		t.Errorf("Expected service version '1.2.3', got '%s'", tc.ServiceVersion)
	}

	if tc.Environment != "production" {
		t.Errorf("Expected environment 'production', got '%s'", tc.Environment)
	}

	if tc.ResourceAttributes["robot.name"] != "rover-2" {
		t.Errorf("Expected robot.name attribute 'rover-2', got '%s'", tc.ResourceAttributes["robot.name"])
	}

	if tc.Logging.Level != "debug" || tc.Logging.Format != "json" {
		t.Errorf("Unexpected logging config: %+v", tc.Logging)
	}

	if !tc.Tracing.Enabled || tc.Tracing.Exporter != "otlp" || tc.Tracing.Endpoint != "localhost:4317" {
		t.Errorf("Unexpected tracing config: %+v", tc.Tracing)
	}

	if tc.Events.FlushInterval != 2*time.Second {
		t.Errorf("Expected flush interval 2s, got %v", tc.Events.FlushInterval)
	}

	if err := tc.Validate(); err != nil {
		t.Errorf("Converted telemetry config should validate: %v", err)
	}
}

func TestToTelemetryDefaultVersion(t *testing.T) {
	tc := Default().ToTelemetry("")

	if tc.ServiceVersion != "dev" {
		t.Errorf("Expected service version 'dev', got '%s'", tc.ServiceVersion)
	}
}

func TestStoreConfig(t *testing.T) {
	jc := JournalConfig{
		Enabled:         true,
		Path:            "episodes.db",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: Duration(time.Minute),
	}

	sc := jc.StoreConfig()

	if sc.Path != "episodes.db" {
		t.Errorf("Expected path 'episodes.db', got '%s'", sc.Path)
	}

	if sc.MaxOpenConns != 10 || sc.MaxIdleConns != 2 {
		t.Errorf("Unexpected pool sizes: %+v", sc)
	}

	if sc.ConnMaxLifetime != time.Minute {
		t.Errorf("Expected conn max lifetime 1m, got %v", sc.ConnMaxLifetime)
	}
}
