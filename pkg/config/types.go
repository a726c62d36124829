package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openrove/openrove/pkg/goal"
	"github.com/openrove/openrove/pkg/journal"
	"github.com/openrove/openrove/pkg/telemetry"
)

// Duration is a time.Duration that unmarshals from YAML strings in Go
// syntax, such as "500ms", "30s" or "5m".
type Duration time.Duration

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the root configuration for a rove process. Every section has
// a working default; an empty file is a valid configuration.
type Config struct {
	// Robot identifies this robot and its deployment environment.
	Robot RobotConfig `yaml:"robot"`

	// Executive tunes the goal executive's tolerances and retry limits.
	Executive ExecutiveConfig `yaml:"executive"`

	// Resolvers declares Starlark designator resolvers loaded at startup.
	Resolvers []ResolverConfig `yaml:"resolvers" validate:"dive"`

	// Mission tunes the mission scheduler.
	Mission MissionConfig `yaml:"mission"`

	// Policy configures the action policy gate.
	Policy PolicyConfig `yaml:"policy"`

	// Journal configures episode persistence.
	Journal JournalConfig `yaml:"journal"`

	// Telemetry configures logging, metrics, tracing and events.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RobotConfig identifies the robot.
type RobotConfig struct {
	// Name of this robot instance, reported in telemetry.
	Name string `yaml:"name" validate:"required"`

	// Environment the robot runs in. Policies receive it as evaluation
	// input, so rules can be stricter outside simulation.
	Environment string `yaml:"environment" validate:"omitempty,oneof=simulation lab production"`
}

// ExecutiveConfig tunes the goal executive. Zero values select the
// executive's built-in defaults.
type ExecutiveConfig struct {
	// PoseTolerance is how close the robot must be to a target pose, in
	// meters, for the location to count as reached.
	PoseTolerance float64 `yaml:"pose_tolerance" validate:"gte=0"`

	// AtLocationRetryLimit bounds how often navigation is re-triggered
	// after a reached location is lost again.
	AtLocationRetryLimit int `yaml:"at_location_retry_limit" validate:"gte=0"`

	// NavigationRetryLimit bounds how many alternative candidate poses
	// are tried when a navigation target is unreachable.
	NavigationRetryLimit int `yaml:"navigation_retry_limit" validate:"gte=0"`

	// ManipulationRetryLimit bounds grasp retries.
	ManipulationRetryLimit int `yaml:"manipulation_retry_limit" validate:"gte=0"`

	// PerceptionRetryLimit bounds re-perception attempts when an object
	// designator does not resolve.
	PerceptionRetryLimit int `yaml:"perception_retry_limit" validate:"gte=0"`

	// BeliefTTL is how long an object sighting stays valid without being
	// re-observed. Zero selects the world model default.
	BeliefTTL Duration `yaml:"belief_ttl" validate:"gte=0"`
}

// ResolverConfig declares a Starlark designator resolver. The script file
// is read at startup and registered under the given name.
type ResolverConfig struct {
	// Name the resolver is registered under. Designators select a
	// resolver by this name.
	Name string `yaml:"name" validate:"required"`

	// Script is the path to the Starlark source file.
	Script string `yaml:"script" validate:"required"`

	// Timeout bounds a single script evaluation. Zero selects the
	// resolver default.
	Timeout Duration `yaml:"timeout" validate:"gte=0"`
}

// MissionConfig tunes the mission scheduler.
type MissionConfig struct {
	// MaxConcurrent bounds how many mission steps run in parallel. Zero
	// selects the scheduler default.
	MaxConcurrent int `yaml:"max_concurrent" validate:"gte=0"`

	// StepTimeout bounds a single mission step. Zero disables the
	// per-step timeout.
	StepTimeout Duration `yaml:"step_timeout" validate:"gte=0"`
}

// PolicyConfig configures the action policy gate.
type PolicyConfig struct {
	// Enabled controls whether actions are checked against policies at
	// all. The built-in safety policies are active whenever this is on.
	Enabled bool `yaml:"enabled"`

	// Paths lists extra policy files or directories loaded on top of
	// the built-in policies.
	Paths []string `yaml:"paths"`

	// Mode selects what a violation does: advisory logs and continues,
	// enforcing blocks the action.
	Mode string `yaml:"mode" validate:"omitempty,oneof=advisory enforcing"`

	// Watch reloads policies from Paths when the files change.
	Watch bool `yaml:"watch"`
}

// JournalConfig configures episode persistence.
type JournalConfig struct {
	// Enabled controls whether episodes, tasks and events are recorded.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file. ":memory:" keeps the journal
	// in memory.
	Path string `yaml:"path"`

	// PruneAfter is how long events are retained. Zero disables
	// pruning.
	PruneAfter Duration `yaml:"prune_after" validate:"gte=0"`

	// Connection pool settings. Zero values select the store defaults.
	MaxOpenConns    int      `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int      `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime" validate:"gte=0"`
}

// StoreConfig converts the section into a journal store configuration.
func (c JournalConfig) StoreConfig() journal.Config {
	return journal.Config{
		Path:            c.Path,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime.Duration(),
	}
}

// TelemetryConfig configures the observability stack. It mirrors the
// telemetry package configuration with YAML tags; ToTelemetry converts it.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Events  EventsConfig  `yaml:"events"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level.
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`

	// Format is console or json.
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`

	// Output is stdout, stderr or a file path.
	Output string `yaml:"output"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// ListenAddress for the metrics HTTP endpoint.
	ListenAddress string `yaml:"listen_address"`
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is otlp, stdout or none.
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`

	// Endpoint for the OTLP exporter, such as "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// SamplingRate between 0.0 and 1.0.
	SamplingRate float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`

	// Insecure disables TLS for the exporter connection.
	Insecure bool `yaml:"insecure"`
}

// EventsConfig configures the event publisher.
type EventsConfig struct {
	Enabled       bool     `yaml:"enabled"`
	BufferSize    int      `yaml:"buffer_size" validate:"gte=0"`
	FlushInterval Duration `yaml:"flush_interval" validate:"gte=0"`
	MaxBatchSize  int      `yaml:"max_batch_size" validate:"gte=0"`
	EnableAsync   bool     `yaml:"enable_async"`
}

// ToTelemetry converts the configuration into a telemetry configuration
// for the given build version.
func (c *Config) ToTelemetry(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()

	if version != "" {
		tc.ServiceVersion = version
	}
	if c.Robot.Environment != "" {
		tc.Environment = c.Robot.Environment
	}
	if c.Robot.Name != "" {
		tc.ResourceAttributes["robot.name"] = c.Robot.Name
	}

	tc.Logging.Level = c.Telemetry.Logging.Level
	tc.Logging.Format = c.Telemetry.Logging.Format
	tc.Logging.Output = c.Telemetry.Logging.Output

	tc.Metrics.Enabled = c.Telemetry.Metrics.Enabled
	tc.Metrics.ListenAddress = c.Telemetry.Metrics.ListenAddress

	tc.Tracing.Enabled = c.Telemetry.Tracing.Enabled
	tc.Tracing.Exporter = c.Telemetry.Tracing.Exporter
	tc.Tracing.Endpoint = c.Telemetry.Tracing.Endpoint
	tc.Tracing.SamplingRate = c.Telemetry.Tracing.SamplingRate
	tc.Tracing.Insecure = c.Telemetry.Tracing.Insecure

	tc.Events.Enabled = c.Telemetry.Events.Enabled
	tc.Events.BufferSize = c.Telemetry.Events.BufferSize
	tc.Events.FlushInterval = c.Telemetry.Events.FlushInterval.Duration()
	tc.Events.MaxBatchSize = c.Telemetry.Events.MaxBatchSize
	tc.Events.EnableAsync = c.Telemetry.Events.EnableAsync

	return tc
}

// Default returns the default configuration. Load decodes user files on
// top of it, so omitted fields keep these values.
func Default() *Config {
	return &Config{
		Robot: RobotConfig{
			Name:        "rove",
			Environment: "simulation",
		},
		Executive: ExecutiveConfig{
			PoseTolerance:          goal.DefaultPoseTolerance,
			AtLocationRetryLimit:   goal.DefaultAtLocationRetryLimit,
			NavigationRetryLimit:   goal.DefaultNavigationRetryLimit,
			ManipulationRetryLimit: goal.DefaultManipulationRetryLimit,
			PerceptionRetryLimit:   goal.DefaultPerceptionRetryLimit,
		},
		Mission: MissionConfig{
			MaxConcurrent: 2,
			StepTimeout:   Duration(5 * time.Minute),
		},
		Policy: PolicyConfig{
			Enabled: true,
			Mode:    "enforcing",
		},
		Journal: JournalConfig{
			Enabled:    true,
			Path:       "rove.db",
			PruneAfter: Duration(7 * 24 * time.Hour),
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "console",
				Output: "stdout",
			},
			Metrics: MetricsConfig{
				Enabled:       true,
				ListenAddress: ":9090",
			},
			Tracing: TracingConfig{
				Enabled:      false,
				Exporter:     "stdout",
				SamplingRate: 1.0,
			},
			Events: EventsConfig{
				Enabled:       true,
				BufferSize:    1000,
				FlushInterval: Duration(5 * time.Second),
				MaxBatchSize:  100,
				EnableAsync:   true,
			},
		},
	}
}
