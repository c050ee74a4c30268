// Package observability wires OpenTelemetry tracing, metrics and structured
// logging for the rbmap tools.
package observability

import "log/slog"

// AppMode identifies which rbmap subcommand is running.
type AppMode string

const (
	// ModeStress is the randomized differential stress run.
	ModeStress AppMode = "stress"
	// ModeBench is the benchmark run.
	ModeBench AppMode = "bench"
	// ModeReplay replays a saved operation log.
	ModeReplay AppMode = "replay"
)

const (
	defaultServiceName = "rbmap"

	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "ci", "dev").
	Environment string

	// Mode identifies the subcommand.
	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables OTLP export.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the exporters.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// SampleRatio is the trace sampling ratio in (0, 1]. Zero samples everything.
	SampleRatio float64

	// MetricsAddr is the listen address for the Prometheus /metrics endpoint.
	// Empty keeps the endpoint off.
	MetricsAddr string

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// ShutdownTimeoutSec is the maximum seconds to wait for flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeStress,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
