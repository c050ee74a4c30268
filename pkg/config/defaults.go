package config

// Stress harness defaults.
const (
	DefaultStressSeeds       = 16
	DefaultStressSeedBase    = 1
	DefaultStressOps         = 100000
	DefaultStressKeySpace    = 4096
	DefaultStressRemoveRatio = 0.35
	DefaultStressLookupRatio = 0.25
	DefaultStressCheckEvery  = 64
	DefaultStressSaveDir     = ""
)

// Benchmark defaults.
const (
	DefaultBenchSeed  = 1
	DefaultBenchChart = ""
)

// DefaultBenchSizes are the map sizes measured by default.
var DefaultBenchSizes = []int{1000, 10000, 100000, 1000000}

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = LogFormatText
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Telemetry defaults.
const (
	DefaultTelemetryEnvironment = "dev"
	DefaultTelemetrySampleRatio = 1.0
)
