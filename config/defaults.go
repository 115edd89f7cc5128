package config

import "time"

// Default returns the default configuration: a gpt-4 class window with a
// 1500 token output reservation, the builtin bucket set and policies, and
// observability switched off.
func Default() *Config {
	return &Config{
		Model:          DefaultModel(),
		SystemOverhead: 200,
		Log:            DefaultLog(),
		Telemetry:      DefaultTelemetry(),
		Metrics:        DefaultMetrics(),
		Cache:          DefaultCache(),
	}
}

// DefaultModel returns the default model block. Buckets and policies are
// left empty so the engine's builtin set applies.
func DefaultModel() ModelConfig {
	return ModelConfig{
		Name:           "gpt-4",
		ContextLimit:   8192,
		OutputTarget:   1200,
		OutputHeadroom: 300,
	}
}

// DefaultLog returns the default logging block.
func DefaultLog() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetry returns the default telemetry block, disabled.
func DefaultTelemetry() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "contextfit",
		SampleRate:   0.1,
	}
}

// DefaultMetrics returns the default metrics block, disabled.
func DefaultMetrics() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "contextfit",
	}
}

// DefaultCache returns the default summary cache block, disabled.
func DefaultCache() CacheConfig {
	return CacheConfig{
		Enabled: false,
		Addr:    "localhost:6379",
		DB:      0,
		TTL:     10 * time.Minute,
	}
}
