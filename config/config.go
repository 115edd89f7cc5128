package config

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/contextfit/budget"
	"github.com/BaSui01/contextfit/policy"
	"github.com/BaSui01/contextfit/types"
)

// Config is the complete assembly configuration: the target model's window,
// the bucket set, additional policies, and the ambient logging, telemetry
// and metrics settings.
type Config struct {
	// Model describes the window of the model the context is built for.
	Model ModelConfig `yaml:"model" json:"model" env:"MODEL"`

	// SystemOverhead reserves tokens for framing the provider adds around
	// the assembled context: message envelopes, separators, stop sequences.
	SystemOverhead int `yaml:"system_overhead" json:"system_overhead" env:"SYSTEM_OVERHEAD"`

	// Buckets replaces the builtin bucket set when non-empty.
	Buckets []types.Bucket `yaml:"buckets,omitempty" json:"buckets,omitempty" env:"-"`

	// Policies are registered on top of the builtin policies. A spec whose
	// name collides with a builtin replaces it.
	Policies []policy.Spec `yaml:"policies,omitempty" json:"policies,omitempty" env:"-"`

	// Log configures the zap logger shared by all components.
	Log LogConfig `yaml:"log" json:"log" env:"LOG"`

	// Telemetry configures the OTLP trace and metric exporters.
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry" env:"TELEMETRY"`

	// Metrics configures the Prometheus collector.
	Metrics MetricsConfig `yaml:"metrics" json:"metrics" env:"METRICS"`

	// Cache configures the Redis summary cache.
	Cache CacheConfig `yaml:"cache" json:"cache" env:"CACHE"`
}

// ModelConfig describes the context window being filled.
type ModelConfig struct {
	// Name selects the tokenizer encoding.
	Name string `yaml:"name" json:"name" env:"NAME"`

	// ContextLimit is the model's total window in tokens.
	ContextLimit int `yaml:"context_limit" json:"context_limit" env:"CONTEXT_LIMIT"`

	// OutputTarget is the expected response length in tokens.
	OutputTarget int `yaml:"output_target" json:"output_target" env:"OUTPUT_TARGET"`

	// OutputHeadroom pads the target against responses that run long.
	OutputHeadroom int `yaml:"output_headroom" json:"output_headroom" env:"OUTPUT_HEADROOM"`
}

// OutputBudget is the total output reservation: target plus headroom.
func (m ModelConfig) OutputBudget() int {
	return m.OutputTarget + m.OutputHeadroom
}

// Limits translates the model block and the system overhead into the
// limits the allocator consumes.
func (c *Config) Limits() budget.Limits {
	return budget.Limits{
		ContextLimit: c.Model.ContextLimit,
		OutputBudget: c.Model.OutputBudget(),
		Overhead:     c.SystemOverhead,
	}
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level" env:"LEVEL"`

	// Format is json or console.
	Format string `yaml:"format" json:"format" env:"FORMAT"`

	// OutputPaths are zap sink URLs. Defaults to stdout.
	OutputPaths []string `yaml:"output_paths" json:"output_paths" env:"OUTPUT_PATHS"`

	// EnableCaller annotates entries with the calling source location.
	EnableCaller bool `yaml:"enable_caller" json:"enable_caller" env:"ENABLE_CALLER"`

	// EnableStacktrace attaches stacktraces to error-level entries.
	EnableStacktrace bool `yaml:"enable_stacktrace" json:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// BuildLogger constructs a zap logger from the block. Unknown levels fall
// back to info; Validate reports them.
func (c LogConfig) BuildLogger() (*zap.Logger, error) {
	var level zapcore.Level
	switch c.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoding := "json"
	var encoderConfig zapcore.EncoderConfig
	if c.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := c.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	var opts []zap.Option
	if c.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if c.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zapConfig.Build(opts...)
}

// TelemetryConfig configures OTLP export of traces and metrics.
type TelemetryConfig struct {
	// Enabled turns export on. When false the SDK is not initialized and
	// spans are no-ops.
	Enabled bool `yaml:"enabled" json:"enabled" env:"ENABLED"`

	// OTLPEndpoint is the gRPC collector endpoint.
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint" env:"OTLP_ENDPOINT"`

	// ServiceName identifies this process in traces.
	ServiceName string `yaml:"service_name" json:"service_name" env:"SERVICE_NAME"`

	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" env:"ENABLED"`

	// Namespace prefixes every metric name. Defaults to contextfit.
	Namespace string `yaml:"namespace" json:"namespace" env:"NAMESPACE"`
}

// CacheConfig configures the Redis cache in front of the abstractive
// summarizer. It only takes effect when a summarizer is installed.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" env:"ENABLED"`

	// Addr is the Redis host:port.
	Addr string `yaml:"addr" json:"addr" env:"ADDR"`

	Password string `yaml:"password,omitempty" json:"password,omitempty" env:"PASSWORD"`
	DB       int    `yaml:"db" json:"db" env:"DB"`

	// TTL bounds how long cached summaries stay valid.
	TTL time.Duration `yaml:"ttl" json:"ttl" env:"TTL"`
}

// Validate checks the whole configuration and reports every issue found in
// a single CONFIG_ERROR. Policy specs are validated when they are
// registered on an engine, where the base bucket set is known.
func (c *Config) Validate() error {
	var issues []string

	if c.Model.ContextLimit <= 0 {
		issues = append(issues, "model context_limit must be positive")
	}
	if c.Model.OutputTarget < 0 {
		issues = append(issues, "model output_target must be >= 0")
	}
	if c.Model.OutputHeadroom < 0 {
		issues = append(issues, "model output_headroom must be >= 0")
	}
	if c.Model.ContextLimit > 0 && c.Model.OutputBudget() >= c.Model.ContextLimit {
		issues = append(issues, "model output budget exceeds the context limit")
	}
	if c.SystemOverhead < 0 {
		issues = append(issues, "system_overhead must be >= 0")
	}

	seen := make(map[types.BucketID]bool, len(c.Buckets))
	for i := range c.Buckets {
		b := c.Buckets[i]
		if err := b.Validate(); err != nil {
			issues = append(issues, issueText(err))
			continue
		}
		if seen[b.ID] {
			issues = append(issues, "duplicate bucket "+string(b.ID))
		}
		seen[b.ID] = true
	}

	for _, spec := range c.Policies {
		if spec.Name == "" {
			issues = append(issues, "policy with empty name")
		}
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, "unknown log level "+c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		issues = append(issues, "unknown log format "+c.Log.Format)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		issues = append(issues, "telemetry sample_rate must be in [0, 1]")
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		issues = append(issues, "cache enabled without an addr")
	}
	if c.Cache.TTL < 0 {
		issues = append(issues, "cache ttl must be >= 0")
	}
	if c.Cache.DB < 0 {
		issues = append(issues, "cache db must be >= 0")
	}

	if len(issues) > 0 {
		return types.NewConfigError("invalid configuration: %s", strings.Join(issues, "; "))
	}
	return nil
}

// issueText strips the error code prefix so validation issues read as a
// flat list.
func issueText(err error) string {
	var te *types.Error
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}
