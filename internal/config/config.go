// Package config loads and validates the load generator settings from
// command-line flags, environment variables and an optional config file.
package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	TracingProtocolGRPC = "grpc"
	TracingProtocolHTTP = "http"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Defaults applied when neither a flag, an environment variable nor the
// config file provides a value.
const (
	DefaultThreadCount       = 4
	DefaultRequestsPerThread = 100
	DefaultDelayDuration     = 0
	DefaultBurstSize         = 1
	DefaultPrintOnIteration  = 1
)

// Thresholds above which Warnings asks the operator to confirm authorization.
const (
	highThreadCount   = 500
	highTotalRequests = 1_000_000
)

// MaxDelayDuration is the largest delay, in milliseconds, that still fits in
// a time.Duration.
const MaxDelayDuration = math.MaxInt64 / int64(time.Millisecond)

// EnvOTLPEndpoint is the standard OpenTelemetry variable consulted when no
// tracing endpoint is configured.
const EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"

type Config struct {
	TargetURL         string        `mapstructure:"target"`
	KeepAlive         bool          `mapstructure:"keep_alive"`
	ControlThread     bool          `mapstructure:"control_thread"`
	ThreadCount       int           `mapstructure:"thread_count"`
	RequestsPerThread int           `mapstructure:"requests_per_thread"`
	DelayDuration     int           `mapstructure:"delay_duration"` // milliseconds
	BurstSize         int           `mapstructure:"burst_size"`
	PrintOnIteration  int           `mapstructure:"print_on_iteration"`
	Timeout           time.Duration `mapstructure:"timeout"`
	LogFormat         string        `mapstructure:"log_format"`
	ConfigFile        string        `mapstructure:"-"`
	Tracing           TracingConfig `mapstructure:"tracing"`
}

// TracingConfig configures OTLP export of per-request spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   bool    `mapstructure:"propagate"` // inject W3C traceparent headers
}

// ResolvedEndpoint returns the configured endpoint, falling back to
// OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) ResolvedEndpoint() string {
	if endpoint := strings.TrimSpace(t.Endpoint); endpoint != "" {
		return endpoint
	}
	return strings.TrimSpace(os.Getenv(EnvOTLPEndpoint))
}

// Enabled reports whether an exporter endpoint is configured, either
// directly or through the environment.
func (t TracingConfig) Enabled() bool {
	return t.ResolvedEndpoint() != ""
}

// Delay converts DelayDuration to a time.Duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.DelayDuration) * time.Millisecond
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if u, err := url.Parse(target); err != nil {
		issues = append(issues, fmt.Sprintf("target %q is not a valid URL: %v", target, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		issues = append(issues, fmt.Sprintf("target %q must use the http or https scheme", target))
	} else if u.Host == "" {
		issues = append(issues, fmt.Sprintf("target %q has no host", target))
	}

	if c.ThreadCount < 0 {
		issues = append(issues, "thread-count must be >= 0")
	}
	if c.RequestsPerThread < 0 {
		issues = append(issues, "requests-per-thread must be >= 0")
	}
	if c.DelayDuration < 0 {
		issues = append(issues, "delay-duration must be >= 0")
	} else if int64(c.DelayDuration) > MaxDelayDuration {
		issues = append(issues, fmt.Sprintf("delay-duration must be <= %d milliseconds", MaxDelayDuration))
	}
	if c.BurstSize < 0 {
		issues = append(issues, "burst-size must be >= 0")
	}
	if c.PrintOnIteration < 0 {
		issues = append(issues, "print-on-iteration must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", LogFormatText, LogFormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("log-format must be %q or %q, got %q", LogFormatText, LogFormatJSON, c.LogFormat))
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Warnings lists settings that are valid but deserve the operator's attention.
func (c Config) Warnings() []string {
	var warnings []string
	if c.ThreadCount > highThreadCount {
		warnings = append(warnings, fmt.Sprintf("High thread count configured (%d threads). Ensure you have authorization to test the target system.", c.ThreadCount))
	}
	if total := int64(c.ThreadCount) * int64(c.RequestsPerThread); total > highTotalRequests {
		warnings = append(warnings, fmt.Sprintf("High request volume configured (%d requests). Ensure you have authorization to test the target system.", total))
	}
	if c.ControlThread && c.DelayDuration == 0 && c.BurstSize <= 1 {
		warnings = append(warnings, "Control thread enabled with no worker delay; the control thread adds unpaced load on top of the workers.")
	}
	if c.Tracing.Enabled() && c.Tracing.Insecure {
		warnings = append(warnings, "Tracing exporter TLS is DISABLED (insecure: true).")
	}
	return warnings
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", TracingProtocolGRPC, TracingProtocolHTTP:
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be %q or %q, got %q", TracingProtocolGRPC, TracingProtocolHTTP, t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
