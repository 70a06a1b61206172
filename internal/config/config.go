package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type Config struct {
	TargetURL   string            `mapstructure:"target"`
	Headers     map[string]string `mapstructure:"headers"`
	Users       int               `mapstructure:"users"`
	SpawnRate   float64           `mapstructure:"spawn_rate"`
	Duration    time.Duration     `mapstructure:"duration"`
	Total       int               `mapstructure:"total"`
	Rate        int               `mapstructure:"rate"`
	Arrival     ArrivalConfig     `mapstructure:"arrival"`
	WaitMin     time.Duration     `mapstructure:"wait_min"`
	WaitMax     time.Duration     `mapstructure:"wait_max"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Seed        int64             `mapstructure:"seed"`
	Output      OutputFormat      `mapstructure:"output"`
	CSVFile     string            `mapstructure:"csv"`
	Dashboard   bool              `mapstructure:"dashboard"`
	LogErrors   bool              `mapstructure:"log_errors"`
	LogLevel    string            `mapstructure:"log_level"`
	LogFormat   string            `mapstructure:"log_format"`
	MetricsAddr string            `mapstructure:"metrics_addr"`
	Thresholds  []string          `mapstructure:"thresholds"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	ConfigFile  string            `mapstructure:"-"`
}

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model"`
}

// TracingConfig controls OpenTelemetry export. An empty Endpoint falls back
// to OTEL_EXPORTER_OTLP_ENDPOINT.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   bool    `mapstructure:"propagate"`
	ServiceName string  `mapstructure:"service_name"`
}

// Enabled reports whether any tracing behaviour was requested.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || t.Propagate
}

func (t TracingConfig) ShouldPropagate() bool {
	return t.Propagate
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

	if strings.TrimSpace(c.TargetURL) == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if u, err := url.Parse(c.TargetURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		issues = append(issues, fmt.Sprintf("target %q must be an absolute http(s) URL", c.TargetURL))
	}

	if c.Users < 1 {
		issues = append(issues, "users must be >= 1")
	}
	if c.SpawnRate < 0 {
		issues = append(issues, "spawn-rate must be >= 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Total < 0 {
		issues = append(issues, "total must be >= 0")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.WaitMin < 0 || c.WaitMax < 0 {
		issues = append(issues, "wait times must be >= 0")
	}
	if c.WaitMax < c.WaitMin {
		issues = append(issues, "wait-max must be >= wait-min")
	}

	switch c.Arrival.Model {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival model %q is not supported (use uniform or poisson)", c.Arrival.Model))
	}
	if c.Arrival.Model == ArrivalModelPoisson && c.Rate == 0 {
		issues = append(issues, "poisson arrival requires rate > 0")
	}

	switch c.Output {
	case "", OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output %q is not supported (use text, json or yaml)", c.Output))
	}

	if c.Dashboard && c.Output != "" && c.Output != OutputText {
		issues = append(issues, "dashboard requires text output")
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("log format %q is not supported (use text or json)", c.LogFormat))
	}

	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol %q is not supported (use grpc or http)", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing sample rate must be between 0 and 1")
	}
	return issues
}

// Warnings returns non-fatal advisories about the configuration.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Users > 1000 {
		warnings = append(warnings, fmt.Sprintf("high user count configured (%d). Ensure you have authorization to test the target system.", c.Users))
	}
	if c.Duration == 0 && c.Total == 0 {
		warnings = append(warnings, "no duration or total set; the run continues until interrupted")
	}
	if c.WaitMax == 0 && c.Rate == 0 {
		warnings = append(warnings, "zero wait time and no rate cap; users issue requests back-to-back at maximum throughput")
	}
	return warnings
}
