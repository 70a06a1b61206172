package config

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "searchload",
		Short:         "Drive randomized product search queries at a target host",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(out)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	flags.String("target", "", "Base URL of the search service (e.g. http://localhost:8080)")
	flags.StringArray("header", nil, "Additional request header in key=value form (repeatable)")

	// Load shape
	flags.IntP("users", "u", 1, "Number of simulated users")
	flags.Float64P("spawn-rate", "s", 1, "Users started per second (0 starts all users at once)")
	flags.DurationP("duration", "d", 0, "How long to run the test (e.g. 30s, 1m)")
	flags.IntP("total", "t", 0, "Total number of requests to send (0 means unlimited)")
	flags.IntP("rate", "r", 0, "Global requests per second cap (0 means unlimited)")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model when a rate cap is set (uniform or poisson)")
	flags.Duration("wait-min", 0, "Minimum think time between a user's requests")
	flags.Duration("wait-max", 0, "Maximum think time between a user's requests")
	flags.Duration("timeout", 30*time.Second, "Per-request timeout")
	flags.Int64("seed", 0, "Random seed for query selection (0 seeds from the clock)")

	// Output
	flags.StringP("output", "o", string(OutputText), "Report format: text, json or yaml")
	flags.Bool("dashboard", false, "Show a live terminal dashboard instead of the progress line")
	flags.String("csv", "", "Write per-name request statistics as CSV to this path")
	flags.Bool("log-errors", false, "Log each failed request")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("metrics-addr", "", "Serve live Prometheus metrics on this address (e.g. :9090)")
	flags.StringArray("threshold", nil, "Pass/fail threshold (repeatable, e.g. 'req_duration:p95 < 500')")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests to trace (0.0-1.0)")
	flags.Bool("tracing-propagate", false, "Inject W3C trace context headers into requests")
	flags.String("tracing-service-name", "", "Service name reported in spans")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies explicitly set flags on top of file settings.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetString(name)
		}
	}
	integer := func(name string, dst *int) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetInt(name)
		}
	}
	float := func(name string, dst *float64) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetFloat64(name)
		}
	}
	duration := func(name string, dst *time.Duration) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetDuration(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetBool(name)
		}
	}

	str("target", &cfg.TargetURL)
	integer("users", &cfg.Users)
	float("spawn-rate", &cfg.SpawnRate)
	duration("duration", &cfg.Duration)
	integer("total", &cfg.Total)
	integer("rate", &cfg.Rate)
	duration("wait-min", &cfg.WaitMin)
	duration("wait-max", &cfg.WaitMax)
	duration("timeout", &cfg.Timeout)
	str("csv", &cfg.CSVFile)
	boolean("dashboard", &cfg.Dashboard)
	boolean("log-errors", &cfg.LogErrors)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("metrics-addr", &cfg.MetricsAddr)
	str("tracing-endpoint", &cfg.Tracing.Endpoint)
	str("tracing-protocol", &cfg.Tracing.Protocol)
	boolean("tracing-insecure", &cfg.Tracing.Insecure)
	float("tracing-sample-rate", &cfg.Tracing.SampleRate)
	boolean("tracing-propagate", &cfg.Tracing.Propagate)
	str("tracing-service-name", &cfg.Tracing.ServiceName)
	if err != nil {
		return err
	}

	if fs.Changed("seed") {
		if cfg.Seed, err = fs.GetInt64("seed"); err != nil {
			return err
		}
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(val)
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = OutputFormat(val)
	}
	if fs.Changed("threshold") {
		vals, err := fs.GetStringArray("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append(cfg.Thresholds, vals...)
	}

	vals, err := fs.GetStringArray("header")
	if err != nil {
		return err
	}
	for _, entry := range vals {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return fmt.Errorf("header must be in key=value format: %s", entry)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		cfg.Headers[http.CanonicalHeaderKey(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return nil
}
