package config

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct {
	out io.Writer
}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a Loader that prints help to stdout.
func NewLoader() *Loader {
	return &Loader{out: os.Stdout}
}

// NewLoaderWithOutput creates a Loader that prints help to w.
func NewLoaderWithOutput(w io.Writer) *Loader {
	if w == nil {
		w = io.Discard
	}
	return &Loader{out: w}
}

// Load parses command-line arguments and an optional configuration file.
// Flags win over file settings.
func (l *Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand(l.out)
	flagSet := cmd.Flags()
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	configPath, err := flagSet.GetString("config")
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfg := defaultConfig()
	cfg.ConfigFile = configPath

	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
		if err := applyConfigSettings(cfg, v.AllSettings()); err != nil {
			return nil, fmt.Errorf("config %s: %w", configPath, err)
		}
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(string(cfg.Arrival.Model))))
	cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(string(cfg.Output))))
	if cfg.Arrival.Model == "" {
		cfg.Arrival.Model = ArrivalModelUniform
	}
	if cfg.Output == "" {
		cfg.Output = OutputText
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Headers:   map[string]string{},
		Users:     1,
		SpawnRate: 1,
		Timeout:   30 * time.Second,
		Arrival:   ArrivalConfig{Model: ArrivalModelUniform},
		Output:    OutputText,
		LogLevel:  "info",
		LogFormat: "text",
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	type field struct {
		keys  []string
		apply func(interface{}) error
	}
	fields := []field{
		{[]string{"target", "host"}, func(raw interface{}) (err error) {
			cfg.TargetURL, err = asString(raw)
			return err
		}},
		{[]string{"headers"}, func(raw interface{}) error {
			hdrs, err := asStringMap(raw)
			if err != nil {
				return err
			}
			for k, v := range hdrs {
				cfg.Headers[http.CanonicalHeaderKey(k)] = v
			}
			return nil
		}},
		{[]string{"users"}, func(raw interface{}) (err error) {
			cfg.Users, err = asInt(raw)
			return err
		}},
		{[]string{"spawn_rate", "spawnrate", "spawn-rate"}, func(raw interface{}) (err error) {
			cfg.SpawnRate, err = asFloat64(raw)
			return err
		}},
		{[]string{"duration", "run_time"}, func(raw interface{}) (err error) {
			cfg.Duration, err = asDuration(raw)
			return err
		}},
		{[]string{"total"}, func(raw interface{}) (err error) {
			cfg.Total, err = asInt(raw)
			return err
		}},
		{[]string{"rate"}, func(raw interface{}) (err error) {
			cfg.Rate, err = asInt(raw)
			return err
		}},
		{[]string{"arrival_model", "arrival-model"}, func(raw interface{}) error {
			s, err := asString(raw)
			cfg.Arrival.Model = ArrivalModel(s)
			return err
		}},
		{[]string{"arrival"}, func(raw interface{}) error {
			m, err := toStringKeyMap(raw)
			if err != nil {
				return err
			}
			if model, ok := m["model"]; ok {
				s, err := asString(model)
				if err != nil {
					return err
				}
				cfg.Arrival.Model = ArrivalModel(s)
			}
			return nil
		}},
		{[]string{"wait_min", "wait-min"}, func(raw interface{}) (err error) {
			cfg.WaitMin, err = asDuration(raw)
			return err
		}},
		{[]string{"wait_max", "wait-max"}, func(raw interface{}) (err error) {
			cfg.WaitMax, err = asDuration(raw)
			return err
		}},
		{[]string{"timeout"}, func(raw interface{}) (err error) {
			cfg.Timeout, err = asDuration(raw)
			return err
		}},
		{[]string{"seed"}, func(raw interface{}) (err error) {
			cfg.Seed, err = asInt64(raw)
			return err
		}},
		{[]string{"output"}, func(raw interface{}) error {
			s, err := asString(raw)
			cfg.Output = OutputFormat(s)
			return err
		}},
		{[]string{"csv"}, func(raw interface{}) (err error) {
			cfg.CSVFile, err = asString(raw)
			return err
		}},
		{[]string{"dashboard"}, func(raw interface{}) (err error) {
			cfg.Dashboard, err = asBool(raw)
			return err
		}},
		{[]string{"log_errors", "logerrors", "log-errors"}, func(raw interface{}) (err error) {
			cfg.LogErrors, err = asBool(raw)
			return err
		}},
		{[]string{"log_level", "log-level"}, func(raw interface{}) (err error) {
			cfg.LogLevel, err = asString(raw)
			return err
		}},
		{[]string{"log_format", "log-format"}, func(raw interface{}) (err error) {
			cfg.LogFormat, err = asString(raw)
			return err
		}},
		{[]string{"metrics_addr", "metrics-addr"}, func(raw interface{}) (err error) {
			cfg.MetricsAddr, err = asString(raw)
			return err
		}},
		{[]string{"thresholds"}, func(raw interface{}) (err error) {
			cfg.Thresholds, err = asStringSlice(raw)
			return err
		}},
		{[]string{"tracing"}, func(raw interface{}) error {
			return applyTracingSettings(&cfg.Tracing, raw)
		}},
	}

	for _, f := range fields {
		raw, ok := lookupSetting(settings, f.keys...)
		if !ok {
			continue
		}
		if err := f.apply(raw); err != nil {
			return fmt.Errorf("%s: %w", f.keys[0], err)
		}
	}
	return nil
}

func applyTracingSettings(t *TracingConfig, raw interface{}) error {
	m, err := toStringKeyMap(raw)
	if err != nil {
		return err
	}
	if v, ok := lookupSetting(m, "endpoint"); ok {
		if t.Endpoint, err = asString(v); err != nil {
			return err
		}
	}
	if v, ok := lookupSetting(m, "protocol"); ok {
		if t.Protocol, err = asString(v); err != nil {
			return err
		}
	}
	if v, ok := lookupSetting(m, "insecure"); ok {
		if t.Insecure, err = asBool(v); err != nil {
			return err
		}
	}
	if v, ok := lookupSetting(m, "sample_rate", "samplerate"); ok {
		if t.SampleRate, err = asFloat64(v); err != nil {
			return err
		}
	}
	if v, ok := lookupSetting(m, "propagate"); ok {
		if t.Propagate, err = asBool(v); err != nil {
			return err
		}
	}
	if v, ok := lookupSetting(m, "service_name", "servicename"); ok {
		if t.ServiceName, err = asString(v); err != nil {
			return err
		}
	}
	return nil
}
