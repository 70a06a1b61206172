package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ananya-mh/searchload/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		TargetURL: "http://localhost:8080",
		Users:     10,
		SpawnRate: 2,
		Duration:  time.Minute,
		Timeout:   5 * time.Second,
		Arrival:   config.ArrivalConfig{Model: config.ArrivalModelUniform},
		Output:    config.OutputText,
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateReportsEveryIssue(t *testing.T) {
	cfg := config.Config{
		TargetURL: "ftp://example.com",
		Users:     0,
		SpawnRate: -1,
		Rate:      -5,
		Total:     -1,
		WaitMin:   2 * time.Second,
		WaitMax:   time.Second,
		Output:    "xml",
		Arrival:   config.ArrivalConfig{Model: "burst"},
		Tracing:   config.TracingConfig{Protocol: "udp", SampleRate: 2},
	}

	err := cfg.Validate()
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	want := []string{
		"must be an absolute http(s) URL",
		"users must be >= 1",
		"spawn-rate must be >= 0",
		"rate must be >= 0",
		"total must be >= 0",
		"wait-max must be >= wait-min",
		"arrival model \"burst\"",
		"output \"xml\"",
		"tracing protocol \"udp\"",
		"sample rate must be between 0 and 1",
	}
	msg := verr.Error()
	for _, w := range want {
		if !strings.Contains(msg, w) {
			t.Errorf("validation error missing %q: %s", w, msg)
		}
	}
	if len(verr.Issues()) != len(want) {
		t.Errorf("Issues() = %d entries, want %d: %v", len(verr.Issues()), len(want), verr.Issues())
	}
}

func TestValidateRequiresTarget(t *testing.T) {
	cfg := validConfig()
	cfg.TargetURL = "  "
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "target is required") {
		t.Fatalf("Validate() = %v, want target required", err)
	}
}

func TestValidatePoissonNeedsRate(t *testing.T) {
	cfg := validConfig()
	cfg.Arrival.Model = config.ArrivalModelPoisson
	if err := cfg.Validate(); err == nil {
		t.Fatal("poisson arrival without rate should fail")
	}
	cfg.Rate = 50
	if err := cfg.Validate(); err != nil {
		t.Fatalf("poisson arrival with rate: %v", err)
	}
}

func TestValidateDashboardNeedsTextOutput(t *testing.T) {
	cfg := validConfig()
	cfg.Dashboard = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dashboard with text output: %v", err)
	}
	cfg.Output = config.OutputJSON
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "dashboard requires text output") {
		t.Fatalf("Validate() = %v, want dashboard/output conflict", err)
	}
}

func TestWarnings(t *testing.T) {
	cfg := validConfig()
	cfg.Users = 5000
	cfg.Duration = 0

	warnings := cfg.Warnings()
	joined := strings.Join(warnings, "\n")
	for _, w := range []string{"high user count", "no duration or total", "back-to-back"} {
		if !strings.Contains(joined, w) {
			t.Errorf("warnings missing %q: %v", w, warnings)
		}
	}

	cfg = validConfig()
	cfg.WaitMax = time.Second
	if got := cfg.Warnings(); len(got) != 0 {
		t.Errorf("unexpected warnings: %v", got)
	}
}

func TestTracingConfigEnabled(t *testing.T) {
	if (config.TracingConfig{}).Enabled() {
		t.Error("empty tracing config should be disabled")
	}
	if !(config.TracingConfig{Endpoint: "localhost:4317"}).Enabled() {
		t.Error("endpoint should enable tracing")
	}
	tc := config.TracingConfig{Propagate: true}
	if !tc.Enabled() || !tc.ShouldPropagate() {
		t.Error("propagate should enable tracing")
	}
}
