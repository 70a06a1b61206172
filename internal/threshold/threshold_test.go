package threshold

import (
	"strings"
	"testing"
	"time"

	"github.com/ananya-mh/searchload/internal/metrics"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Threshold
		wantError bool
	}{
		{
			name:  "p95 latency",
			input: "req_duration:p95 < 500",
			want:  Threshold{Metric: "req_duration", Aggregate: "p95", Operator: "<", Value: 500},
		},
		{
			name:  "failure rate",
			input: "req_failed:rate < 0.01",
			want:  Threshold{Metric: "req_failed", Aggregate: "rate", Operator: "<", Value: 0.01},
		},
		{
			name:  "p99 with <= and no spaces",
			input: "req_duration:p99<=1000",
			want:  Threshold{Metric: "req_duration", Aggregate: "p99", Operator: "<=", Value: 1000},
		},
		{
			name:  "throughput",
			input: "  requests:rate > 100  ",
			want:  Threshold{Metric: "requests", Aggregate: "rate", Operator: ">", Value: 100},
		},
		{name: "empty", input: "", wantError: true},
		{name: "missing operator", input: "req_duration:p95 500", wantError: true},
		{name: "unknown metric", input: "http_req_duration:p95 < 500", wantError: true},
		{name: "unknown aggregate", input: "req_duration:p85 < 500", wantError: true},
		{name: "aggregate not valid for metric", input: "req_failed:p95 < 1", wantError: true},
		{name: "bad operator", input: "req_duration:p95 << 500", wantError: true},
		{name: "not a number", input: "req_duration:p95 < abc", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantError {
				t.Fatalf("Parse() error = %v, wantError %v", err, tt.wantError)
			}
			if tt.wantError {
				return
			}
			if got.Metric != tt.want.Metric || got.Aggregate != tt.want.Aggregate ||
				got.Operator != tt.want.Operator || got.Value != tt.want.Value {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
			if got.Raw != strings.TrimSpace(tt.input) {
				t.Errorf("Raw = %q", got.Raw)
			}
		})
	}
}

func TestParseMultiple(t *testing.T) {
	got, err := ParseMultiple([]string{"req_duration:p95 < 500", "req_failed:count == 0", "requests:count >= 10"})
	if err != nil || len(got) != 3 {
		t.Fatalf("ParseMultiple() = %d, %v", len(got), err)
	}

	got, err = ParseMultiple(nil)
	if err != nil || got != nil {
		t.Fatalf("ParseMultiple(nil) = %v, %v", got, err)
	}

	_, err = ParseMultiple([]string{"req_duration:p95 < 500", "nonsense", "also bad"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "threshold[1]") || !strings.Contains(err.Error(), "threshold[2]") {
		t.Errorf("error should name every bad entry: %v", err)
	}
}

func sampleStats() metrics.Stats {
	return metrics.Stats{
		EndpointStats: metrics.EndpointStats{
			Total:          1000,
			Successes:      980,
			Failures:       20,
			MinLatency:     10 * time.Millisecond,
			MaxLatency:     500 * time.Millisecond,
			RequestsPerSec: 150,
			MinLatencyMs:   10,
			MaxLatencyMs:   500,
			MeanLatencyMs:  100,
			P50LatencyMs:   80,
			P90LatencyMs:   200,
			P95LatencyMs:   320,
			P99LatencyMs:   400,
		},
	}
}

func TestEvaluator(t *testing.T) {
	tests := []struct {
		expr   string
		actual float64
		pass   bool
	}{
		{"req_duration:p95 < 500", 320, true},
		{"req_duration:p95 < 300", 320, false},
		{"req_duration:p50 <= 80", 80, true},
		{"req_duration:p90 > 100", 200, true},
		{"req_duration:p99 < 400", 400, false},
		{"req_duration:avg == 100", 100, true},
		{"req_duration:min >= 10", 10, true},
		{"req_duration:max < 500", 500, false},
		{"req_failed:rate < 0.05", 0.02, true},
		{"req_failed:count == 0", 20, false},
		{"requests:count >= 1000", 1000, true},
		{"requests:rate > 200", 150, false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			th, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			results := NewEvaluator([]Threshold{th}).Evaluate(sampleStats())
			if len(results) != 1 {
				t.Fatalf("got %d results", len(results))
			}
			r := results[0]
			if r.Actual != tt.actual {
				t.Errorf("Actual = %v, want %v", r.Actual, tt.actual)
			}
			if r.Pass != tt.pass {
				t.Errorf("Pass = %v, want %v (%s)", r.Pass, tt.pass, r.Message)
			}
			if r.Expr != tt.expr {
				t.Errorf("Expr = %q", r.Expr)
			}
		})
	}
}

func TestFailureRateWithNoRequests(t *testing.T) {
	th, _ := Parse("req_failed:rate < 0.01")
	results := NewEvaluator([]Threshold{th}).Evaluate(metrics.Stats{})
	if !results[0].Pass || results[0].Actual != 0 {
		t.Fatalf("result = %+v", results[0])
	}
}

func TestAllPassed(t *testing.T) {
	if !AllPassed(nil) {
		t.Error("no results should pass")
	}
	if AllPassed([]Result{{Pass: true}, {Pass: false}}) {
		t.Error("one failure should fail")
	}
}

func TestEvaluatorWithoutThresholds(t *testing.T) {
	if got := NewEvaluator(nil).Evaluate(sampleStats()); got != nil {
		t.Fatalf("Evaluate() = %v, want nil", got)
	}
}

func TestEvaluateUnsupportedThreshold(t *testing.T) {
	results := NewEvaluator([]Threshold{{Metric: "req_failed", Aggregate: "p99", Raw: "req_failed:p99 < 1"}}).Evaluate(sampleStats())
	if results[0].Pass || !strings.HasPrefix(results[0].Message, "error:") {
		t.Fatalf("result = %+v", results[0])
	}
}
