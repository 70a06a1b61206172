// Package output renders run results as text, JSON, YAML and CSV.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ananya-mh/searchload/internal/metrics"
	"github.com/ananya-mh/searchload/internal/threshold"
)

// Report is everything known about a finished run.
type Report struct {
	RunID      string             `json:"run_id" yaml:"run_id"`
	Target     string             `json:"target" yaml:"target"`
	Users      int                `json:"users" yaml:"users"`
	Stats      metrics.Stats      `json:"stats" yaml:"stats"`
	Thresholds []threshold.Result `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// Passed reports whether the run had no failures and no failed thresholds.
func (r Report) Passed() bool {
	return r.Stats.Failures == 0 && threshold.AllPassed(r.Thresholds)
}

// PrintReport writes a human-readable summary.
func PrintReport(w io.Writer, r Report) {
	stats := r.Stats
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	if r.RunID != "" {
		fmt.Fprintf(w, "Run:               %s\n", r.RunID)
	}
	if r.Target != "" {
		fmt.Fprintf(w, "Target:            %s\n", r.Target)
	}
	if r.Users > 0 {
		fmt.Fprintf(w, "Users:             %d\n", r.Users)
	}
	fmt.Fprintf(w, "Total Requests:    %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.Endpoints) > 0 {
		fmt.Fprintln(w)
		writeNameTable(w, stats)
	}

	if len(stats.StatusBuckets) > 0 {
		fmt.Fprintln(w, "\nStatus Buckets:")
		writeStatusBuckets(w, stats.StatusBuckets, "  ")
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		types := make([]string, 0, len(stats.Errors))
		for name := range stats.Errors {
			types = append(types, name)
		}
		sort.Slice(types, func(i, j int) bool {
			if stats.Errors[types[i]] != stats.Errors[types[j]] {
				return stats.Errors[types[i]] > stats.Errors[types[j]]
			}
			return types[i] < types[j]
		})
		for _, name := range types {
			fmt.Fprintf(w, "  %s: %d\n", metrics.FriendlyErrorName(name), stats.Errors[name])
		}
	}

	if len(r.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, res := range r.Thresholds {
			fmt.Fprintf(w, "  %s\n", res.Message)
		}
	}
}

// writeNameTable prints one row per label plus an aggregated row.
func writeNameTable(w io.Writer, stats metrics.Stats) {
	const rowFmt = "%-28s %9s %9s %9s %9s %9s %9s %9s\n"
	fmt.Fprintf(w, rowFmt, "Name", "# reqs", "# fails", "Avg(ms)", "Min(ms)", "Max(ms)", "P95(ms)", "req/s")
	fmt.Fprintln(w, strings.Repeat("-", 28+8*10))
	row := func(name string, s metrics.EndpointStats) {
		fmt.Fprintf(w, rowFmt,
			name,
			fmt.Sprint(s.Total),
			fmt.Sprint(s.Failures),
			fmt.Sprintf("%.1f", s.MeanLatencyMs),
			fmt.Sprintf("%.1f", s.MinLatencyMs),
			fmt.Sprintf("%.1f", s.MaxLatencyMs),
			fmt.Sprintf("%.1f", s.P95LatencyMs),
			fmt.Sprintf("%.2f", s.RequestsPerSec),
		)
	}
	for _, name := range sortedNames(stats.Endpoints) {
		row(name, stats.Endpoints[name])
	}
	fmt.Fprintln(w, strings.Repeat("-", 28+8*10))
	row("Aggregated", stats.EndpointStats)
}

// PrintJSONReport writes r as indented JSON.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport writes r as YAML.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func writeStatusBuckets(w io.Writer, buckets map[string]map[string]int, indent string) {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s %s: %d\n", indent, strings.ToUpper(row.Protocol), row.Code, row.Count)
	}
}

func sortedNames(endpoints map[string]metrics.EndpointStats) []string {
	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
