package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ananya-mh/searchload/internal/metrics"
)

var csvHeader = []string{
	"Type", "Name", "Request Count", "Failure Count",
	"Median Response Time", "Average Response Time", "Min Response Time", "Max Response Time",
	"Requests/s", "Failures/s", "50%", "90%", "95%", "99%",
}

// WriteCSV writes per-label request statistics followed by an
// "Aggregated" row. Response times are in milliseconds.
func WriteCSV(w io.Writer, stats metrics.Stats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, name := range sortedNames(stats.Endpoints) {
		if err := cw.Write(csvRow("GET", name, stats.Endpoints[name], stats.Duration.Seconds())); err != nil {
			return err
		}
	}
	if err := cw.Write(csvRow("", "Aggregated", stats.EndpointStats, stats.Duration.Seconds())); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(method, name string, s metrics.EndpointStats, seconds float64) []string {
	failuresPerSec := 0.0
	if seconds > 0 {
		failuresPerSec = float64(s.Failures) / seconds
	}
	ms := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	return []string{
		method,
		name,
		strconv.FormatInt(s.Total, 10),
		strconv.FormatInt(s.Failures, 10),
		ms(s.P50LatencyMs),
		ms(s.MeanLatencyMs),
		ms(s.MinLatencyMs),
		ms(s.MaxLatencyMs),
		strconv.FormatFloat(s.RequestsPerSec, 'f', 2, 64),
		strconv.FormatFloat(failuresPerSec, 'f', 2, 64),
		ms(s.P50LatencyMs),
		ms(s.P90LatencyMs),
		ms(s.P95LatencyMs),
		ms(s.P99LatencyMs),
	}
}
