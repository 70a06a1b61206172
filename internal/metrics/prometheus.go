package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// promCollector exposes a Collector snapshot on each scrape, so the hot
// recording path stays free of Prometheus bookkeeping.
type promCollector struct {
	source *Collector

	requests   *prometheus.Desc
	failures   *prometheus.Desc
	latency    *prometheus.Desc
	throughput *prometheus.Desc
	statuses   *prometheus.Desc
}

// NewPrometheusCollector adapts c to the prometheus.Collector interface.
func NewPrometheusCollector(c *Collector) prometheus.Collector {
	return &promCollector{
		source: c,
		requests: prometheus.NewDesc("searchload_requests_total",
			"Requests issued, by aggregation name.", []string{"name"}, nil),
		failures: prometheus.NewDesc("searchload_failures_total",
			"Failed requests, by aggregation name.", []string{"name"}, nil),
		latency: prometheus.NewDesc("searchload_request_duration_seconds",
			"Request latency, by aggregation name.", []string{"name"}, nil),
		throughput: prometheus.NewDesc("searchload_requests_per_second",
			"Requests per second since the run started.", nil, nil),
		statuses: prometheus.NewDesc("searchload_failures_by_status_total",
			"Failed requests, by protocol and status code.", []string{"protocol", "code"}, nil),
	}
}

func (p *promCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.requests
	ch <- p.failures
	ch <- p.latency
	ch <- p.throughput
	ch <- p.statuses
}

func (p *promCollector) Collect(ch chan<- prometheus.Metric) {
	stats := p.source.Stats(p.source.Elapsed())

	for name, ep := range stats.Endpoints {
		ch <- prometheus.MustNewConstMetric(p.requests, prometheus.CounterValue, float64(ep.Total), name)
		ch <- prometheus.MustNewConstMetric(p.failures, prometheus.CounterValue, float64(ep.Failures), name)
		ch <- prometheus.MustNewConstSummary(p.latency, uint64(ep.Total), ep.TotalLatency.Seconds(), map[float64]float64{
			0.5:  ep.P50Latency.Seconds(),
			0.9:  ep.P90Latency.Seconds(),
			0.95: ep.P95Latency.Seconds(),
			0.99: ep.P99Latency.Seconds(),
		}, name)
	}
	ch <- prometheus.MustNewConstMetric(p.throughput, prometheus.GaugeValue, stats.RequestsPerSec)
	for _, row := range FlattenStatusBuckets(stats.StatusBuckets) {
		ch <- prometheus.MustNewConstMetric(p.statuses, prometheus.CounterValue, float64(row.Count), row.Protocol, row.Code)
	}
}

// NewRegistry returns a registry holding the run metrics and Go runtime collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewPrometheusCollector(c),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Serve exposes gatherer on addr at /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
