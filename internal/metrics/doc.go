// Package metrics collects per-request latency and outcome data during a run.
//
// A [Collector] is shared by all simulated users. Each request is recorded
// with [Collector.RecordRequest] and an optional [RequestMetadata] whose
// Endpoint field is the aggregation label: every request carrying the same
// label is reported together regardless of its concrete URL.
//
//	collector := metrics.NewCollector()
//	collector.Start()
//	collector.RecordRequest(latency, err, &metrics.RequestMetadata{
//		Protocol: "http",
//		Endpoint: "/products/search",
//	})
//	stats := collector.Stats(collector.Elapsed())
//
// Latencies are kept in HDR histograms (1µs to 60s, 3 significant figures),
// both for the whole run and per label. Failures with a status code are
// bucketed by protocol and code.
//
// [NewRegistry] and [Serve] expose the live snapshot to Prometheus.
package metrics
