package searchsvc

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal  *prometheus.CounterVec
	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      prometheus.Histogram
	SearchResultsCount prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchd_http_requests_total",
				Help: "HTTP requests by path and status.",
			},
			[]string{"path", "status"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchd_search_queries_total",
				Help: "Search queries by result type (hit, zero_result).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "searchd_search_latency_seconds",
				Help:    "Time spent scanning products per query.",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "searchd_search_results_count",
				Help:    "Products returned per query.",
				Buckets: []float64{0, 1, 5, 10, 15, 20},
			},
		),
	}
	reg.MustRegister(m.HTTPRequestsTotal, m.SearchQueriesTotal, m.SearchLatency, m.SearchResultsCount)
	return m
}

// Handler serves search and health endpoints.
type Handler struct {
	store   *Store
	metrics *Metrics
	logger  *slog.Logger
}

func NewHandler(store *Store, m *Metrics) *Handler {
	return &Handler{
		store:   store,
		metrics: m,
		logger:  slog.Default().With("component", "search-handler"),
	}
}

// Routes returns the service mux. gatherer backs /metrics and may be nil.
func (h *Handler) Routes(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/products/search", h.Search)
	mux.HandleFunc("/health", h.Health)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return h.instrument(mux)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Missing query parameter 'q'", http.StatusBadRequest)
		return
	}

	start := time.Now()
	resp := h.store.Search(query)
	if h.metrics != nil {
		h.metrics.SearchLatency.Observe(time.Since(start).Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(resp.Products)))
		result := "hit"
		if resp.TotalFound == 0 {
			result = "zero_result"
		}
		h.metrics.SearchQueriesTotal.WithLabelValues(result).Inc()
	}

	body, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		h.logger.Error("encode search response", "error", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("write search response", "error", err)
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) instrument(next http.Handler) http.Handler {
	if h.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.metrics.HTTPRequestsTotal.WithLabelValues(routeLabel(r.URL.Path), strconv.Itoa(sw.status)).Inc()
	})
}

// routeLabel keeps the path label bounded to known routes.
func routeLabel(path string) string {
	switch path {
	case "/products/search", "/health", "/metrics":
		return path
	default:
		return "other"
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}
