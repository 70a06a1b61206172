// Package searchproxy forwards requests to the search service the way a
// function-as-a-service gateway in front of it would, adding CORS headers
// and turning upstream failures into a JSON 502.
package searchproxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultTarget is used when neither a flag nor TARGET_URL names one.
const DefaultTarget = "http://host.docker.internal:8080"

// Metrics counts proxied requests by upstream status.
type Metrics struct {
	ProxiedTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProxiedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchproxy_requests_total",
				Help: "Proxied requests by upstream status (502 for upstream errors).",
			},
			[]string{"status"},
		),
	}
	reg.MustRegister(m.ProxiedTotal)
	return m
}

// ParseTarget validates an upstream base URL.
func ParseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("target is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("target %q must use http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("target %q has no host", raw)
	}
	return u, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// New returns a handler that forwards method, path, query, headers and
// body to target. m may be nil.
func New(target *url.URL, logger *slog.Logger, m *Metrics) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	count := func(status int) {
		if m != nil {
			m.ProxiedTotal.WithLabelValues(strconv.Itoa(status)).Inc()
		}
	}

	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
			logger.Debug("proxying", "method", r.In.Method, "url", r.Out.URL.String())
		},
		ModifyResponse: func(resp *http.Response) error {
			resp.Header.Set("Content-Type", "application/json")
			resp.Header.Set("Access-Control-Allow-Origin", "*")
			count(resp.StatusCode)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("proxy error", "method", r.Method, "path", r.URL.Path, "error", err)
			count(http.StatusBadGateway)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(errorBody{Error: "Bad Gateway", Details: err.Error()})
		},
	}
}
