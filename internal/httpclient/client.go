package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ananya-mh/searchload/internal/config"
)

// RequestBuilder turns relative request paths into GET requests against the
// configured target host.
type RequestBuilder struct {
	base    string
	headers http.Header
}

func NewRequestBuilder(cfg *config.Config) (*RequestBuilder, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	base, err := normalizeBase(cfg.TargetURL)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	for key, value := range cfg.Headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n: ") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		headers.Set(canonicalKey, value)
	}

	return &RequestBuilder{base: base, headers: headers}, nil
}

// normalizeBase validates the target and strips trailing slashes so paths can
// be appended the way a browser base URL would be.
func normalizeBase(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", errors.New("target URL is required")
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid target URL %q: scheme must be http or https", target)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid target URL %q: missing host", target)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("invalid target URL %q: query and fragment are not allowed", target)
	}
	return strings.TrimRight(target, "/"), nil
}

// Base returns the normalized target URL.
func (b *RequestBuilder) Base() string { return b.base }

// Build creates a GET request for path, which must start with "/".
func (b *RequestBuilder) Build(ctx context.Context, path string) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("request path %q must be absolute", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+path, nil)
	if err != nil {
		return nil, err
	}
	if len(b.headers) > 0 {
		req.Header = b.headers.Clone()
	}
	return req, nil
}

// NewClient returns a keep-alive client sized for many concurrent users
// hitting a single host.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          512,
		MaxIdleConnsPerHost:   256,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
