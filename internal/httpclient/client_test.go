package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ananya-mh/searchload/internal/config"
)

func TestBuildRequestWithHeaders(t *testing.T) {
	cfg := &config.Config{
		TargetURL: "http://example.com/",
		Headers: map[string]string{
			"x-trace-id": "12345",
			"Accept":     "application/json",
		},
	}

	builder, err := NewRequestBuilder(cfg)
	if err != nil {
		t.Fatalf("expected builder, got error: %v", err)
	}

	req, err := builder.Build(context.Background(), "/products/search?q=Books")
	if err != nil {
		t.Fatalf("expected request, got error: %v", err)
	}
	if req.Method != http.MethodGet {
		t.Fatalf("expected GET, got %s", req.Method)
	}
	if got := req.URL.String(); got != "http://example.com/products/search?q=Books" {
		t.Fatalf("URL = %s", got)
	}
	if req.URL.Query().Get("q") != "Books" {
		t.Fatalf("q = %q, want Books", req.URL.Query().Get("q"))
	}
	if req.Header.Get("X-Trace-Id") != "12345" {
		t.Fatalf("expected canonical X-Trace-Id header, got %q", req.Header.Get("X-Trace-Id"))
	}
}

func TestBuildKeepsBasePathPrefix(t *testing.T) {
	builder, err := NewRequestBuilder(&config.Config{TargetURL: "https://api.example.com/dev"})
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}
	req, err := builder.Build(context.Background(), "/products/search?q=Omega")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := req.URL.String(); got != "https://api.example.com/dev/products/search?q=Omega" {
		t.Fatalf("URL = %s", got)
	}
}

func TestBuildHeadersAreNotShared(t *testing.T) {
	builder, err := NewRequestBuilder(&config.Config{
		TargetURL: "http://example.com",
		Headers:   map[string]string{"X-Env": "load"},
	})
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}
	first, _ := builder.Build(context.Background(), "/a")
	first.Header.Set("X-Env", "mutated")
	second, _ := builder.Build(context.Background(), "/b")
	if second.Header.Get("X-Env") != "load" {
		t.Fatalf("header mutation leaked between requests")
	}
}

func TestNewRequestBuilderValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		wantErr string
	}{
		{"nil config", nil, "config cannot be nil"},
		{"missing target", &config.Config{}, "target URL is required"},
		{"bad scheme", &config.Config{TargetURL: "ftp://example.com"}, "scheme must be http or https"},
		{"missing host", &config.Config{TargetURL: "http://"}, "missing host"},
		{"query in target", &config.Config{TargetURL: "http://example.com?q=x"}, "query and fragment"},
		{"bad header key", &config.Config{TargetURL: "http://example.com", Headers: map[string]string{"Bad Key": "v"}}, "invalid header key"},
		{"bad header value", &config.Config{TargetURL: "http://example.com", Headers: map[string]string{"X-A": "v\r\nX-B: w"}}, "invalid header value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRequestBuilder(tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestBuildRejectsRelativePath(t *testing.T) {
	builder, err := NewRequestBuilder(&config.Config{TargetURL: "http://example.com"})
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}
	if _, err := builder.Build(context.Background(), "products/search"); err == nil {
		t.Fatal("expected error for path without leading slash")
	}
}

func TestClientRespectsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client := NewClient(20 * time.Millisecond)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := client.Do(req)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected timeout error")
	}
}

func TestNewClientNegativeTimeout(t *testing.T) {
	if c := NewClient(-time.Second); c.Timeout != 0 {
		t.Fatalf("Timeout = %s, want 0", c.Timeout)
	}
}
