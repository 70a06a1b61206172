package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ananya-mh/searchload/internal/catalog"
	"github.com/ananya-mh/searchload/internal/httpclient"
	"github.com/ananya-mh/searchload/internal/metrics"
	"github.com/ananya-mh/searchload/internal/runner"
	"github.com/ananya-mh/searchload/internal/tracing"
)

const maxLoggedBodyBytes = 1024

// searchRequester issues one randomized product search per Do call.
type searchRequester struct {
	sampler   *catalog.Sampler
	client    *http.Client
	builder   *httpclient.RequestBuilder
	collector *metrics.Collector
	tracer    trace.Tracer
	propagate bool
}

func (s *searchRequester) Do(ctx context.Context) error {
	q := s.sampler.Next()
	ctx, span := tracing.StartSearchSpan(ctx, s.tracer, q.Name, q.Term)

	start := time.Now()
	status, err := s.send(ctx, q.Path)
	latency := time.Since(start)

	// Requests cut off because the run itself ended are not samples.
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		tracing.EndSpan(span, err)
		return fmt.Errorf("%w: %w", runner.ErrAborted, err)
	}

	meta := &metrics.RequestMetadata{Protocol: "http", Endpoint: q.Name}
	if err != nil {
		meta.StatusCode = statusCodeFor(status, err)
	}
	s.collector.RecordRequest(latency, err, meta)

	if status > 0 {
		tracing.EndSpan(span, err, tracing.AttrStatus.Int(status))
	} else {
		tracing.EndSpan(span, err)
	}
	return err
}

// send performs the GET and returns the HTTP status (0 if none arrived).
func (s *searchRequester) send(ctx context.Context, path string) (int, error) {
	req, err := s.builder.Build(ctx, path)
	if err != nil {
		return 0, err
	}
	if s.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, readErr := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBodyBytes))
		_, _ = io.Copy(io.Discard, resp.Body)
		if readErr != nil {
			return resp.StatusCode, readErr
		}
		return resp.StatusCode, &runner.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, nil
}

// slogFailureLogger writes failed requests through slog.
type slogFailureLogger struct {
	logger *slog.Logger
}

func (l slogFailureLogger) LogFailure(err error) {
	if err == nil || errors.Is(err, runner.ErrAborted) {
		return
	}
	l.logger.Warn("request failed", "error", err)
}
