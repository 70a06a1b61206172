package runner

import (
	"context"
	"errors"
	"fmt"
)

// ErrAborted marks a request cut off because the run itself ended. Such
// requests are neither failures nor samples.
var ErrAborted = errors.New("request aborted by end of run")

// HTTPError represents an HTTP request failure with status details.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// FailureLogger logs failed requests.
type FailureLogger interface {
	LogFailure(err error)
}

type loggingRequester struct {
	inner  Requester
	logger FailureLogger
}

// WithLogging wraps a Requester to log failures.
func WithLogging(req Requester, logger FailureLogger) Requester {
	if logger == nil {
		return req
	}
	return &loggingRequester{inner: req, logger: logger}
}

func (l *loggingRequester) Do(ctx context.Context) error {
	err := l.inner.Do(ctx)
	if err != nil && !errors.Is(err, ErrAborted) {
		l.logger.LogFailure(err)
	}
	return err
}

// RequesterFunc adapts a plain function to the Requester interface.
type RequesterFunc func(ctx context.Context) error

func (f RequesterFunc) Do(ctx context.Context) error { return f(ctx) }
