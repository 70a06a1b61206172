package runner_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/ananya-mh/searchload/internal/runner"
)

// fakeRequester simulates performing a request with fixed latency.
type fakeRequester struct {
	latency   time.Duration
	calls     *int64
	failEvery int64 // if >0, every failEvery-th call fails
}

func (f *fakeRequester) Do(ctx context.Context) error {
	n := atomic.AddInt64(f.calls, 1)
	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.failEvery > 0 && n%f.failEvery == 0 {
		return errors.New("boom")
	}
	return nil
}

func TestRunnerRespectsTotalRequests(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Users:         4,
		TotalRequests: 25,
		Requester:     &fakeRequester{latency: time.Millisecond, calls: &calls},
	})
	res := r.Run(context.Background())
	if res.Total != 25 {
		t.Fatalf("expected total 25, got %d", res.Total)
	}
	if calls != 25 {
		t.Fatalf("expected requester called 25 times, got %d", calls)
	}
	if res.Users != 4 {
		t.Fatalf("expected 4 users, got %d", res.Users)
	}
}

func TestRunnerCountsErrors(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Users:         2,
		TotalRequests: 20,
		Requester:     &fakeRequester{calls: &calls, failEvery: 4},
	})
	res := r.Run(context.Background())
	if res.Errors != 5 {
		t.Fatalf("expected 5 errors, got %d", res.Errors)
	}
}

func TestRunnerHonorsDuration(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Users:     10,
		Duration:  50 * time.Millisecond,
		Requester: &fakeRequester{latency: 5 * time.Millisecond, calls: &calls},
	})
	start := time.Now()
	res := r.Run(context.Background())
	elapsed := time.Since(start)
	if elapsed < 50*time.Millisecond || elapsed > 250*time.Millisecond {
		t.Fatalf("duration enforcement off: %s", elapsed)
	}
	if res.Total <= 0 {
		t.Fatalf("expected some requests executed")
	}
	if calls != res.Total {
		t.Fatalf("calls mismatch: %d vs %d", calls, res.Total)
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Users:     3,
		Requester: &fakeRequester{latency: time.Millisecond, calls: &calls},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res := r.Run(ctx)
	if res.Duration > 250*time.Millisecond {
		t.Fatalf("runner did not stop promptly: %s", res.Duration)
	}
	if calls != res.Total {
		t.Fatalf("calls mismatch: %d vs %d", calls, res.Total)
	}
}

func TestRateLimiterCapsThroughput(t *testing.T) {
	var calls int64
	rateLimit := 100
	duration := 100 * time.Millisecond
	r := runner.New(runner.Options{
		Users:          20,
		Duration:       duration,
		RatePerSecond:  rateLimit,
		Requester:      &fakeRequester{calls: &calls},
		LimiterFactory: func(rps int) *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), 1) },
	})
	res := r.Run(context.Background())
	maxExpected := int(float64(rateLimit) * (float64(duration) / float64(time.Second)) * 1.20)
	if int(res.Total) > maxExpected {
		t.Fatalf("rate limiter exceeded: total=%d max=%d", res.Total, maxExpected)
	}
	if calls != res.Total {
		t.Fatalf("calls mismatch: %d vs %d", calls, res.Total)
	}
}

func TestSpawnRateStaggersUsers(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Users:     10,
		SpawnRate: 20, // one user every 50ms
		Duration:  120 * time.Millisecond,
		Requester: &fakeRequester{latency: time.Millisecond, calls: &calls},
	})
	res := r.Run(context.Background())
	if res.Users < 2 || res.Users > 4 {
		t.Fatalf("expected 2-4 users started within 120ms, got %d", res.Users)
	}
}

func TestSpawnStopsWhenTotalReached(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Users:         10,
		SpawnRate:     1,
		TotalRequests: 3,
		Requester:     &fakeRequester{calls: &calls},
	})
	res := r.Run(context.Background())
	if res.Total != 3 {
		t.Fatalf("expected total 3, got %d", res.Total)
	}
	if res.Duration > 500*time.Millisecond {
		t.Fatalf("spawning should stop once the total is reached, took %s", res.Duration)
	}
}

func TestThinkTimeSlowsUser(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Users:     1,
		WaitMin:   20 * time.Millisecond,
		WaitMax:   20 * time.Millisecond,
		Duration:  100 * time.Millisecond,
		Requester: &fakeRequester{calls: &calls},
	})
	res := r.Run(context.Background())
	if res.Total < 2 || res.Total > 6 {
		t.Fatalf("expected 2-6 requests with 20ms think time, got %d", res.Total)
	}
}

func TestRequesterFuncAndLogging(t *testing.T) {
	var logged []error
	logger := failureLoggerFunc(func(err error) { logged = append(logged, err) })
	failing := runner.RequesterFunc(func(context.Context) error {
		return &runner.HTTPError{StatusCode: 503, Body: "unavailable"}
	})

	err := runner.WithLogging(failing, logger).Do(context.Background())
	var httpErr *runner.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 503 {
		t.Fatalf("expected HTTPError 503, got %v", err)
	}
	if len(logged) != 1 {
		t.Fatalf("expected one logged failure, got %d", len(logged))
	}
	if got := httpErr.Error(); got != "HTTP 503: unavailable" {
		t.Errorf("Error() = %q", got)
	}
}

type failureLoggerFunc func(error)

func (f failureLoggerFunc) LogFailure(err error) { f(err) }

func TestActiveUsers(t *testing.T) {
	var calls int64
	started := make(chan struct{})
	release := make(chan struct{})
	var once atomic.Bool
	r := runner.New(runner.Options{
		Users:         3,
		SpawnRate:     0,
		TotalRequests: 3,
		Requester: runner.RequesterFunc(func(ctx context.Context) error {
			if atomic.AddInt64(&calls, 1) == 3 && once.CompareAndSwap(false, true) {
				close(started)
			}
			<-release
			return nil
		}),
	})

	done := make(chan runner.Result)
	go func() { done <- r.Run(context.Background()) }()

	<-started
	if got := r.ActiveUsers(); got != 3 {
		t.Errorf("ActiveUsers() during run = %d, want 3", got)
	}
	close(release)
	res := <-done
	if res.Total != 3 {
		t.Fatalf("Total = %d", res.Total)
	}
	if got := r.ActiveUsers(); got != 0 {
		t.Errorf("ActiveUsers() after run = %d, want 0", got)
	}
}

func TestAbortedRequestsAreNotErrors(t *testing.T) {
	var logged int64
	req := runner.RequesterFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return fmt.Errorf("%w: %w", runner.ErrAborted, ctx.Err())
	})
	logger := failureLoggerFunc(func(error) { atomic.AddInt64(&logged, 1) })

	r := runner.New(runner.Options{
		Users:     2,
		Duration:  30 * time.Millisecond,
		Requester: runner.WithLogging(req, logger),
	})
	res := r.Run(context.Background())

	if res.Total != 2 || res.Aborted != 2 {
		t.Fatalf("Total = %d, Aborted = %d, want 2 and 2", res.Total, res.Aborted)
	}
	if res.Errors != 0 {
		t.Errorf("Errors = %d, aborted calls must not count as errors", res.Errors)
	}
	if n := atomic.LoadInt64(&logged); n != 0 {
		t.Errorf("logged %d aborted requests as failures", n)
	}
}
