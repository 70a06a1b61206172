package runner

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Requester abstracts executing a single request operation.
// Implementations should return an error for failed requests.
type Requester interface {
	Do(ctx context.Context) error
}

// Result captures execution summary.
type Result struct {
	Total    int64 // Requester.Do calls made
	Errors   int64 // failed calls, excluding aborted ones
	Aborted  int64 // calls that returned ErrAborted
	Duration time.Duration
	Users    int // simulated users that were started
}

// Runner drives simulated users against a Requester.
type Runner struct {
	opt     Options
	arrival arrivalController
	active  int64

	waitMu  sync.Mutex
	waitRnd *rand.Rand
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{
		opt:     opt,
		arrival: newArrivalController(opt),
		waitRnd: rand.New(rand.NewSource(opt.RandomSeed)),
	}
}

func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	var c counters

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.opt.Duration > 0 {
		deadlineCtx, deadlineCancel := context.WithTimeout(ctx, r.opt.Duration)
		ctx = deadlineCtx
		defer deadlineCancel()
	}

	// Unbuffered so an issued permit is always held by a user.
	permits := make(chan struct{})
	schedulerDone := make(chan struct{})

	// Scheduler: the only place pacing and the total cap are enforced.
	go func() {
		defer close(schedulerDone)
		defer close(permits)
		var issued int64
		for {
			if ctx.Err() != nil {
				return
			}
			if r.opt.TotalRequests > 0 && issued >= int64(r.opt.TotalRequests) {
				return
			}
			if r.arrival != nil {
				if err := r.arrival.Wait(ctx); err != nil {
					return
				}
			}
			select {
			case permits <- struct{}{}:
				issued++
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	users := 0
	interval := r.opt.spawnInterval()

spawn:
	for i := 0; i < r.opt.Users; i++ {
		if i > 0 && interval > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				break spawn
			case <-schedulerDone:
				timer.Stop()
				break spawn
			}
		}
		if ctx.Err() != nil {
			break
		}
		users++
		wg.Add(1)
		atomic.AddInt64(&r.active, 1)
		go func() {
			defer wg.Done()
			defer atomic.AddInt64(&r.active, -1)
			r.user(ctx, permits, &c)
		}()
	}
	wg.Wait()

	return Result{
		Total:    c.executed.Load(),
		Errors:   c.errs.Load(),
		Aborted:  c.aborted.Load(),
		Duration: time.Since(start),
		Users:    users,
	}
}

// ActiveUsers returns how many simulated users are currently running.
func (r *Runner) ActiveUsers() int {
	return int(atomic.LoadInt64(&r.active))
}

type counters struct {
	executed atomic.Int64
	errs     atomic.Int64
	aborted  atomic.Int64
}

// user is one simulated user: take a permit, run the task, think, repeat.
func (r *Runner) user(ctx context.Context, permits <-chan struct{}, c *counters) {
	for range permits {
		if ctx.Err() != nil {
			return
		}
		c.executed.Add(1)
		if r.opt.Requester != nil {
			if err := r.opt.Requester.Do(ctx); err != nil {
				if errors.Is(err, ErrAborted) {
					c.aborted.Add(1)
				} else {
					c.errs.Add(1)
				}
			}
		}
		if err := r.think(ctx); err != nil {
			return
		}
	}
}

func (r *Runner) think(ctx context.Context) error {
	d := r.thinkTime()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Runner) thinkTime() time.Duration {
	span := r.opt.WaitMax - r.opt.WaitMin
	if span <= 0 {
		return r.opt.WaitMin
	}
	r.waitMu.Lock()
	defer r.waitMu.Unlock()
	return r.opt.WaitMin + time.Duration(r.waitRnd.Int63n(int64(span)+1))
}
