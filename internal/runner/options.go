package runner

import (
	"time"

	"golang.org/x/time/rate"
)

// ArrivalModel selects how the scheduler spaces requests when a rate cap is set.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Options configure the Runner.
type Options struct {
	Users          int           // simulated users (worker goroutines)
	SpawnRate      float64       // users started per second (0 starts all at once)
	TotalRequests  int           // total requests to execute (0 means unlimited)
	Duration       time.Duration // overall time limit (0 means no duration cap)
	RatePerSecond  int           // global requests per second cap (0 means unlimited)
	ArrivalModel   ArrivalModel  // pacing model used when RatePerSecond > 0
	WaitMin        time.Duration // lower bound of a user's think time between requests
	WaitMax        time.Duration // upper bound of a user's think time between requests
	RandomSeed     int64         // seeds think-time and poisson sampling
	Requester      Requester     // request executor (required)
	LimiterFactory func(rps int) *rate.Limiter
	PoissonSampler func() float64 // optional; returns Exp(1) samples
}

func (o *Options) normalize() {
	if o.Users <= 0 {
		o.Users = 1
	}
	if o.SpawnRate < 0 {
		o.SpawnRate = 0
	}
	if o.TotalRequests < 0 {
		o.TotalRequests = 0
	}
	if o.Duration < 0 {
		o.Duration = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.ArrivalModel != ArrivalModelPoisson {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.WaitMin < 0 {
		o.WaitMin = 0
	}
	if o.WaitMax < o.WaitMin {
		o.WaitMax = o.WaitMin
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one keeps permits evenly spaced across users.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// spawnInterval is the gap between starting consecutive users.
func (o Options) spawnInterval() time.Duration {
	if o.SpawnRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / o.SpawnRate)
}
