// Package runner provides the load execution engine.
//
// A [Runner] starts a number of simulated users, optionally at a fixed spawn
// rate, and each user repeatedly executes the configured [Requester]. Between
// two requests a user waits a random think time in [WaitMin, WaitMax]; the
// zero value means back-to-back requests.
//
//	r := runner.New(runner.Options{
//		Users:     50,
//		SpawnRate: 10,
//		Duration:  time.Minute,
//		Requester: myRequester,
//	})
//	result := r.Run(ctx)
//
// # Pacing
//
// A single scheduler hands permits to users. With RatePerSecond > 0 the
// permits are spaced by the selected arrival model:
//   - [ArrivalModelUniform]: fixed intervals via a token bucket
//   - [ArrivalModelPoisson]: exponentially distributed gaps
//
// The run ends when TotalRequests permits were handed out, Duration elapsed,
// or the context was cancelled.
//
// # Middleware
//
// [WithLogging] reports each failed request to a [FailureLogger]. Request
// failures carrying a status code use [HTTPError].
package runner
