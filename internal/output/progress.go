package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ananya-mh/searchload/internal/metrics"
)

// StatsSource yields a stats snapshot for the given elapsed time.
type StatsSource interface {
	Stats(elapsed time.Duration) metrics.Stats
}

// ProgressReporter prints a single live status line at a fixed interval.
type ProgressReporter struct {
	source   StatsSource
	interval time.Duration
	users    func() int
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	start    time.Time
}

// NewProgressReporter creates a reporter. users may be nil.
func NewProgressReporter(source StatsSource, interval time.Duration, users func() int, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		source:   source,
		interval: interval,
		users:    users,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
}

// Start begins printing in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return
	}
	p.start = time.Now()
	go p.run()
}

// Stop halts printing and terminates the status line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	wrote := false
	for {
		select {
		case <-ticker.C:
			fmt.Fprint(p.writer, "\r"+p.line(time.Since(p.start)))
			wrote = true
		case <-p.done:
			if wrote {
				fmt.Fprintln(p.writer)
			}
			return
		}
	}
}

func (p *ProgressReporter) line(elapsed time.Duration) string {
	stats := p.source.Stats(elapsed)
	line := fmt.Sprintf("[%s] Requests: %d | Failures: %d | RPS: %.1f | P95: %.1fms",
		elapsed.Truncate(time.Second), stats.Total, stats.Failures, stats.RequestsPerSec, stats.P95LatencyMs)
	if p.users != nil {
		line += fmt.Sprintf(" | Users: %d", p.users())
	}
	return line
}
