package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ananya-mh/searchload/internal/metrics"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressReporterWritesStatusLine(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	for i := 0; i < 5; i++ {
		collector.RecordRequest(10*time.Millisecond, nil, &metrics.RequestMetadata{Protocol: "http", Endpoint: label})
	}

	var out syncBuffer
	p := NewProgressReporter(collector, 10*time.Millisecond, func() int { return 3 }, &out)
	p.Start()
	p.Start()
	time.Sleep(50 * time.Millisecond)
	p.Stop()
	p.Stop()

	got := out.String()
	if !strings.Contains(got, "Requests: 5") {
		t.Errorf("progress output missing request count: %q", got)
	}
	if !strings.Contains(got, "Users: 3") {
		t.Errorf("progress output missing users: %q", got)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Errorf("progress output should end with a newline: %q", got)
	}
}

func TestProgressReporterStopWithoutStart(t *testing.T) {
	p := NewProgressReporter(metrics.NewCollector(), time.Second, nil, nil)
	p.Stop()
}
