// Package dashboard renders a live terminal view of a running load test.
package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/ananya-mh/searchload/internal/metrics"
)

const (
	refreshInterval = 500 * time.Millisecond
	historySize     = 100
	maxListRows     = 10
)

// Source yields a stats snapshot for the given elapsed time.
type Source interface {
	Stats(elapsed time.Duration) metrics.Stats
}

// RunConfig holds the run parameters shown in the header.
type RunConfig struct {
	Target    string
	Users     int
	SpawnRate float64
	Duration  time.Duration // 0 = until stopped
	Total     int           // 0 = unlimited
	Rate      int           // 0 = unlimited
	WaitMin   time.Duration
	WaitMax   time.Duration
	Timeout   time.Duration
	RunID     string
}

// Dashboard renders a live terminal UI for load test metrics.
type Dashboard struct {
	source   Source
	users    func() int
	cfg      RunConfig
	shutdown func()

	done     chan struct{}
	finished chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
	mu       sync.Mutex

	grid         *ui.Grid
	summaryPara  *widgets.Paragraph
	rpsGauge     *widgets.Gauge
	metricsPara  *widgets.Paragraph
	latencyLine  *widgets.SparklineGroup
	latencyPara  *widgets.Paragraph
	endpointList *widgets.List
	statusList   *widgets.List
	errorList    *widgets.List

	latencyHistory []float64
	peakRPS        float64
	startTime      time.Time
}

// New initialises the terminal and builds the widgets. users may be nil.
// shutdown is called when the user presses q or Ctrl-C.
func New(source Source, cfg RunConfig, users func() int, shutdown func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}
	d := newDashboard(source, cfg, users, shutdown)
	d.setupGrid()
	return d, nil
}

func newDashboard(source Source, cfg RunConfig, users func() int, shutdown func()) *Dashboard {
	d := &Dashboard{
		source:         source,
		users:          users,
		cfg:            cfg,
		shutdown:       shutdown,
		done:           make(chan struct{}),
		finished:       make(chan struct{}),
		latencyHistory: make([]float64, 0, historySize),
		startTime:      time.Now(),
	}
	d.initWidgets()
	return d
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Search Load Test"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.rpsGauge = widgets.NewGauge()
	d.rpsGauge.Title = "Requests Per Second"
	d.rpsGauge.BarColor = ui.ColorBlue
	d.rpsGauge.BorderStyle.Fg = ui.ColorCyan
	d.rpsGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Totals"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan

	spark := widgets.NewSparkline()
	spark.Title = "Mean latency (ms)"
	spark.LineColor = ui.ColorGreen
	spark.Data = []float64{0}
	d.latencyLine = widgets.NewSparklineGroup(spark)
	d.latencyLine.Title = "Latency"
	d.latencyLine.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Percentiles"
	d.latencyPara.Text = "No samples"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.endpointList = widgets.NewList()
	d.endpointList.Title = "Names"
	d.endpointList.Rows = []string{"Awaiting data"}
	d.endpointList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.endpointList.BorderStyle.Fg = ui.ColorCyan

	d.statusList = widgets.NewList()
	d.statusList.Title = "Status Buckets"
	d.statusList.Rows = []string{"No failures"}
	d.statusList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.statusList.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors"
	d.errorList.Rows = []string{"No errors"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorRed)
	d.errorList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	w, h := ui.TerminalDimensions()
	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, w, h)
	d.grid.Set(
		ui.NewRow(0.16, ui.NewCol(1.0, d.summaryPara)),
		ui.NewRow(0.22,
			ui.NewCol(0.5, d.rpsGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.28,
			ui.NewCol(0.65, d.latencyLine),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.34,
			ui.NewCol(0.4, d.endpointList),
			ui.NewCol(0.3, d.statusList),
			ui.NewCol(0.3, d.errorList),
		),
	)
}

// Start begins the refresh loop.
func (d *Dashboard) Start() {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	d.startTime = time.Now()
	go d.run()
}

// Stop ends the refresh loop and restores the terminal.
func (d *Dashboard) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		if d.started.Load() {
			<-d.finished
		}
		ui.Close()
	})
}

func (d *Dashboard) run() {
	defer close(d.finished)
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	events := ui.PollEvents()

	d.refresh()
	for {
		select {
		case <-d.done:
			return
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				if d.shutdown != nil {
					d.shutdown()
				}
			case "<Resize>":
				if r, ok := e.Payload.(ui.Resize); ok {
					d.mu.Lock()
					d.grid.SetRect(0, 0, r.Width, r.Height)
					d.mu.Unlock()
					ui.Clear()
					d.render()
				}
			}
		case <-ticker.C:
			d.refresh()
		}
	}
}

func (d *Dashboard) refresh() {
	d.update(time.Since(d.startTime))
	d.render()
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

// update refreshes every widget from a fresh snapshot.
func (d *Dashboard) update(elapsed time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := d.source.Stats(elapsed)

	successRate := 0.0
	if stats.Total > 0 {
		successRate = float64(stats.Successes) / float64(stats.Total) * 100
	}
	d.summaryPara.Text = fmt.Sprintf("Target: %s\n%s\nElapsed: %s | Users: %s | Success Rate: %.1f%% | q to stop",
		d.cfg.Target,
		d.formatRunParams(),
		elapsed.Round(time.Second),
		d.formatUsers(),
		successRate,
	)

	if stats.RequestsPerSec > d.peakRPS {
		d.peakRPS = stats.RequestsPerSec
	}
	d.rpsGauge.Percent = gaugePercent(stats.RequestsPerSec, d.peakRPS)
	d.rpsGauge.Label = fmt.Sprintf("%.1f RPS (peak %.1f)", stats.RequestsPerSec, d.peakRPS)

	d.metricsPara.Text = fmt.Sprintf("Requests:  %d\nSuccesses: %d\nFailures:  %d\nRPS:       %.2f",
		stats.Total, stats.Successes, stats.Failures, stats.RequestsPerSec)

	if stats.Total > 0 {
		d.latencyHistory = append(d.latencyHistory, stats.MeanLatencyMs)
		if len(d.latencyHistory) > historySize {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencyLine.Sparklines[0].Data = d.latencyHistory
		d.latencyLine.Title = fmt.Sprintf("Latency | Mean %.2fms | Min %.2fms | Max %.2fms",
			stats.MeanLatencyMs, stats.MinLatencyMs, stats.MaxLatencyMs)
		d.latencyPara.Text = fmt.Sprintf("P50: %.2fms\nP90: %.2fms\nP95: %.2fms\nP99: %.2fms",
			stats.P50LatencyMs, stats.P90LatencyMs, stats.P95LatencyMs, stats.P99LatencyMs)
	}

	d.endpointList.Rows = formatEndpointRows(stats)
	d.statusList.Rows = formatStatusRows(stats.StatusBuckets)
	d.errorList.Rows = formatErrorRows(stats.Errors)
}

func (d *Dashboard) formatUsers() string {
	if d.users == nil {
		return fmt.Sprintf("%d", d.cfg.Users)
	}
	return fmt.Sprintf("%d/%d", d.users(), d.cfg.Users)
}

func (d *Dashboard) formatRunParams() string {
	c := d.cfg
	parts := []string{fmt.Sprintf("Spawn: %g/s", c.SpawnRate)}
	if c.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", c.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}
	if c.WaitMax > 0 {
		parts = append(parts, fmt.Sprintf("Wait: %s-%s", c.WaitMin, c.WaitMax))
	}
	if c.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", c.Duration))
	}
	if c.Total > 0 {
		parts = append(parts, fmt.Sprintf("Total: %d", c.Total))
	}
	if c.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", c.Timeout))
	}
	if c.RunID != "" {
		parts = append(parts, "Run: "+c.RunID)
	}
	return strings.Join(parts, " | ")
}

func gaugePercent(current, peak float64) int {
	if peak <= 0 {
		return 0
	}
	pct := int(current / peak * 100)
	if pct > 100 {
		return 100
	}
	return pct
}

func formatEndpointRows(stats metrics.Stats) []string {
	if len(stats.Endpoints) == 0 {
		return []string{"[Awaiting data](fg:green)"}
	}
	names := make([]string, 0, len(stats.Endpoints))
	for name := range stats.Endpoints {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := stats.Endpoints[names[i]], stats.Endpoints[names[j]]
		if a.Total == b.Total {
			return names[i] < names[j]
		}
		return a.Total > b.Total
	})
	rows := make([]string, 0, len(names))
	for _, name := range names {
		ep := stats.Endpoints[name]
		rows = append(rows, fmt.Sprintf("[%s](fg:cyan) | %d reqs | RPS %.1f | P95 %.1fms | Err %d",
			name, ep.Total, ep.RequestsPerSec, ep.P95LatencyMs, ep.Failures))
	}
	return rows
}

func formatStatusRows(buckets map[string]map[string]int) []string {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	if len(rows) > maxListRows {
		rows = rows[:maxListRows]
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, fmt.Sprintf("[%s %s](fg:red) %d", strings.ToUpper(row.Protocol), row.Code, row.Count))
	}
	return out
}

func formatErrorRows(errs map[string]int) []string {
	if len(errs) == 0 {
		return []string{"[No errors](fg:green)"}
	}
	types := make([]string, 0, len(errs))
	for t := range errs {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if errs[types[i]] != errs[types[j]] {
			return errs[types[i]] > errs[types[j]]
		}
		return types[i] < types[j]
	})
	if len(types) > maxListRows {
		types = types[:maxListRows]
	}
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, fmt.Sprintf("%s: %d", metrics.FriendlyErrorName(t), errs[t]))
	}
	return out
}
