package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/varko/masterlist/internal/stats"
)

// ProgressReporter displays a one-line live status on a ticker.
type ProgressReporter struct {
	collector *stats.Collector
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *stats.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			summary := p.collector.Summary()
			line := fmt.Sprintf("\rRequests: %d | Clients: %d | Errors: %d | QPS: %.1f | Uptime: %s",
				summary.TotalRequests, summary.UniqueIdentities, summary.TotalErrors,
				summary.CurrentRate, summary.UptimeFormatted)
			if len(summary.TopCategories) > 0 && summary.TotalRequests > 0 {
				top := summary.TopCategories[0]
				share := float64(top.Count) / float64(summary.TotalRequests) * 100
				line += fmt.Sprintf(" | Top: %s (%.0f%%)", top.Label, share)
			}
			fmt.Fprint(p.writer, line)
		case <-p.done:
			return
		}
	}
}
