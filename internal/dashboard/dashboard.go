// Package dashboard renders a live terminal view of the collector.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/varko/masterlist/internal/stats"
)

const rankDisplayLimit = 10

// Options holds the static facts shown alongside the live counters.
type Options struct {
	ListenAddr string
	APIAddr    string
	StorePath  string
	ConfigFile string
	// ServerCount supplies the current store size. Nil hides the row.
	ServerCount func() int
	// Refresh is the redraw interval. Zero defaults to 500ms.
	Refresh time.Duration
}

// Dashboard polls the collector and redraws the grid on a ticker.
type Dashboard struct {
	collector    *stats.Collector
	opts         Options
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	grid         *ui.Grid
	summaryPara  *widgets.Paragraph
	countersPara *widgets.Paragraph
	rateGauge    *widgets.Gauge
	rateSparkle  *widgets.SparklineGroup
	latencyPara  *widgets.Paragraph
	categoryList *widgets.List
	identityList *widgets.List
	errorList    *widgets.List
	peakRate     float64
}

// New initializes the terminal and builds the dashboard. shutdownFunc
// is invoked when the operator presses q or Ctrl-C.
func New(collector *stats.Collector, opts Options, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}
	if opts.Refresh <= 0 {
		opts.Refresh = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:    collector,
		opts:         opts,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
	}
	d.initWidgets()
	d.setupGrid()
	return d, nil
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Master Server"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.countersPara = widgets.NewParagraph()
	d.countersPara.Title = "Counters"
	d.countersPara.Text = "Waiting for data..."
	d.countersPara.BorderStyle.Fg = ui.ColorCyan

	d.rateGauge = widgets.NewGauge()
	d.rateGauge.Title = "Queries Per Second"
	d.rateGauge.Percent = 0
	d.rateGauge.BarColor = ui.ColorBlue
	d.rateGauge.BorderStyle.Fg = ui.ColorCyan
	d.rateGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	sparkline := widgets.NewSparkline()
	sparkline.Title = "Requests/s"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}
	d.rateSparkle = widgets.NewSparklineGroup(sparkline)
	d.rateSparkle.Title = "Request Rate History"
	d.rateSparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Reply Latency"
	d.latencyPara.Text = "P50: 0ms\nP90: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.categoryList = widgets.NewList()
	d.categoryList.Title = "Top Categories"
	d.categoryList.Rows = []string{"Awaiting data"}
	d.categoryList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.categoryList.BorderStyle.Fg = ui.ColorCyan

	d.identityList = widgets.NewList()
	d.identityList.Title = "Top Clients"
	d.identityList.Rows = []string{"Awaiting data"}
	d.identityList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.identityList.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors"
	d.errorList.Rows = []string{"No errors"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.18,
			ui.NewCol(0.5, d.rateGauge),
			ui.NewCol(0.5, d.countersPara),
		),
		ui.NewRow(0.26,
			ui.NewCol(0.65, d.rateSparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.40,
			ui.NewCol(0.35, d.categoryList),
			ui.NewCol(0.35, d.identityList),
			ui.NewCol(0.30, d.errorList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.opts.Refresh)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from one Summary snapshot.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	summary := d.collector.Summary()

	if summary.CurrentRate > d.peakRate {
		d.peakRate = summary.CurrentRate
	}
	scale := d.peakRate
	if scale < 10 {
		scale = 10
	}
	percent := int(summary.CurrentRate / scale * 100)
	if percent > 100 {
		percent = 100
	}
	d.rateGauge.Percent = percent
	d.rateGauge.Label = fmt.Sprintf("%.1f QPS (peak %.1f)", summary.CurrentRate, d.peakRate)

	if len(summary.RateHistory) > 0 {
		data := make([]float64, len(summary.RateHistory))
		for i, v := range summary.RateHistory {
			data[i] = float64(v)
		}
		d.rateSparkle.Sparklines[0].Data = data
		d.rateSparkle.Title = fmt.Sprintf("Request Rate History | Avg: %.2f/s", summary.AverageRate)
	}

	d.summaryPara.Text = d.formatSummaryLine(summary)

	d.countersPara.Text = fmt.Sprintf(
		"Total Requests:   %d\nPackets Sent:     %d\nErrors:           %d\nUnique Clients:   %d\nCategories:       %d\nLast Request:     %s",
		summary.TotalRequests,
		summary.TotalPacketsSent,
		summary.TotalErrors,
		summary.UniqueIdentities,
		summary.UniqueCategories,
		summary.LastEvent,
	)

	d.latencyPara.Text = fmt.Sprintf(
		"P50: %.2fms\nP90: %.2fms\nP99: %.2fms",
		summary.P50LatencyMs,
		summary.P90LatencyMs,
		summary.P99LatencyMs,
	)

	d.categoryList.Rows = formatRankRows(summary.TopCategories, summary.TotalRequests)
	d.identityList.Rows = formatRankRows(summary.TopIdentities, summary.TotalRequests)
	d.errorList.Rows = formatErrorRows(summary.ErrorsByKind)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func (d *Dashboard) formatSummaryLine(summary stats.Summary) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Listen: %s", d.opts.ListenAddr))
	if d.opts.APIAddr != "" {
		parts = append(parts, fmt.Sprintf("API: %s", d.opts.APIAddr))
	}
	parts = append(parts, fmt.Sprintf("Store: %s", d.opts.StorePath))
	if d.opts.ServerCount != nil {
		parts = append(parts, fmt.Sprintf("Servers: %d", d.opts.ServerCount()))
	}
	if d.opts.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.opts.ConfigFile))
	}

	return fmt.Sprintf("%s\nUptime: %s | Press q to quit",
		strings.Join(parts, " | "),
		summary.UptimeFormatted,
	)
}

func formatRankRows(entries []stats.RankEntry, total int64) []string {
	if len(entries) == 0 {
		return []string{"[No data yet](fg:green)"}
	}
	if len(entries) > rankDisplayLimit {
		entries = entries[:rankDisplayLimit]
	}
	rows := make([]string, 0, len(entries))
	for _, entry := range entries {
		share := 0.0
		if total > 0 {
			share = float64(entry.Count) / float64(total) * 100
		}
		label := entry.Label
		if label == "" {
			label = "(none)"
		}
		rows = append(rows, fmt.Sprintf("[%s](fg:cyan) %d (%.1f%%)", label, entry.Count, share))
	}
	return rows
}

func formatErrorRows(errorsByKind map[string]int64) []string {
	if len(errorsByKind) == 0 {
		return []string{"[No errors](fg:green)"}
	}
	kinds := make([]string, 0, len(errorsByKind))
	for kind := range errorsByKind {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if errorsByKind[kinds[i]] == errorsByKind[kinds[j]] {
			return kinds[i] < kinds[j]
		}
		return errorsByKind[kinds[i]] > errorsByKind[kinds[j]]
	})
	if len(kinds) > rankDisplayLimit {
		kinds = kinds[:rankDisplayLimit]
	}
	rows := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, fmt.Sprintf("[%s](fg:red) %d", kind, errorsByKind[kind]))
	}
	return rows
}
