package output

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/varko/masterlist/internal/stats"
	"github.com/varko/masterlist/internal/store"
)

// StatusPageData feeds the HTML status page template.
type StatusPageData struct {
	GeneratedAt string
	Summary     stats.Summary
	Servers     []store.Record
	MaxRate     int
}

// WriteStatusPage renders a self-contained HTML status page with the
// current summary and server list.
func WriteStatusPage(w io.Writer, summary stats.Summary, servers []store.Record) error {
	maxRate := 1
	for _, v := range summary.RateHistory {
		if v > maxRate {
			maxRate = v
		}
	}

	data := StatusPageData{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Summary:     summary,
		Servers:     servers,
		MaxRate:     maxRate,
	}

	tmpl, err := template.New("status").Funcs(template.FuncMap{
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"barHeight": func(v, max int) int {
			if max == 0 {
				return 0
			}
			return v * 100 / max
		},
		"orNone": func(s string) string {
			if s == "" {
				return "(none)"
			}
			return s
		},
	}).Parse(statusTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

const statusTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>Master Server Status</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; background: #11151c; color: #e6e6e6; }
h1, h2 { color: #6fc3df; }
table { border-collapse: collapse; margin-bottom: 1.5rem; }
th, td { border: 1px solid #2c3440; padding: 0.35rem 0.8rem; text-align: left; }
th { background: #1b2330; }
.bars { display: flex; align-items: flex-end; height: 80px; gap: 2px; margin-bottom: 1.5rem; }
.bars div { width: 8px; background: #3fa34d; }
.muted { color: #8a93a2; }
.disabled { color: #8a93a2; text-decoration: line-through; }
</style>
</head>
<body>
<h1>Master Server Status</h1>
<p class="muted">Generated {{.GeneratedAt}} &middot; Uptime {{.Summary.UptimeFormatted}} &middot; Last request {{.Summary.LastEvent}}</p>

<h2>Counters</h2>
<table>
<tr><th>Total Requests</th><td>{{.Summary.TotalRequests}}</td></tr>
<tr><th>Packets Sent</th><td>{{.Summary.TotalPacketsSent}}</td></tr>
<tr><th>Errors</th><td>{{.Summary.TotalErrors}}</td></tr>
<tr><th>Unique Clients</th><td>{{.Summary.UniqueIdentities}}</td></tr>
<tr><th>Current Rate</th><td>{{formatFloat .Summary.CurrentRate}} req/s</td></tr>
<tr><th>Average Rate</th><td>{{formatFloat .Summary.AverageRate}} req/s</td></tr>
<tr><th>P50 / P90 / P99</th><td>{{formatFloat .Summary.P50LatencyMs}} / {{formatFloat .Summary.P90LatencyMs}} / {{formatFloat .Summary.P99LatencyMs}} ms</td></tr>
</table>

{{if .Summary.RateHistory}}
<h2>Request Rate</h2>
<div class="bars">
{{range .Summary.RateHistory}}<div style="height: {{barHeight . $.MaxRate}}%" title="{{.}}"></div>{{end}}
</div>
{{end}}

{{if .Summary.TopCategories}}
<h2>Top Categories</h2>
<table>
<tr><th>Category</th><th>Requests</th></tr>
{{range .Summary.TopCategories}}<tr><td>{{orNone .Label}}</td><td>{{.Count}}</td></tr>
{{end}}</table>
{{end}}

{{if .Summary.TopIdentities}}
<h2>Top Clients</h2>
<table>
<tr><th>Client</th><th>Requests</th></tr>
{{range .Summary.TopIdentities}}<tr><td>{{.Label}}</td><td>{{.Count}}</td></tr>
{{end}}</table>
{{end}}

<h2>Servers ({{len .Servers}})</h2>
<table>
<tr><th>Address</th><th>Name</th><th>Added</th><th>State</th></tr>
{{range .Servers}}<tr{{if not .Enabled}} class="disabled"{{end}}><td>{{.IP}}:{{.Port}}</td><td>{{.Name}}</td><td>{{.AddedAt.Format "2006-01-02 15:04:05"}}</td><td>{{if .Enabled}}enabled{{else}}disabled{{end}}</td></tr>
{{end}}</table>
</body>
</html>
`
