package stats

import (
	"fmt"
	"time"
)

// Summary is an immutable snapshot of the collector, computed under one lock
// hold so every field reflects the same instant.
type Summary struct {
	TotalRequests    int64 `json:"total_requests"`
	TotalPacketsSent int64 `json:"total_packets_sent"`
	TotalErrors      int64 `json:"total_errors"`
	UniqueIdentities int   `json:"unique_identities"`
	UniqueCategories int   `json:"unique_categories"`

	Uptime          time.Duration `json:"-"`
	UptimeSeconds   float64       `json:"uptime_seconds"`
	UptimeFormatted string        `json:"uptime_formatted"`
	LastEvent       string        `json:"last_event"`

	CurrentRate float64 `json:"current_rate"`
	AverageRate float64 `json:"average_rate"`
	RateHistory []int   `json:"rate_history,omitempty"`

	TopCategories []RankEntry      `json:"top_categories,omitempty"`
	TopIdentities []RankEntry      `json:"top_identities,omitempty"`
	ErrorsByKind  map[string]int64 `json:"errors_by_kind,omitempty"`

	P50LatencyMs float64 `json:"p50_latency_ms"`
	P90LatencyMs float64 `json:"p90_latency_ms"`
	P99LatencyMs float64 `json:"p99_latency_ms"`
}

// Summary computes a complete snapshot. Every field is taken under the same
// lock hold, never a mix of states from different instants.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	uptime := c.uptimeLocked()
	s := Summary{
		TotalRequests:    c.totalRequests,
		TotalPacketsSent: c.totalPacketsSent,
		TotalErrors:      c.totalErrors,
		UniqueIdentities: len(c.identities),
		UniqueCategories: len(c.categories),
		Uptime:           uptime,
		UptimeSeconds:    uptime.Seconds(),
		UptimeFormatted:  FormatUptime(uptime),
		LastEvent:        formatLastEvent(c.lastEvent),
		CurrentRate:      c.currentRateLocked(DefaultRateWindow),
		AverageRate:      c.averageRateLocked(),
		RateHistory:      c.buckets.values(),
		TopCategories:    c.topCategoriesLocked(10),
		TopIdentities:    c.topIdentitiesLocked(10),
	}

	if len(c.errorsByKind) > 0 {
		s.ErrorsByKind = make(map[string]int64, len(c.errorsByKind))
		for kind, count := range c.errorsByKind {
			s.ErrorsByKind[kind] = count
		}
	}

	if c.hist.TotalCount() > 0 {
		s.P50LatencyMs = float64(c.hist.ValueAtQuantile(50)) / 1000.0
		s.P90LatencyMs = float64(c.hist.ValueAtQuantile(90)) / 1000.0
		s.P99LatencyMs = float64(c.hist.ValueAtQuantile(99)) / 1000.0
	}

	return s
}

// FormatUptime renders a duration as "2h 3m 4s", dropping leading zero units.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func formatLastEvent(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Format("2006-01-02 15:04:05")
}
