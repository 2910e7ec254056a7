package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/varko/masterlist/internal/stats"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, summary stats.Summary) {
	fmt.Fprintln(w, "\n--- Master Server Statistics ---")
	fmt.Fprintf(w, "Total Requests:    %d\n", summary.TotalRequests)
	fmt.Fprintf(w, "Packets Sent:      %d\n", summary.TotalPacketsSent)
	fmt.Fprintf(w, "Errors:            %d\n", summary.TotalErrors)
	fmt.Fprintf(w, "Unique Clients:    %d\n", summary.UniqueIdentities)
	fmt.Fprintf(w, "Uptime:            %s\n", summary.UptimeFormatted)
	fmt.Fprintf(w, "Last Request:      %s\n", summary.LastEvent)
	fmt.Fprintf(w, "Current Rate:      %.2f req/s\n", summary.CurrentRate)
	fmt.Fprintf(w, "Average Rate:      %.2f req/s\n", summary.AverageRate)
	fmt.Fprintln(w, "\nReply Latency:")
	fmt.Fprintf(w, "  P50:             %.2fms\n", summary.P50LatencyMs)
	fmt.Fprintf(w, "  P90:             %.2fms\n", summary.P90LatencyMs)
	fmt.Fprintf(w, "  P99:             %.2fms\n", summary.P99LatencyMs)

	if len(summary.TopCategories) > 0 {
		fmt.Fprintln(w, "\nTop Categories:")
		writeRankEntries(w, summary.TopCategories, summary.TotalRequests)
	}
	if len(summary.TopIdentities) > 0 {
		fmt.Fprintln(w, "\nTop Clients:")
		writeRankEntries(w, summary.TopIdentities, summary.TotalRequests)
	}
	if len(summary.ErrorsByKind) > 0 {
		fmt.Fprintln(w, "\nErrors by Kind:")
		kinds := make([]string, 0, len(summary.ErrorsByKind))
		for kind := range summary.ErrorsByKind {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", kind, summary.ErrorsByKind[kind])
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, summary stats.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func writeRankEntries(w io.Writer, entries []stats.RankEntry, total int64) {
	for _, entry := range entries {
		label := entry.Label
		if label == "" {
			label = "(none)"
		}
		share := 0.0
		if total > 0 {
			share = float64(entry.Count) / float64(total) * 100
		}
		fmt.Fprintf(w, "  - %s: %d (%.1f%%)\n", label, entry.Count, share)
	}
}
