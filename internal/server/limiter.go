package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxLimiterEntries bounds the per-source limiter table. When the
// table fills up it is dropped wholesale, which briefly resets
// throttling state rather than letting the map grow without bound.
const maxLimiterEntries = 4096

// limiterTable hands out one token bucket per source IP.
type limiterTable struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[string]*rate.Limiter
}

func newLimiterTable(perSecond float64, burst int) *limiterTable {
	if burst < 1 {
		burst = 1
	}
	return &limiterTable{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		entries: make(map[string]*rate.Limiter),
	}
}

// allow reports whether a query from ip may proceed.
func (t *limiterTable) allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	lim, ok := t.entries[ip]
	if !ok {
		if len(t.entries) >= maxLimiterEntries {
			t.entries = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(t.limit, t.burst)
		t.entries[ip] = lim
	}
	return lim.Allow()
}
