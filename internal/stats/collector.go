package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// rawStampCapacity bounds the raw-timestamp ring used for the
	// instantaneous rate. If traffic is heavy enough that the ring spans
	// less than the rate window, CurrentRate undercounts; that is an
	// accepted approximation of the short-window estimate.
	rawStampCapacity = 300

	// bucketCapacity bounds the per-second history ring.
	bucketCapacity = 60

	// DefaultRateWindow is the trailing window CurrentRate uses when the
	// caller passes a non-positive window.
	DefaultRateWindow = 5 * time.Second
)

// Collector records inbound request events in a thread-safe manner and
// serves consistent aggregate views to concurrent readers. One mutex guards
// the whole state: every recording call applies as a single atomic step and
// no reader ever observes a partially applied event.
type Collector struct {
	mu  sync.Mutex
	now func() time.Time

	totalRequests    int64
	totalPacketsSent int64
	totalErrors      int64

	identities map[string]*identityEntry
	categories map[string]*categoryEntry
	catSeq     uint64

	errorsByKind map[string]int64

	hist *hdrhistogram.Histogram

	stamps        *timestampRing
	buckets       *bucketRing
	currentSecond int64
	currentCount  int

	start     time.Time
	lastEvent time.Time
}

type identityEntry struct {
	count     int64
	firstSeen time.Time
}

type categoryEntry struct {
	count int64
	seq   uint64 // insertion order, breaks ranking ties deterministically
}

// NewCollector creates a collector and captures its start time.
func NewCollector() *Collector {
	return newCollector(time.Now)
}

func newCollector(now func() time.Time) *Collector {
	c := &Collector{
		now:          now,
		identities:   make(map[string]*identityEntry),
		categories:   make(map[string]*categoryEntry),
		errorsByKind: make(map[string]int64),
		// Track handling latencies from 1µs up to 60s with 3 significant figures.
		hist:    hdrhistogram.New(1, 60_000_000, 3),
		stamps:  newTimestampRing(rawStampCapacity),
		buckets: newBucketRing(bucketCapacity),
	}
	t := c.now()
	c.start = t
	c.currentSecond = t.Unix()
	return c
}

// RecordRequest records one inbound client request. The identity is an
// opaque requester key (typically a source address); category is an
// already-resolved label and may be empty, meaning no category was provided.
func (c *Collector) RecordRequest(identity, category string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	c.totalRequests++
	c.lastEvent = now

	entry := c.identities[identity]
	if entry == nil {
		entry = &identityEntry{firstSeen: now}
		c.identities[identity] = entry
	}
	entry.count++

	if category != "" {
		cat := c.categories[category]
		if cat == nil {
			cat = &categoryEntry{seq: c.catSeq}
			c.catSeq++
			c.categories[category] = cat
		}
		cat.count++
	}

	c.stamps.push(now)

	sec := now.Unix()
	if sec != c.currentSecond {
		if c.currentCount > 0 {
			c.buckets.push(c.currentCount)
		}
		c.currentSecond = sec
		c.currentCount = 1
	} else {
		c.currentCount++
	}
}

// RecordPacketsSent adds n to the sent-packet counter.
func (c *Collector) RecordPacketsSent(n int64) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalPacketsSent += n
}

// RecordError records one error occurrence of the given kind. An empty kind
// is counted under "general".
func (c *Collector) RecordError(kind string) {
	if kind == "" {
		kind = "general"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalErrors++
	c.errorsByKind[kind]++
}

// ObserveLatency records the handling latency of one request.
func (c *Collector) ObserveLatency(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	us := d.Microseconds()
	if us < c.hist.LowestTrackableValue() {
		us = c.hist.LowestTrackableValue()
	}
	if us > c.hist.HighestTrackableValue() {
		us = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(us)
}

// UniqueCount returns how many distinct identities have been seen.
func (c *Collector) UniqueCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.identities)
}

// TotalRequests returns the cumulative request count.
func (c *Collector) TotalRequests() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalRequests
}

// CurrentRate estimates requests per second over the trailing window by
// filtering the raw-timestamp ring. A non-positive window selects
// DefaultRateWindow.
func (c *Collector) CurrentRate(window time.Duration) float64 {
	if window <= 0 {
		window = DefaultRateWindow
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentRateLocked(window)
}

func (c *Collector) currentRateLocked(window time.Duration) float64 {
	recent := c.stamps.countSince(c.now().Add(-window))
	if recent == 0 {
		return 0
	}
	return float64(recent) / window.Seconds()
}

// AverageRate returns total requests divided by uptime, or 0 when uptime is
// not yet positive.
func (c *Collector) AverageRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.averageRateLocked()
}

func (c *Collector) averageRateLocked() float64 {
	uptime := c.now().Sub(c.start).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(c.totalRequests) / uptime
}

// Uptime returns the elapsed time since construction or the last Reset.
func (c *Collector) Uptime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uptimeLocked()
}

func (c *Collector) uptimeLocked() time.Duration {
	d := c.now().Sub(c.start)
	if d < 0 {
		return 0
	}
	return d
}

// RateHistory returns a copy of the per-second bucket counts, oldest first.
// Only seconds that saw at least one event produce a bucket; idle seconds
// are not zero-filled.
func (c *Collector) RateHistory() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buckets.values()
}

// Reset clears all recorded state and re-captures the start time, as if the
// collector had just been constructed. Atomic with respect to concurrent
// readers and writers.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.totalRequests = 0
	c.totalPacketsSent = 0
	c.totalErrors = 0
	c.identities = make(map[string]*identityEntry)
	c.categories = make(map[string]*categoryEntry)
	c.catSeq = 0
	c.errorsByKind = make(map[string]int64)
	c.hist.Reset()
	c.stamps.reset()
	c.buckets.reset()
	c.currentSecond = now.Unix()
	c.currentCount = 0
	c.start = now
	c.lastEvent = time.Time{}
}
