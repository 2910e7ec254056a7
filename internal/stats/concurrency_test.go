package stats_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/varko/masterlist/internal/stats"
)

func TestConcurrentRecordingNoLostUpdates(t *testing.T) {
	c := stats.NewCollector()

	var wg sync.WaitGroup
	workers := 16
	recordsPerWorker := 500

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			identity := fmt.Sprintf("10.0.%d.1", w)
			for i := 0; i < recordsPerWorker; i++ {
				c.RecordRequest(identity, "US")
			}
		}(w)
	}
	wg.Wait()

	expected := int64(workers * recordsPerWorker)
	if got := c.TotalRequests(); got != expected {
		t.Errorf("expected total %d, got %d", expected, got)
	}
	if got := c.UniqueCount(); got != workers {
		t.Errorf("expected %d unique identities, got %d", workers, got)
	}
	if got := c.TopCategories(1); len(got) != 1 || got[0].Count != expected {
		t.Errorf("expected US category count %d, got %v", expected, got)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c := stats.NewCollector()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers poll every accessor while writers hammer the record path.
	// Each summary must be internally consistent: the identity set can
	// never exceed the request count it was snapshotted with.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := c.Summary()
				if int64(s.UniqueIdentities) > s.TotalRequests {
					t.Error("summary saw more identities than requests")
					return
				}
				c.CurrentRate(0)
				c.Uptime()
				c.RateHistory()
			}
		}()
	}

	var writers sync.WaitGroup
	for w := 0; w < 8; w++ {
		writers.Add(1)
		go func(w int) {
			defer writers.Done()
			for i := 0; i < 1000; i++ {
				c.RecordRequest(fmt.Sprintf("host-%d-%d", w, i%10), "DE")
				c.RecordPacketsSent(1)
			}
		}(w)
	}
	writers.Wait()
	close(stop)
	wg.Wait()

	if got := c.TotalRequests(); got != 8000 {
		t.Errorf("expected 8000 requests, got %d", got)
	}
}

func TestConcurrentResetLeavesWellFormedState(t *testing.T) {
	c := stats.NewCollector()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.RecordRequest("10.0.0.1", "US")
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			c.Reset()
		}
	}()
	wg.Wait()

	// Whatever interleaving happened, the final state is one of the
	// well-defined outcomes: counters and tables agree with each other.
	s := c.Summary()
	if s.TotalRequests < 0 {
		t.Errorf("negative request count: %d", s.TotalRequests)
	}
	if s.TotalRequests == 0 && s.UniqueIdentities != 0 {
		t.Errorf("reset left identities behind: %+v", s)
	}
	if s.TotalRequests > 0 && s.UniqueIdentities == 0 {
		t.Errorf("requests recorded without identities: %+v", s)
	}
}

func TestSummaryJSONSchema(t *testing.T) {
	c := stats.NewCollector()

	c.RecordRequest("10.0.0.1", "US")
	c.RecordError("decode")
	c.ObserveLatency(10 * time.Millisecond)

	data, err := json.Marshal(c.Summary())
	if err != nil {
		t.Fatalf("failed to marshal summary: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	requiredFields := []string{
		"total_requests", "total_packets_sent", "total_errors",
		"unique_identities", "unique_categories", "uptime_seconds",
		"uptime_formatted", "last_event", "current_rate", "average_rate",
		"p50_latency_ms", "p90_latency_ms", "p99_latency_ms",
	}
	for _, field := range requiredFields {
		if _, ok := parsed[field]; !ok {
			t.Errorf("missing field %q in JSON output", field)
		}
	}
}

func TestReturnedCollectionsAreCopies(t *testing.T) {
	c := stats.NewCollector()

	c.RecordRequest("10.0.0.1", "US")
	c.RecordError("decode")

	s := c.Summary()
	s.ErrorsByKind["decode"] = 99
	s.TopCategories[0].Count = 99

	fresh := c.Summary()
	if fresh.ErrorsByKind["decode"] != 1 {
		t.Error("expected summary error table to be a copy")
	}
	if fresh.TopCategories[0].Count != 1 {
		t.Error("expected summary rankings to be a copy")
	}
}
