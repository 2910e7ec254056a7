package server

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/varko/masterlist/internal/stats"
	"github.com/varko/masterlist/internal/store"
)

type staticList []store.Endpoint

func (l staticList) List(enabledOnly bool) []store.Endpoint {
	return append([]store.Endpoint(nil), l...)
}

func makeEndpoints(n int) staticList {
	out := make(staticList, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, store.Endpoint{IP: fmt.Sprintf("192.0.2.%d", i+1), Port: 27015})
	}
	return out
}

// startServer runs the read loop on a loopback socket and returns the
// server address plus a cleanup-registered cancel.
func startServer(t *testing.T, s *Server) *net.UDPAddr {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to open socket: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.serveConn(ctx, conn)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return conn.LocalAddr().(*net.UDPAddr)
}

func dialServer(t *testing.T, addr *net.UDPAddr) *net.UDPConn {
	t.Helper()
	client, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	client.SetDeadline(time.Now().Add(5 * time.Second))
	return client
}

func queryOnce(t *testing.T, client *net.UDPConn, cursor string) ([]store.Endpoint, bool) {
	t.Helper()

	if _, err := client.Write([]byte("1" + cursor + "\x00")); err != nil {
		t.Fatalf("failed to send query: %v", err)
	}
	buf := make([]byte, maxDatagramSize)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("failed to read reply: %v", err)
	}
	endpoints, final, err := DecodeBatch(buf[:n])
	if err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	return endpoints, final
}

func TestServeSingleBatch(t *testing.T) {
	collector := stats.NewCollector()
	list := makeEndpoints(3)
	s, err := New(list, collector, Options{Addr: "127.0.0.1:0", BatchSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	addr := startServer(t, s)
	client := dialServer(t, addr)

	endpoints, final, total := queryAll(t, client)
	if total != 1 {
		t.Errorf("expected a single batch, got %d", total)
	}
	if !final {
		t.Error("expected final batch")
	}
	if len(endpoints) != 3 {
		t.Errorf("expected 3 endpoints, got %d", len(endpoints))
	}

	summary := collector.Summary()
	if summary.TotalRequests != 1 {
		t.Errorf("expected 1 recorded request, got %d", summary.TotalRequests)
	}
	if summary.TotalPacketsSent != 1 {
		t.Errorf("expected 1 packet sent, got %d", summary.TotalPacketsSent)
	}
	if summary.UniqueIdentities != 1 {
		t.Errorf("expected 1 unique identity, got %d", summary.UniqueIdentities)
	}
}

// queryAll pages through the full list the way a client would.
func queryAll(t *testing.T, client *net.UDPConn) ([]store.Endpoint, bool, int) {
	t.Helper()

	var all []store.Endpoint
	cursor := firstCursor
	final := false
	batches := 0
	for !final && batches < 100 {
		var batch []store.Endpoint
		batch, final = queryOnce(t, client, cursor)
		batches++
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		cursor = batch[len(batch)-1].String()
	}
	return all, final, batches
}

func TestServePaginatesWithCursor(t *testing.T) {
	collector := stats.NewCollector()
	list := makeEndpoints(7)
	s, err := New(list, collector, Options{Addr: "127.0.0.1:0", BatchSize: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	addr := startServer(t, s)
	client := dialServer(t, addr)

	endpoints, final, batches := queryAll(t, client)
	if !final {
		t.Error("expected pagination to finish")
	}
	if batches != 3 {
		t.Errorf("expected 3 batches of size 3, got %d", batches)
	}
	if len(endpoints) != 7 {
		t.Fatalf("expected all 7 endpoints, got %d", len(endpoints))
	}
	for i, ep := range endpoints {
		if want := fmt.Sprintf("192.0.2.%d", i+1); ep.IP != want {
			t.Errorf("endpoint %d = %s, want %s", i, ep.IP, want)
		}
	}
}

func TestServeRecordsMalformedDatagrams(t *testing.T) {
	collector := stats.NewCollector()
	s, err := New(makeEndpoints(1), collector, Options{Addr: "127.0.0.1:0", BatchSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	addr := startServer(t, s)
	client := dialServer(t, addr)

	if _, err := client.Write([]byte("garbage")); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	// Valid query afterwards proves the loop survived and gives the
	// error counter time to land.
	queryOnce(t, client, firstCursor)

	summary := collector.Summary()
	if summary.TotalErrors != 1 {
		t.Errorf("expected 1 error, got %d", summary.TotalErrors)
	}
	if summary.ErrorsByKind["malformed"] != 1 {
		t.Errorf("expected malformed error kind, got %v", summary.ErrorsByKind)
	}
	if summary.TotalRequests != 1 {
		t.Errorf("malformed datagram must not count as a request, got %d", summary.TotalRequests)
	}
}

func TestServeAppliesResolver(t *testing.T) {
	collector := stats.NewCollector()
	s, err := New(makeEndpoints(1), collector, Options{
		Addr:      "127.0.0.1:0",
		BatchSize: 10,
		Resolver:  ResolverFunc(func(ip string) string { return "loopback" }),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	addr := startServer(t, s)
	client := dialServer(t, addr)
	queryOnce(t, client, firstCursor)

	top := collector.TopCategories(1)
	if len(top) != 1 || top[0].Label != "loopback" {
		t.Errorf("expected resolver category recorded, got %v", top)
	}
}

func TestServeThrottlesPerSource(t *testing.T) {
	collector := stats.NewCollector()
	s, err := New(makeEndpoints(1), collector, Options{
		Addr:      "127.0.0.1:0",
		BatchSize: 10,
		RateLimit: 0.0001,
		RateBurst: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	addr := startServer(t, s)
	client := dialServer(t, addr)

	// Burst of 2 passes, the rest are throttled and get no reply.
	queryOnce(t, client, firstCursor)
	queryOnce(t, client, firstCursor)
	for i := 0; i < 3; i++ {
		if _, err := client.Write([]byte("1" + firstCursor + "\x00")); err != nil {
			t.Fatalf("failed to send: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if collector.Summary().ErrorsByKind["throttled"] == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	summary := collector.Summary()
	if summary.TotalRequests != 2 {
		t.Errorf("expected 2 accepted requests, got %d", summary.TotalRequests)
	}
	if summary.ErrorsByKind["throttled"] != 3 {
		t.Errorf("expected 3 throttled drops, got %v", summary.ErrorsByKind)
	}
}

func TestNewValidatesArguments(t *testing.T) {
	collector := stats.NewCollector()
	if _, err := New(nil, collector, Options{BatchSize: 1}); err == nil {
		t.Error("expected error for nil lister")
	}
	if _, err := New(makeEndpoints(1), nil, Options{BatchSize: 1}); err == nil {
		t.Error("expected error for nil collector")
	}
	if _, err := New(makeEndpoints(1), collector, Options{BatchSize: 0}); err == nil {
		t.Error("expected error for zero batch size")
	}
}
