package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/varko/masterlist/internal/stats"
	"github.com/varko/masterlist/internal/store"
)

const maxDatagramSize = 1400

// Lister supplies the endpoints served to list queries. *store.Store
// satisfies it.
type Lister interface {
	List(enabledOnly bool) []store.Endpoint
}

// Options configures the UDP front-end.
type Options struct {
	// Addr is the UDP listen address in host:port form.
	Addr string
	// BatchSize is how many addresses are packed into one reply.
	BatchSize int
	// RateLimit is the per-source queries-per-second budget. Zero
	// disables throttling.
	RateLimit float64
	// RateBurst is the per-source burst allowance.
	RateBurst int
	// Resolver maps source IPs to category labels. Nil records every
	// request uncategorized.
	Resolver Resolver
	// LogErrors writes one line per rejected datagram to ErrOut.
	LogErrors bool
	// ErrOut receives error log lines. Defaults to os.Stderr.
	ErrOut io.Writer
}

// Server answers batched list queries over UDP and records every
// request into the collector.
type Server struct {
	opts      Options
	list      Lister
	collector *stats.Collector
	limits    *limiterTable
}

// New builds a Server. The socket is not opened until Serve.
func New(list Lister, collector *stats.Collector, opts Options) (*Server, error) {
	if list == nil {
		return nil, errors.New("nil lister")
	}
	if collector == nil {
		return nil, errors.New("nil collector")
	}
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("batch size %d must be >= 1", opts.BatchSize)
	}
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}

	s := &Server{
		opts:      opts,
		list:      list,
		collector: collector,
	}
	if opts.RateLimit > 0 {
		s.limits = newLimiterTable(opts.RateLimit, opts.RateBurst)
	}
	return s, nil
}

// Serve listens on the configured address and answers queries until
// ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("resolving listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}
	return s.serveConn(ctx, conn)
}

// serveConn runs the read loop on an already open socket. Split out so
// tests can drive the server over a loopback socket pair.
func (s *Server) serveConn(ctx context.Context, conn *net.UDPConn) error {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading datagram: %w", err)
		}
		s.handle(conn, src, buf[:n])
	}
}

func (s *Server) handle(conn *net.UDPConn, src *net.UDPAddr, datagram []byte) {
	started := time.Now()
	sourceIP := src.IP.String()

	if s.limits != nil && !s.limits.allow(sourceIP) {
		s.collector.RecordError("throttled")
		return
	}

	query, err := ParseQuery(datagram)
	if err != nil {
		s.collector.RecordError("malformed")
		if s.opts.LogErrors {
			fmt.Fprintf(s.opts.ErrOut, "rejected datagram from %s: %v\n", src, err)
		}
		return
	}

	category := ""
	if s.opts.Resolver != nil {
		category = s.opts.Resolver.Resolve(sourceIP)
	}
	s.collector.RecordRequest(sourceIP, category)

	batch, final := s.nextBatch(query)
	reply, err := EncodeBatch(batch, final)
	if err != nil {
		s.collector.RecordError("encode")
		return
	}
	if _, err := conn.WriteToUDP(reply, src); err != nil {
		s.collector.RecordError("send")
		return
	}
	s.collector.RecordPacketsSent(1)
	s.collector.ObserveLatency(time.Since(started))
}

// nextBatch slices the enabled server list starting after the query
// cursor. An unknown cursor restarts from the beginning.
func (s *Server) nextBatch(query Query) ([]store.Endpoint, bool) {
	endpoints := s.list.List(true)

	start := 0
	if !query.First() {
		for i, ep := range endpoints {
			if ep.String() == query.Cursor {
				start = i + 1
				break
			}
		}
	}

	end := start + s.opts.BatchSize
	if end >= len(endpoints) {
		return endpoints[start:], true
	}
	return endpoints[start:end], false
}
