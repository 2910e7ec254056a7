// Package api exposes the admin HTTP surface: stats and chart feeds,
// server list management, and a websocket live stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/varko/masterlist/internal/discovery"
	"github.com/varko/masterlist/internal/output"
	"github.com/varko/masterlist/internal/stats"
	"github.com/varko/masterlist/internal/store"
	"github.com/varko/masterlist/internal/tracing"
)

const defaultLiveInterval = time.Second

// Server wires the admin handlers to the store and the collector.
type Server struct {
	store     *store.Store
	collector *stats.Collector
	tracer    trace.Tracer
	interval  time.Duration

	liveMu    sync.Mutex
	liveConns map[*websocket.Conn]struct{}
}

// New builds the admin API. A nil tracer disables span recording; a
// zero interval defaults the live stream to one push per second.
func New(st *store.Store, collector *stats.Collector, tracer trace.Tracer, liveInterval time.Duration) (*Server, error) {
	if st == nil {
		return nil, errors.New("nil store")
	}
	if collector == nil {
		return nil, errors.New("nil collector")
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("masterlist")
	}
	if liveInterval <= 0 {
		liveInterval = defaultLiveInterval
	}
	return &Server{
		store:     st,
		collector: collector,
		tracer:    tracer,
		interval:  liveInterval,
		liveConns: make(map[*websocket.Conn]struct{}),
	}, nil
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/chart", s.handleChart)
	mux.HandleFunc("/api/servers", s.handleServers)
	mux.HandleFunc("/api/servers/add", s.handleAdd)
	mux.HandleFunc("/api/servers/remove", s.handleRemove)
	mux.HandleFunc("/api/servers/bulk", s.handleBulk)
	mux.HandleFunc("/api/servers/parse", s.handleParse)
	mux.HandleFunc("/api/stats/reset", s.handleReset)
	mux.HandleFunc("/api/live", s.handleLive)
	mux.HandleFunc("/dashboard", s.handleDashboardPage)
	return mux
}

// ListenAndServe serves the admin API until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		// Shutdown does not touch hijacked connections, so the live
		// websocket streams have to be closed explicitly.
		s.closeLive()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type actionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeResult(w http.ResponseWriter, status int, success bool, format string, args ...interface{}) {
	writeJSON(w, status, actionResult{Success: success, Message: fmt.Sprintf(format, args...)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, span := tracing.StartHandlerSpan(r, s.tracer, "/api/stats")
	defer tracing.EndSpan(span, nil)

	writeJSON(w, http.StatusOK, s.collector.Summary())
}

type chartData struct {
	RequestRate   []int             `json:"request_rate"`
	TopCategories []stats.RankEntry `json:"top_categories"`
	CurrentRate   float64           `json:"current_rate"`
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, span := tracing.StartHandlerSpan(r, s.tracer, "/api/chart")
	defer tracing.EndSpan(span, nil)

	summary := s.collector.Summary()
	writeJSON(w, http.StatusOK, chartData{
		RequestRate:   summary.RateHistory,
		TopCategories: summary.TopCategories,
		CurrentRate:   summary.CurrentRate,
	})
}

func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, span := tracing.StartHandlerSpan(r, s.tracer, "/api/servers")
	defer tracing.EndSpan(span, nil)

	records := s.store.ListDetailed()
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

type serverRequest struct {
	ID          string `json:"id,omitempty"`
	IP          string `json:"ip"`
	Port        int    `json:"port"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, span := tracing.StartHandlerSpan(r, s.tracer, "/api/servers/add")

	var req serverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		tracing.EndSpan(span, err)
		writeResult(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	if _, err := s.store.Add(req.IP, req.Port, req.Name, req.Description); err != nil {
		tracing.EndSpan(span, err)
		status := http.StatusBadRequest
		if errors.Is(err, store.ErrDuplicate) {
			status = http.StatusConflict
		}
		writeResult(w, status, false, "%v", err)
		return
	}
	tracing.EndSpan(span, nil)
	writeResult(w, http.StatusOK, true, "added %s:%d", req.IP, req.Port)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, span := tracing.StartHandlerSpan(r, s.tracer, "/api/servers/remove")

	var req serverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		tracing.EndSpan(span, err)
		writeResult(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	var err error
	if req.ID != "" {
		err = s.store.RemoveByID(req.ID)
	} else {
		err = s.store.Remove(req.IP, req.Port)
	}
	if err != nil {
		tracing.EndSpan(span, err)
		status := http.StatusBadRequest
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeResult(w, status, false, "%v", err)
		return
	}
	tracing.EndSpan(span, nil)
	writeResult(w, http.StatusOK, true, "removed")
}

type bulkResult struct {
	Success bool `json:"success"`
	Added   int  `json:"added"`
	Skipped int  `json:"skipped"`
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, span := tracing.StartHandlerSpan(r, s.tracer, "/api/servers/bulk")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		tracing.EndSpan(span, err)
		writeResult(w, http.StatusBadRequest, false, "failed to read body")
		return
	}

	candidates, skipped, err := discovery.ParseBulkJSON(body)
	if err != nil {
		tracing.EndSpan(span, err)
		writeResult(w, http.StatusBadRequest, false, "%v", err)
		return
	}

	added := 0
	for _, c := range candidates {
		if _, err := s.store.Add(c.IP, c.Port, "", ""); err != nil {
			skipped++
			continue
		}
		added++
	}
	tracing.EndSpan(span, nil)
	writeJSON(w, http.StatusOK, bulkResult{Success: added > 0, Added: added, Skipped: skipped})
}

// handleParse scans a free-text body (pasted server lists, forum posts)
// for ip:port occurrences and registers every new endpoint found.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, span := tracing.StartHandlerSpan(r, s.tracer, "/api/servers/parse")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		tracing.EndSpan(span, err)
		writeResult(w, http.StatusBadRequest, false, "failed to read body")
		return
	}

	candidates := discovery.ExtractFromText(string(body))
	added, skipped := 0, 0
	for _, c := range candidates {
		if _, err := s.store.Add(c.IP, c.Port, "", ""); err != nil {
			skipped++
			continue
		}
		added++
	}
	tracing.EndSpan(span, nil)
	writeJSON(w, http.StatusOK, bulkResult{Success: added > 0, Added: added, Skipped: skipped})
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, span := tracing.StartHandlerSpan(r, s.tracer, "/dashboard")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := output.WriteStatusPage(w, s.collector.Summary(), s.store.ListDetailed())
	tracing.EndSpan(span, err)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, span := tracing.StartHandlerSpan(r, s.tracer, "/api/stats/reset")
	defer tracing.EndSpan(span, nil)

	s.collector.Reset()
	writeResult(w, http.StatusOK, true, "statistics reset")
}
