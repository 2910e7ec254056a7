package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/varko/masterlist/internal/tracing"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The admin surface is expected to sit behind its own access
	// control; the stream is read-only stats either way.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLive upgrades the connection and pushes one Summary per
// interval until the client goes away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.StartHandlerSpan(r, s.tracer, "/api/live")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		tracing.EndSpan(span, err)
		return
	}
	tracing.EndSpan(span, nil)
	s.trackLive(conn)
	defer s.untrackLive(conn)

	// Drain control frames so pings and the close handshake work.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First snapshot immediately so clients render without waiting a
	// full interval.
	if err := s.pushSummary(conn); err != nil {
		return
	}
	for range ticker.C {
		if err := s.pushSummary(conn); err != nil {
			return
		}
	}
}

func (s *Server) pushSummary(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(s.collector.Summary())
}

func (s *Server) trackLive(conn *websocket.Conn) {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	s.liveConns[conn] = struct{}{}
}

func (s *Server) untrackLive(conn *websocket.Conn) {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	delete(s.liveConns, conn)
	conn.Close()
}

// closeLive disconnects every live stream so their handler goroutines
// unwind during shutdown.
func (s *Server) closeLive() {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	for conn := range s.liveConns {
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		conn.Close()
		delete(s.liveConns, conn)
	}
}
