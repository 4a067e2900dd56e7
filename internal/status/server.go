package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"

	"github.com/1ureka/groundlink/internal/session"
	"github.com/1ureka/groundlink/internal/util"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Report is the body of GET /status.
type Report struct {
	Session session.Status `json:"session"`
	Stats   util.Snapshot  `json:"stats"`
	Uptime  string         `json:"uptime"`
}

// Server serves the status endpoint and the event feed.
type Server struct {
	hub      *Hub
	snapshot func() session.Status
	started  time.Time
}

// NewServer creates a server reading the session through snapshot and
// streaming events published on hub.
func NewServer(hub *Hub, snapshot func() session.Status) *Server {
	return &Server{hub: hub, snapshot: snapshot, started: time.Now()}
}

// Handler returns the routes wrapped with access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /events", s.handleEvents)

	var h http.Handler = mux
	h = handlers.LoggingHandler(util.DebugWriter("http: "), h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}), handlers.PrintRecoveryStack(false))(h)
	return h
}

// Serve listens on addr until ctx is cancelled. It returns once the
// listener is bound, reporting the bound address.
func (s *Server) Serve(ctx context.Context, addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("status listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("status server: %v", err)
		}
	}()

	util.LogInfo("status server listening on http://%s/status", ln.Addr())
	return ln.Addr(), nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rep := Report{
		Session: s.snapshot(),
		Stats:   util.Stats.Snapshot(),
		Uptime:  time.Since(s.started).Truncate(time.Second).String(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LogWarning("events upgrade: %v", err)
		return
	}
	defer conn.Close()

	id := util.ConnID(conn.LocalAddr(), conn.RemoteAddr())
	outbox := s.hub.Register(id)
	defer s.hub.Unregister(id)
	util.LogDebug("[%08x] event subscriber connected from %s", id, conn.RemoteAddr())

	// The reader only notices the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data := <-outbox:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				util.LogDebug("[%08x] event subscriber write: %v", id, err)
				return
			}
		case <-gone:
			util.LogDebug("[%08x] event subscriber disconnected", id)
			return
		case <-r.Context().Done():
			return
		}
	}
}

// recoveryLogger routes recovered panics to the error log.
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	util.LogError("status handler panic: %s", fmt.Sprint(v...))
}
