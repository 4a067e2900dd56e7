package rtc

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/1ureka/groundlink/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve listens for one signaling client on addr at /signal, offers a
// DataChannel and returns the link once it opens. The radio front end runs
// this side.
func Serve(ctx context.Context, addr string, cfg Config) (*Link, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start signaling server: %w", err)
	}
	defer listener.Close()
	util.LogInfo("signaling server listening on %s", listener.Addr())

	connCh := make(chan *websocket.Conn, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/signal", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Only accept the first client.
		select {
		case connCh <- conn:
		default:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"))
			conn.Close()
		}
	})
	srv := &http.Server{Handler: mux}
	go func() {
		_ = srv.Serve(listener)
	}()
	defer srv.Close()

	var wsConn *websocket.Conn
	select {
	case wsConn = <-connCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer wsConn.Close()
	util.LogInfo("signaling client connected from %s", wsConn.RemoteAddr())

	return establish(ctx, wsConn, cfg, true)
}

// Dial connects to a signaling server at url (ws://host:port/signal),
// answers its offer and returns the link once the DataChannel opens.
func Dial(ctx context.Context, url string, cfg Config) (*Link, error) {
	wsConn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to signaling server: %w", err)
	}
	defer wsConn.Close()
	util.LogDebug("signaling connected: %s", url)

	return establish(ctx, wsConn, cfg, false)
}
