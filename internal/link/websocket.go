package link

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/groundlink/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket is a link to a networked radio gateway. Each binary message
// carries one sealed frame.
type WebSocket struct {
	*Inbox

	conn *websocket.Conn
	mu   sync.Mutex // gorilla allows one concurrent writer
}

var _ Link = (*WebSocket)(nil)

// DialWebSocket connects to the gateway at url.
func DialWebSocket(ctx context.Context, url string) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to radio gateway: %w", err)
	}
	util.LogInfo("connected to radio gateway %s", url)
	return NewWebSocket(conn), nil
}

// AcceptWebSocket upgrades an HTTP request into a link. Used by gateways and
// the satellite simulator.
func AcceptWebSocket(w http.ResponseWriter, r *http.Request) (*WebSocket, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewWebSocket(conn), nil
}

// NewWebSocket wraps an established connection and starts reading frames.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	ws := &WebSocket{Inbox: NewInbox(), conn: conn}
	go ws.readLoop()
	return ws
}

func (ws *WebSocket) readLoop() {
	for {
		msgType, data, err := ws.conn.ReadMessage()
		if err != nil {
			ws.Fail(err)
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		ws.Deliver(data)
	}
}

// SetReceiveMode is a no-op: the gateway owns the radio direction.
func (ws *WebSocket) SetReceiveMode() error { return nil }

// Transmit sends one frame as a binary message. The gateway has a single
// radio peer, so dest is not used.
func (ws *WebSocket) Transmit(data []byte, dest uint8) bool {
	frame := Seal(data)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := ws.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		util.LogWarning("websocket write failed: %v", err)
		return false
	}
	return true
}

// WaitUntilSent returns immediately: WriteMessage has already flushed.
func (ws *WebSocket) WaitUntilSent(ctx context.Context) error { return ctx.Err() }

// Close sends a close message and closes the connection.
func (ws *WebSocket) Close() error {
	ws.mu.Lock()
	_ = ws.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	ws.mu.Unlock()
	ws.Fail(ErrClosed)
	return ws.conn.Close()
}
