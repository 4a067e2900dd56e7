package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/groundlink/internal/util"
)

// signaler serializes outgoing signaling messages and applies incoming ones
// to a Link's PeerConnection.
type signaler struct {
	l    *Link
	conn *websocket.Conn
	mu   sync.Mutex
}

// send writes a signaling message to the WebSocket, guarded by a mutex.
func (s *signaler) send(msg message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}

// sendOffer creates an SDP offer, sets it as local description, and sends it.
func (s *signaler) sendOffer() error {
	offer, err := s.l.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := s.l.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	return s.send(message{Type: msgTypeOffer, SDP: offer.SDP})
}

// sendAnswer creates an SDP answer, sets it as local description, and sends it.
func (s *signaler) sendAnswer() error {
	answer, err := s.l.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := s.l.pc.SetLocalDescription(answer); err != nil {
		return err
	}
	return s.send(message{Type: msgTypeAnswer, SDP: answer.SDP})
}

// trickle forwards local ICE candidates as they are gathered. Errors are
// ignored: the WebSocket is closed once the DataChannel opens.
func (s *signaler) trickle() {
	s.l.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, _ := json.Marshal(c.ToJSON())
		_ = s.send(message{Type: msgTypeCandidate, Candidate: string(data)})
	})
}

// watch applies remote signaling messages until the WebSocket fails.
func (s *signaler) watch() error {
	for {
		var msg message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read signaling message: %w", err)
		}

		switch msg.Type {
		case msgTypeOffer:
			if err := s.l.pc.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeOffer, SDP: msg.SDP,
			}); err != nil {
				return err
			}
			if err := s.sendAnswer(); err != nil {
				return err
			}

		case msgTypeAnswer:
			if err := s.l.pc.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeAnswer, SDP: msg.SDP,
			}); err != nil {
				return err
			}

		case msgTypeCandidate:
			var init webrtc.ICECandidateInit
			if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
				return fmt.Errorf("parse ICE candidate: %w", err)
			}
			if err := s.l.pc.AddICECandidate(init); err != nil {
				return err
			}
		}
	}
}

// establish runs signaling over wsConn until the DataChannel opens. The
// offering side is the one that called Serve.
func establish(ctx context.Context, wsConn *websocket.Conn, cfg Config, offer bool) (*Link, error) {
	l, err := newLink(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create WebRTC link: %w", err)
	}

	s := &signaler{l: l, conn: wsConn}
	s.trickle()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.watch() // exits when wsConn is closed by the caller
	}()

	if offer {
		if err := s.sendOffer(); err != nil {
			l.Close()
			return nil, fmt.Errorf("send offer: %w", err)
		}
	}

	select {
	case <-l.Ready():
		util.LogInfo("WebRTC DataChannel established")
		return l, nil

	case err := <-errCh:
		l.Close()
		return nil, fmt.Errorf("signaling failed: %w", err)

	case <-ctx.Done():
		l.Close()
		return nil, ctx.Err()
	}
}
