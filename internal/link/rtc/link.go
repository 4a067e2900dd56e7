// Package rtc is a radio link carried over a WebRTC DataChannel, for radio
// front ends that sit behind NAT away from the ground station computer.
package rtc

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/groundlink/internal/link"
	"github.com/1ureka/groundlink/internal/util"
)

// Link wraps a single PeerConnection + DataChannel pair. Each DataChannel
// message carries one sealed frame.
//
// Its lifecycle is governed by the DataChannel state and the context passed
// at construction time.
type Link struct {
	*link.Inbox

	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	sender     *sender
	openSignal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState
}

var _ link.Link = (*Link)(nil)

// newLink creates a Link backed by a new PeerConnection and a pre-negotiated
// DataChannel. Signaling is done by the caller (see Serve and Dial).
func newLink(ctx context.Context, cfg Config) (*Link, error) {
	pc, err := newPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	dc, err := newDataChannel(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}

	lCtx, lCancel := context.WithCancel(ctx)

	l := &Link{
		Inbox:      link.NewInbox(),
		pc:         pc,
		dc:         dc,
		openSignal: make(chan struct{}),
		ctx:        lCtx,
		cancel:     lCancel,
		pcState:    webrtc.PeerConnectionStateNew,
	}

	// DC open gate.
	var openOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() { close(l.openSignal) })
	})

	// DC close → cancel link context and end pending waits.
	dc.OnClose(func() {
		util.LogDebug("DataChannel closed")
		lCancel()
		l.Fail(link.ErrClosed)
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		l.Deliver(bytes.Clone(msg.Data))
	})

	// Record PC state (informational only).
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		l.mu.Lock()
		l.pcState = state
		l.mu.Unlock()
	})

	l.sender = newSender(lCtx, dc, l.openSignal)

	return l, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Ready returns a channel that is closed when the DataChannel is open.
func (l *Link) Ready() <-chan struct{} {
	return l.openSignal
}

// Close shuts down the DataChannel and PeerConnection.
func (l *Link) Close() error {
	l.cancel()
	l.Fail(link.ErrClosed)
	return errors.Join(l.dc.Close(), l.pc.Close())
}

// ConnectionState returns the last observed PeerConnection state.
func (l *Link) ConnectionState() webrtc.PeerConnectionState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pcState
}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// SetReceiveMode is a no-op: the remote front end turns its radio around.
func (l *Link) SetReceiveMode() error { return nil }

// Transmit enqueues one sealed frame. The DataChannel has a single peer, so
// dest is not used.
func (l *Link) Transmit(data []byte, dest uint8) bool {
	return l.sender.send(l.ctx, link.Seal(data))
}

// WaitUntilSent blocks until every queued frame has been handed to SCTP and
// the DataChannel buffer is empty.
func (l *Link) WaitUntilSent(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if l.sender.pending.Load() == 0 && l.dc.BufferedAmount() == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-l.ctx.Done():
			return link.ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
