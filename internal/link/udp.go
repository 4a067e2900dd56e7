package link

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/1ureka/groundlink/internal/util"
)

const maxDatagram = 2048

// UDP is a link over datagrams, one sealed frame each. A dialing side has a
// fixed peer; a listening side replies to whoever sent the last valid frame.
type UDP struct {
	*Inbox

	pc    net.PacketConn
	mu    sync.Mutex
	peer  net.Addr
	fixed bool
}

var _ Link = (*UDP)(nil)

// NewUDP wraps pc. If peer is nil it is learned from incoming datagrams.
func NewUDP(pc net.PacketConn, peer net.Addr) *UDP {
	u := &UDP{Inbox: NewInbox(), pc: pc, peer: peer, fixed: peer != nil}
	go u.readLoop()
	return u
}

// DialUDP sends to addr from an ephemeral local port.
func DialUDP(addr string) (*UDP, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	pc, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("open udp socket: %w", err)
	}
	return NewUDP(pc, raddr), nil
}

// ListenUDP listens on addr and answers the most recent sender.
func ListenUDP(addr string) (*UDP, error) {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	return NewUDP(pc, nil), nil
}

func (u *UDP) readLoop() {
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := u.pc.ReadFrom(buf)
		if err != nil {
			u.Fail(err)
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])

		if _, ok := Open(frame); ok && !u.fixed {
			u.mu.Lock()
			u.peer = from
			u.mu.Unlock()
		}
		u.Deliver(frame)
	}
}

// SetReceiveMode is a no-op for datagram sockets.
func (u *UDP) SetReceiveMode() error { return nil }

// Transmit sends one datagram to the peer. It fails until a listening side
// has heard from someone.
func (u *UDP) Transmit(data []byte, dest uint8) bool {
	u.mu.Lock()
	peer := u.peer
	u.mu.Unlock()
	if peer == nil {
		util.LogWarning("udp transmit with no known peer")
		return false
	}

	frame := Seal(data)
	if _, err := u.pc.WriteTo(frame, peer); err != nil {
		util.LogWarning("udp write to %s failed: %v", peer, err)
		return false
	}
	return true
}

// WaitUntilSent returns immediately: datagrams are handed off synchronously.
func (u *UDP) WaitUntilSent(ctx context.Context) error { return ctx.Err() }

// LocalAddr is the bound socket address.
func (u *UDP) LocalAddr() net.Addr { return u.pc.LocalAddr() }

// Close closes the socket.
func (u *UDP) Close() error {
	u.Fail(ErrClosed)
	return u.pc.Close()
}
