package link

import (
	"context"
	"sync"
)

// Pipe is one end of an in-process link. Frames still go through Seal and
// Open, so a fault hook that corrupts bytes shows up as CRC errors on the
// other end.
type Pipe struct {
	*Inbox
	peer *Pipe

	mu    sync.Mutex
	fault func(frame []byte) []byte
}

var _ Link = (*Pipe)(nil)

// NewPipe returns two connected ends.
func NewPipe() (a, b *Pipe) {
	a = &Pipe{Inbox: NewInbox()}
	b = &Pipe{Inbox: NewInbox()}
	a.peer, b.peer = b, a
	return a, b
}

// SetFault installs fn to rewrite every frame this end sends. Returning nil
// drops the frame. A nil fn removes the hook.
func (p *Pipe) SetFault(fn func(frame []byte) []byte) {
	p.mu.Lock()
	p.fault = fn
	p.mu.Unlock()
}

func (p *Pipe) SetReceiveMode() error { return nil }

// Transmit delivers a sealed copy of data to the other end.
func (p *Pipe) Transmit(data []byte, dest uint8) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	frame := Seal(data)
	p.mu.Lock()
	fault := p.fault
	p.mu.Unlock()
	if fault != nil {
		if frame = fault(frame); frame == nil {
			return true
		}
	}
	p.peer.Deliver(frame)
	return true
}

func (p *Pipe) WaitUntilSent(ctx context.Context) error { return ctx.Err() }

// Close ends both directions.
func (p *Pipe) Close() error {
	p.Fail(ErrClosed)
	p.peer.Fail(ErrClosed)
	return nil
}
