package link

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/1ureka/groundlink/internal/util"
)

const inboxSize = 64

// Inbox hands verified frames from a link's read goroutine to
// WaitForPacket. Link implementations embed it for WaitForPacket and the
// CRC counter.
type Inbox struct {
	frames  chan []byte
	crcErrs atomic.Uint32

	done     chan struct{}
	doneOnce sync.Once
	err      error
}

// NewInbox creates an open inbox.
func NewInbox() *Inbox {
	return &Inbox{
		frames: make(chan []byte, inboxSize),
		done:   make(chan struct{}),
	}
}

// Deliver checks frame and queues its data. Corrupt frames only bump the
// CRC counter. Blocks while the queue is full.
func (in *Inbox) Deliver(frame []byte) {
	data, ok := Open(frame)
	if !ok {
		in.crcErrs.Add(1)
		util.Stats.AddCRCFaults(1)
		util.LogWarning("dropped corrupt frame (%d bytes)", len(frame))
		return
	}

	select {
	case in.frames <- data:
	case <-in.done:
	}
}

// Fail ends the inbox with err; later waits return it once the queue is empty.
func (in *Inbox) Fail(err error) {
	in.doneOnce.Do(func() {
		if err == nil {
			err = ErrClosed
		}
		in.err = err
		close(in.done)
	})
}

func (in *Inbox) WaitForPacket(ctx context.Context) ([]byte, error) {
	select {
	case data := <-in.frames:
		return data, nil
	default:
	}

	select {
	case data := <-in.frames:
		return data, nil
	case <-in.done:
		if errors.Is(in.err, ErrClosed) {
			return nil, in.err
		}
		return nil, errors.Join(ErrClosed, in.err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (in *Inbox) CRCErrorCount() uint32 { return in.crcErrs.Load() }
func (in *Inbox) ResetCRCErrorCount()   { in.crcErrs.Store(0) }

// Done is closed when the link's read side has ended.
func (in *Inbox) Done() <-chan struct{} { return in.done }
