package rtc

import (
	"context"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/groundlink/internal/util"
)

const (
	highWaterMark  = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark   = 64 * 1024  // resume sending when bufferedAmount drops below this
	sendBufferSize = 64         // outgoing frame channel capacity
)

// sender is a goroutine-based frame writer that serializes all writes to a
// single DataChannel, adding open-gate and backpressure control.
type sender struct {
	inbox       chan []byte
	drainSignal chan struct{}
	pending     atomic.Int64 // frames queued but not yet handed to the DataChannel
}

// newSender creates a sender, wires the backpressure callbacks on dc, and
// starts the background loop. The loop exits when ctx is cancelled.
func newSender(ctx context.Context, dc *webrtc.DataChannel, openSignal <-chan struct{}) *sender {
	s := &sender{
		inbox:       make(chan []byte, sendBufferSize),
		drainSignal: make(chan struct{}, 1),
	}

	dc.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	dc.OnBufferedAmountLow(func() {
		select {
		case s.drainSignal <- struct{}{}:
		default:
		}
	})

	go s.loop(ctx, dc, openSignal)

	return s
}

// loop is the single-writer goroutine. It waits for the DataChannel to open,
// then drains the inbox with backpressure awareness.
func (s *sender) loop(ctx context.Context, dc *webrtc.DataChannel, openSignal <-chan struct{}) {
	// Phase 1: wait for DC to be open.
	select {
	case <-openSignal:
	case <-ctx.Done():
		return
	}

	// Phase 2: send frames with backpressure.
	for {
		select {
		case frame := <-s.inbox:
			if dc.BufferedAmount() > uint64(highWaterMark) {
				select {
				case <-s.drainSignal:
				case <-ctx.Done():
					return
				}
			}

			err := dc.Send(frame)
			s.pending.Add(-1)
			if err != nil {
				util.LogError("failed to send frame (%d bytes): %v", len(frame), err)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// send enqueues a frame for transmission. It blocks if the internal buffer
// is full and reports false when ctx is already cancelled.
func (s *sender) send(ctx context.Context, frame []byte) bool {
	s.pending.Add(1)
	select {
	case s.inbox <- frame:
		return true
	case <-ctx.Done():
		s.pending.Add(-1)
		return false
	}
}
