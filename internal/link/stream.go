package link

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/1ureka/groundlink/internal/util"
)

// Stream is a KISS link over a byte stream: a TNC reached over TCP, a
// serial port, or an in-process pipe.
type Stream struct {
	*Inbox

	rw    io.ReadWriteCloser
	mu    sync.Mutex // serializes writes
	drain func() error
}

var _ Link = (*Stream)(nil)

// NewStream starts reading KISS frames from rw. The link owns rw and closes
// it on Close.
func NewStream(rw io.ReadWriteCloser) *Stream {
	s := &Stream{Inbox: NewInbox(), rw: rw}
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	var dec kissDecoder
	buf := make([]byte, 1024)
	for {
		n, err := s.rw.Read(buf)
		if n > 0 {
			for _, frame := range dec.feed(buf[:n]) {
				s.Deliver(frame)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				util.LogDebug("stream read ended: %v", err)
			}
			s.Fail(err)
			return
		}
		if n == 0 {
			// serial ports return (0, nil) on read timeout
			select {
			case <-s.done:
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}
}

// SetReceiveMode is a no-op: the TNC switches direction on its own.
func (s *Stream) SetReceiveMode() error { return nil }

// Transmit writes one KISS frame. dest selects the TNC port.
func (s *Stream) Transmit(data []byte, dest uint8) bool {
	frame := kissEncode(dest, Seal(data))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.rw.Write(frame); err != nil {
		util.LogWarning("stream write failed: %v", err)
		return false
	}
	return true
}

// WaitUntilSent drains the serial output buffer when there is one.
func (s *Stream) WaitUntilSent(ctx context.Context) error {
	if s.drain == nil {
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drain()
}

// Close closes the underlying stream.
func (s *Stream) Close() error {
	s.Fail(ErrClosed)
	return s.rw.Close()
}
