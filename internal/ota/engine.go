package ota

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/1ureka/groundlink/internal/protocol"
	"github.com/1ureka/groundlink/internal/util"
)

// Engine drives one OTA transfer at a time. Everything except Invalidate
// must be called from the session machine's goroutine.
type Engine struct {
	path   string
	window int

	file   *File
	seq    int
	resume int // pending peer sequence, -1 when none

	stale atomic.Bool
}

// NewEngine creates an engine that reads its source from path.
func NewEngine(path string, window int) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{path: path, window: window, resume: -1}
}

// NextPacket returns the OTA packet at the current sequence and advances it.
// The file is (re)loaded whenever a transfer starts at chunk 0 or the source
// changed. done is true after the last chunk, at which point the sequence is
// back at 0 and the caller moves on to its next command.
func (e *Engine) NextPacket() (pkt *protocol.Packet, done bool, err error) {
	if e.stale.Swap(false) && e.seq != 0 {
		util.LogInfo("OTA source changed, restarting transfer at chunk 0")
		e.seq = 0
		e.resume = -1
	}

	if e.resume >= 0 {
		e.seq = e.resume
		e.resume = -1
		if e.file != nil && e.seq >= int(e.file.Count) {
			e.seq = int(e.file.Count) - 1
		}
	}

	if e.seq == 0 || e.file == nil {
		f, err := Load(e.path)
		if err != nil {
			e.seq = 0
			return nil, false, err
		}
		e.file = f
		e.seq = min(e.seq, int(f.Count)-1)
		util.LogInfo("OTA loaded %s: %d bytes in %d chunks", e.path, f.Size, f.Count)
	}

	count := int(e.file.Count)
	chunk := e.file.Chunks[e.seq]
	remaining := count - 1 - e.seq

	payload := make([]byte, 2+len(chunk))
	binary.BigEndian.PutUint16(payload[0:2], uint16(remaining))
	copy(payload[2:], chunk)

	pkt = &protocol.Packet{
		Header: protocol.Header{
			AckRequested: e.boundary(e.seq),
			Kind:         protocol.KindOtaRequest,
			Seq:          uint16(e.seq),
			Length:       uint8(len(payload)),
		},
		Payload: payload,
	}

	e.seq++
	if e.seq >= count {
		e.seq = 0
		done = true
	}
	return pkt, done, nil
}

// boundary reports whether the packet at seq closes a window.
func (e *Engine) boundary(seq int) bool {
	return (seq%e.window == 0 && seq > 0) || seq == int(e.file.Count)-1
}

// ResumeFrom makes the next packet the one at peerSeq, as reported by a
// negative OtaResponse.
func (e *Engine) ResumeFrom(peerSeq uint16) {
	e.resume = int(peerSeq)
}

// Rewind moves the sequence back by n, floored at 0.
func (e *Engine) Rewind(n int) {
	e.seq = max(e.seq-n, 0)
}

// Invalidate marks the source as changed. Safe to call from any goroutine.
func (e *Engine) Invalidate() {
	e.stale.Store(true)
}

// Reset abandons the current transfer.
func (e *Engine) Reset() {
	e.seq = 0
	e.resume = -1
}

// Sequence is the index of the next chunk to send.
func (e *Engine) Sequence() int { return e.seq }

// Count is the chunk count of the loaded file, 0 before the first load.
func (e *Engine) Count() int {
	if e.file == nil {
		return 0
	}
	return int(e.file.Count)
}

// Window is the number of packets per acknowledgment.
func (e *Engine) Window() int { return e.window }
