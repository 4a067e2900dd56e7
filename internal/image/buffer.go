// Package image reassembles an image downlinked as numbered chunks.
package image

import (
	"bytes"

	"github.com/1ureka/groundlink/internal/protocol"
	"github.com/1ureka/groundlink/internal/util"
)

// Buffer accumulates image chunks in arrival order. It is owned by the
// session machine and needs no locking.
//
// Chunks are stored as they arrive even when their index is not the one
// expected; Accept reports the mismatch and the caller rewinds.
type Buffer struct {
	uid    uint8
	target uint16
	chunks [][]byte
}

// NewBuffer creates an empty buffer with no target.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Begin sets the target image. A UID different from the current one means
// the satellite replaced its image, so buffered chunks are dropped.
func (b *Buffer) Begin(meta protocol.ImageMeta) {
	if meta.UID != b.uid {
		if len(b.chunks) > 0 {
			util.LogInfo("image uid changed %d -> %d, dropping %d buffered chunks", b.uid, meta.UID, len(b.chunks))
		}
		b.chunks = nil
	}
	b.uid = meta.UID
	b.target = meta.Count
}

// Accept appends chunk and reports whether index was not the next expected
// one (a gap or a duplicate).
func (b *Buffer) Accept(index uint16, chunk []byte) (gap bool) {
	gap = int(index) != len(b.chunks)
	if gap {
		util.LogDebug("image chunk %d arrived, expected %d", index, len(b.chunks))
	}
	b.chunks = append(b.chunks, bytes.Clone(chunk))
	return gap
}

// IsComplete reports whether a target is set and enough chunks are buffered.
func (b *Buffer) IsComplete() bool {
	return b.target > 0 && len(b.chunks) >= int(b.target)
}

// Finalize returns the first Target() chunks concatenated in order. The
// buffer is left intact until Clear.
func (b *Buffer) Finalize() []byte {
	n := min(int(b.target), len(b.chunks))
	return bytes.Join(b.chunks[:n], nil)
}

// Rewind discards the last n chunks, or all of them if fewer are buffered.
// It returns how many were discarded.
func (b *Buffer) Rewind(n int) int {
	n = min(max(n, 0), len(b.chunks))
	for i := len(b.chunks) - n; i < len(b.chunks); i++ {
		b.chunks[i] = nil
	}
	b.chunks = b.chunks[:len(b.chunks)-n]
	return n
}

// Clear drops every chunk and the target count. The UID is kept so a
// matching Begin does not treat the next image as a replacement.
func (b *Buffer) Clear() {
	b.chunks = nil
	b.target = 0
}

// Received is the number of buffered chunks, which is also the next index to request.
func (b *Buffer) Received() int { return len(b.chunks) }

// Target is the chunk count of the current image, 0 when none is set.
func (b *Buffer) Target() uint16 { return b.target }

// UID is the identifier of the current image.
func (b *Buffer) UID() uint8 { return b.uid }
