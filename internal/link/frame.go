package link

import (
	"encoding/binary"
	"hash/crc32"
)

// TrailerSize is the length of the CRC-32 appended to every frame.
const TrailerSize = 4

// Seal returns data followed by its CRC-32 (IEEE, big-endian).
func Seal(data []byte) []byte {
	out := make([]byte, len(data)+TrailerSize)
	copy(out, data)
	binary.BigEndian.PutUint32(out[len(data):], crc32.ChecksumIEEE(data))
	return out
}

// Open checks and strips the CRC trailer. ok is false for short or corrupt frames.
func Open(frame []byte) (data []byte, ok bool) {
	if len(frame) < TrailerSize {
		return nil, false
	}
	n := len(frame) - TrailerSize
	if binary.BigEndian.Uint32(frame[n:]) != crc32.ChecksumIEEE(frame[:n]) {
		return nil, false
	}
	return frame[:n], true
}
