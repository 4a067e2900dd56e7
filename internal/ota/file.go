// Package ota pushes a local file to the satellite as numbered chunks with
// one acknowledgment per window.
package ota

import (
	"errors"
	"fmt"
	"os"

	"github.com/1ureka/groundlink/internal/util"
)

const (
	ChunkSize     = 196    // payload bytes per OTA packet, excluding the 2-byte remaining count
	DefaultWindow = 10     // packets per acknowledgment
	MaxChunks     = 0xFFFF // sequence is 16 bits on the wire
)

var (
	// ErrResourceUnavailable is returned when the OTA source cannot be used.
	// It skips the OTA command but never ends the session.
	ErrResourceUnavailable = errors.New("ota: resource unavailable")

	ErrEmptyFile    = fmt.Errorf("%w: empty file", ErrResourceUnavailable)
	ErrFileTooLarge = fmt.Errorf("%w: file exceeds %d chunks", ErrResourceUnavailable, MaxChunks)
)

// File is an OTA source split into chunks.
type File struct {
	UID    uint8
	Size   uint32
	Count  uint16
	Chunks [][]byte
}

// Load reads path and splits it into chunks.
func Load(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no OTA source configured", ErrResourceUnavailable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}
	return Split(data)
}

// Split chunks data into ChunkSize pieces; the last one may be shorter.
func Split(data []byte) (*File, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	count := (len(data) + ChunkSize - 1) / ChunkSize
	if count > MaxChunks {
		return nil, ErrFileTooLarge
	}

	f := &File{
		UID:    util.ContentID(data),
		Size:   uint32(len(data)),
		Count:  uint16(count),
		Chunks: make([][]byte, 0, count),
	}
	for off := 0; off < len(data); off += ChunkSize {
		end := min(off+ChunkSize, len(data))
		f.Chunks = append(f.Chunks, data[off:end])
	}
	return f, nil
}
