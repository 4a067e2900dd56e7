package ota_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1ureka/groundlink/internal/ota"
	"github.com/1ureka/groundlink/internal/protocol"
)

func writeSource(t *testing.T, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7)
	}
	path := filepath.Join(t.TempDir(), "firmware.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path, data
}

func remaining(pkt *protocol.Packet) int {
	return int(binary.BigEndian.Uint16(pkt.Payload[0:2]))
}

// TestSplitCounts verifies chunk counts and the short last chunk.
func TestSplitCounts(t *testing.T) {
	tests := []struct {
		size      int
		wantCount int
		wantLast  int
	}{
		{1, 1, 1},
		{196, 1, 196},
		{197, 2, 1},
		{500, 3, 108},
	}

	for _, tc := range tests {
		f, err := ota.Split(make([]byte, tc.size))
		if err != nil {
			t.Fatalf("Split(%d): %v", tc.size, err)
		}
		if int(f.Count) != tc.wantCount || len(f.Chunks) != tc.wantCount {
			t.Errorf("size %d: Count = %d, want %d", tc.size, f.Count, tc.wantCount)
		}
		if got := len(f.Chunks[len(f.Chunks)-1]); got != tc.wantLast {
			t.Errorf("size %d: last chunk = %d bytes, want %d", tc.size, got, tc.wantLast)
		}
	}
}

// TestLoadErrors verifies that missing and empty sources are resource errors.
func TestLoadErrors(t *testing.T) {
	if _, err := ota.Load(filepath.Join(t.TempDir(), "missing.bin")); !errors.Is(err, ota.ErrResourceUnavailable) {
		t.Errorf("missing: err = %v", err)
	}
	empty, _ := writeSource(t, 0)
	if _, err := ota.Load(empty); !errors.Is(err, ota.ErrResourceUnavailable) || !errors.Is(err, ota.ErrEmptyFile) {
		t.Errorf("empty: err = %v", err)
	}
	if _, err := ota.Load(""); !errors.Is(err, ota.ErrResourceUnavailable) {
		t.Errorf("unset: err = %v", err)
	}
}

// TestNextPacketThreeChunks verifies a 500-byte transfer end to end.
func TestNextPacketThreeChunks(t *testing.T) {
	path, data := writeSource(t, 500)
	e := ota.NewEngine(path, ota.DefaultWindow)

	var got []byte
	for i := 0; i < 3; i++ {
		pkt, done, err := e.NextPacket()
		if err != nil {
			t.Fatalf("NextPacket %d: %v", i, err)
		}
		if pkt.Kind != protocol.KindOtaRequest || int(pkt.Seq) != i {
			t.Fatalf("packet %d header = %+v", i, pkt.Header)
		}
		if int(pkt.Length) != len(pkt.Payload) {
			t.Fatalf("Length = %d, payload %d", pkt.Length, len(pkt.Payload))
		}
		if remaining(pkt) != 2-i {
			t.Fatalf("packet %d remaining = %d, want %d", i, remaining(pkt), 2-i)
		}
		wantAck := i == 2
		if pkt.AckRequested != wantAck {
			t.Fatalf("packet %d ack = %v, want %v", i, pkt.AckRequested, wantAck)
		}
		if done != (i == 2) {
			t.Fatalf("packet %d done = %v", i, done)
		}
		got = append(got, pkt.Payload[2:]...)
	}

	if !bytes.Equal(got, data) {
		t.Fatal("reassembled payload differs from source")
	}
	if e.Sequence() != 0 {
		t.Fatalf("Sequence = %d after completion, want 0", e.Sequence())
	}
}

// TestWindowBoundaries verifies which sequences request an ack.
func TestWindowBoundaries(t *testing.T) {
	path, _ := writeSource(t, 196*25)
	e := ota.NewEngine(path, 10)

	var acks []int
	for {
		pkt, done, err := e.NextPacket()
		if err != nil {
			t.Fatal(err)
		}
		if pkt.AckRequested {
			acks = append(acks, int(pkt.Seq))
		}
		if done {
			break
		}
	}

	want := []int{10, 20, 24}
	if len(acks) != len(want) {
		t.Fatalf("acks = %v, want %v", acks, want)
	}
	for i := range want {
		if acks[i] != want[i] {
			t.Fatalf("acks = %v, want %v", acks, want)
		}
	}
}

// TestResumeFrom verifies that a negative response re-sends from the peer's sequence.
func TestResumeFrom(t *testing.T) {
	path, data := writeSource(t, 196*30)
	e := ota.NewEngine(path, 10)

	for i := 0; i < 15; i++ {
		if _, _, err := e.NextPacket(); err != nil {
			t.Fatal(err)
		}
	}

	e.ResumeFrom(12)
	pkt, _, err := e.NextPacket()
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Seq != 12 {
		t.Fatalf("Seq = %d, want 12", pkt.Seq)
	}
	if !bytes.Equal(pkt.Payload[2:], data[12*196:13*196]) {
		t.Fatal("chunk 12 content mismatch")
	}

	e.ResumeFrom(500)
	pkt, _, _ = e.NextPacket()
	if pkt.Seq != 29 {
		t.Fatalf("clamped Seq = %d, want 29", pkt.Seq)
	}
}

// TestRewind verifies that the sequence moves back one window, floored at zero.
func TestRewind(t *testing.T) {
	path, _ := writeSource(t, 196*30)
	e := ota.NewEngine(path, 10)

	for i := 0; i < 14; i++ {
		e.NextPacket()
	}
	e.Rewind(e.Window())
	if e.Sequence() != 4 {
		t.Fatalf("Sequence = %d, want 4", e.Sequence())
	}
	e.Rewind(e.Window())
	if e.Sequence() != 0 {
		t.Fatalf("Sequence = %d, want 0", e.Sequence())
	}
}

// TestInvalidateRestarts verifies that a changed source restarts at chunk 0
// with the new content.
func TestInvalidateRestarts(t *testing.T) {
	path, _ := writeSource(t, 196*5)
	e := ota.NewEngine(path, 10)
	e.NextPacket()
	e.NextPacket()

	if err := os.WriteFile(path, bytes.Repeat([]byte{0xEE}, 300), 0o644); err != nil {
		t.Fatal(err)
	}
	e.Invalidate()

	pkt, _, err := e.NextPacket()
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Seq != 0 || pkt.Payload[2] != 0xEE || e.Count() != 2 {
		t.Fatalf("after invalidate: seq=%d first=%x count=%d", pkt.Seq, pkt.Payload[2], e.Count())
	}
}

// TestWatchNotifies verifies that writing the source triggers the callback.
func TestWatchNotifies(t *testing.T) {
	path, _ := writeSource(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	if err := ota.Watch(ctx, path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "other.bin"), []byte{1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("new firmware"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}
}
