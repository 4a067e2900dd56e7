package image_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/1ureka/groundlink/internal/image"
	"github.com/1ureka/groundlink/internal/protocol"
)

func chunk(i int) []byte {
	return []byte(fmt.Sprintf("chunk-%03d|", i))
}

// TestInOrderCompletes verifies that feeding every index in order completes
// the image and Finalize returns the exact concatenation.
func TestInOrderCompletes(t *testing.T) {
	b := image.NewBuffer()
	b.Begin(protocol.ImageMeta{UID: 3, Count: 25})

	var want bytes.Buffer
	for i := 0; i < 25; i++ {
		if b.IsComplete() {
			t.Fatalf("complete after %d chunks", i)
		}
		if gap := b.Accept(uint16(i), chunk(i)); gap {
			t.Fatalf("gap reported at %d", i)
		}
		want.Write(chunk(i))
	}

	if !b.IsComplete() {
		t.Fatal("IsComplete = false after all chunks")
	}
	if got := b.Finalize(); !bytes.Equal(got, want.Bytes()) {
		t.Fatalf("Finalize mismatch:\n got %q\nwant %q", got, want.Bytes())
	}
}

// TestNoTargetNeverCompletes verifies that a zero target short-circuits completion.
func TestNoTargetNeverCompletes(t *testing.T) {
	b := image.NewBuffer()
	b.Accept(0, chunk(0))
	if b.IsComplete() {
		t.Fatal("IsComplete = true with no target")
	}
}

// TestGapDetected verifies that an out-of-order index is stored but flagged.
func TestGapDetected(t *testing.T) {
	b := image.NewBuffer()
	b.Begin(protocol.ImageMeta{UID: 1, Count: 10})
	b.Accept(0, chunk(0))
	b.Accept(1, chunk(1))

	if gap := b.Accept(3, chunk(3)); !gap {
		t.Fatal("gap not reported for skipped index")
	}
	if b.Received() != 3 {
		t.Fatalf("Received = %d, want 3", b.Received())
	}
	if gap := b.Accept(2, chunk(2)); !gap {
		t.Fatal("gap not reported for stale index")
	}
}

// TestRewind verifies that rewinding discards exactly the tail, floored at zero.
func TestRewind(t *testing.T) {
	tests := []struct {
		name     string
		fill     int
		rewind   int
		wantLeft int
	}{
		{"one window", 25, 10, 15},
		{"exact", 10, 10, 0},
		{"floored", 4, 10, 0},
		{"empty", 0, 10, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := image.NewBuffer()
			b.Begin(protocol.ImageMeta{UID: 1, Count: 100})
			for i := 0; i < tc.fill; i++ {
				b.Accept(uint16(i), chunk(i))
			}
			dropped := b.Rewind(tc.rewind)
			if b.Received() != tc.wantLeft {
				t.Fatalf("Received = %d, want %d", b.Received(), tc.wantLeft)
			}
			if dropped != tc.fill-tc.wantLeft {
				t.Fatalf("dropped = %d, want %d", dropped, tc.fill-tc.wantLeft)
			}
			if gap := b.Accept(uint16(tc.wantLeft), chunk(tc.wantLeft)); gap {
				t.Fatal("next index after rewind reported as gap")
			}
		})
	}
}

// TestGapThenRewindRecovers verifies a full recovery: one chunk is replaced
// to simulate loss, the window is rewound, and re-requested chunks complete
// the image with correct content.
func TestGapThenRewindRecovers(t *testing.T) {
	const count, window = 30, 10
	b := image.NewBuffer()
	b.Begin(protocol.ImageMeta{UID: 9, Count: count})

	missed := false
	for i := 0; i < 20; i++ {
		idx := i
		if i == 15 {
			idx = 16
		}
		if b.Accept(uint16(idx), chunk(idx)) {
			missed = true
		}
	}
	if !missed {
		t.Fatal("gap not detected")
	}

	before := b.Received()
	b.Rewind(window)
	if b.Received() != before-window {
		t.Fatalf("Received = %d, want %d", b.Received(), before-window)
	}

	for i := b.Received(); i < count; i++ {
		b.Accept(uint16(i), chunk(i))
	}
	var want bytes.Buffer
	for i := 0; i < count; i++ {
		want.Write(chunk(i))
	}
	if !bytes.Equal(b.Finalize(), want.Bytes()) {
		t.Fatal("image corrupted after recovery")
	}
}

// TestBeginNewUIDClears verifies that a replaced image drops buffered chunks
// while the same UID keeps them.
func TestBeginNewUIDClears(t *testing.T) {
	b := image.NewBuffer()
	b.Begin(protocol.ImageMeta{UID: 5, Count: 10})
	for i := 0; i < 3; i++ {
		b.Accept(uint16(i), chunk(i))
	}

	b.Begin(protocol.ImageMeta{UID: 5, Count: 10})
	if b.Received() != 3 {
		t.Fatalf("same uid: Received = %d, want 3", b.Received())
	}

	b.Begin(protocol.ImageMeta{UID: 7, Count: 12})
	if b.Received() != 0 || b.UID() != 7 || b.Target() != 12 {
		t.Fatalf("new uid: Received=%d UID=%d Target=%d", b.Received(), b.UID(), b.Target())
	}
}

// TestClear verifies that Clear resets chunks and target.
func TestClear(t *testing.T) {
	b := image.NewBuffer()
	b.Begin(protocol.ImageMeta{UID: 2, Count: 1})
	b.Accept(0, chunk(0))
	b.Clear()
	if b.Received() != 0 || b.Target() != 0 || b.IsComplete() {
		t.Fatal("Clear left state behind")
	}
}
