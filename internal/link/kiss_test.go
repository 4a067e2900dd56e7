package link

import (
	"bytes"
	"testing"
)

// TestKISSEscapeRoundTrip verifies escaping removes every FEND and is reversible.
func TestKISSEscapeRoundTrip(t *testing.T) {
	in := []byte{0x00, kissFEND, 0x01, kissFESC, kissTFEND, kissTFESC, kissFEND}
	esc := kissEscape(in)
	if bytes.IndexByte(esc, kissFEND) != -1 {
		t.Fatalf("escaped data still contains FEND: % x", esc)
	}
	if got := kissUnescape(esc); !bytes.Equal(got, in) {
		t.Fatalf("unescape = % x, want % x", got, in)
	}
}

// TestKISSDecoderSplitFeeds verifies frames split across reads are joined,
// back-to-back frames are separated, and non-data commands are skipped.
func TestKISSDecoderSplitFeeds(t *testing.T) {
	f1 := kissEncode(0, []byte{1, kissFEND, 2})
	f2 := kissEncode(3, []byte{4, 5})
	param := []byte{kissFEND, 0x01, 0x32, kissFEND} // TXDELAY command
	stream := append(append(append([]byte{0x55}, f1...), param...), f2...)

	var d kissDecoder
	var got [][]byte
	for i := 0; i < len(stream); i += 3 {
		got = append(got, d.feed(stream[i:min(i+3, len(stream))])...)
	}

	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2: %v", len(got), got)
	}
	if !bytes.Equal(got[0], []byte{1, kissFEND, 2}) || !bytes.Equal(got[1], []byte{4, 5}) {
		t.Fatalf("frames = % x", got)
	}
}

// TestKISSEncodePort verifies the port lands in the high nibble of the command byte.
func TestKISSEncodePort(t *testing.T) {
	f := kissEncode(0x1, []byte{9})
	if f[0] != kissFEND || f[1] != 0x10 || f[len(f)-1] != kissFEND {
		t.Fatalf("frame = % x", f)
	}
}
