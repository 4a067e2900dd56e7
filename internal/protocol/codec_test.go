package protocol_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/1ureka/groundlink/internal/protocol"
)

// TestHeaderRoundTrip verifies that every combination of ID, ack flag,
// boundary sequence and boundary length survives encode/decode unchanged.
func TestHeaderRoundTrip(t *testing.T) {
	seqs := []uint16{0, 1, 0x00FF, 0x0100, 0x7FFF, 0xFFFF}
	lengths := []uint8{0, 1, 4, 198, 255}

	for id := 0; id <= 0x7F; id++ {
		for _, ack := range []bool{false, true} {
			for _, seq := range seqs {
				for _, length := range lengths {
					kind := protocol.Kind(id)
					b := protocol.EncodeHeader(kind, ack, seq, length)
					got, err := protocol.DecodeHeader(b[:])
					if err != nil {
						t.Fatalf("DecodeHeader: %v", err)
					}
					want := protocol.Header{AckRequested: ack, Kind: kind, Seq: seq, Length: length}
					if got != want {
						t.Fatalf("round trip = %+v, want %+v", got, want)
					}
				}
			}
		}
	}
}

// TestHeaderWireLayout verifies the byte positions of each header field.
func TestHeaderWireLayout(t *testing.T) {
	b := protocol.EncodeHeader(protocol.KindImageChunk, true, 0x1234, 0xC4)
	want := [4]byte{0x80 | 0x50, 0x12, 0x34, 0xC4}
	if b != want {
		t.Fatalf("EncodeHeader = % x, want % x", b, want)
	}
}

// TestDecodeHeaderShort verifies that fewer than four bytes is a malformed header.
func TestDecodeHeaderShort(t *testing.T) {
	for n := 0; n < protocol.HeaderSize; n++ {
		_, err := protocol.DecodeHeader(make([]byte, n))
		if !errors.Is(err, protocol.ErrMalformedHeader) {
			t.Errorf("len %d: err = %v, want ErrMalformedHeader", n, err)
		}
	}
}

// TestPacketRoundTrip verifies Encode/Decode for packets with and without payload.
func TestPacketRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pkt  protocol.Packet
	}{
		{"empty", protocol.Packet{Header: protocol.Header{Kind: protocol.KindStop}}},
		{"chunk", protocol.Packet{
			Header:  protocol.Header{Kind: protocol.KindImageChunk, AckRequested: true, Seq: 9},
			Payload: bytes.Repeat([]byte{0xAB}, 196),
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := protocol.Encode(&tc.pkt)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if len(data) != protocol.HeaderSize+len(tc.pkt.Payload) {
				t.Fatalf("encoded length = %d", len(data))
			}

			got, err := protocol.Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Kind != tc.pkt.Kind || got.Seq != tc.pkt.Seq || got.AckRequested != tc.pkt.AckRequested {
				t.Errorf("header = %+v, want %+v", got.Header, tc.pkt.Header)
			}
			if int(got.Length) != len(tc.pkt.Payload) {
				t.Errorf("Length = %d, want %d", got.Length, len(tc.pkt.Payload))
			}
			if !bytes.Equal(got.Payload, tc.pkt.Payload) {
				t.Errorf("payload mismatch")
			}
		})
	}
}

// TestDecodeTruncatedPayload verifies that a declared length longer than the
// frame is rejected and trailing bytes beyond it are ignored.
func TestDecodeTruncatedPayload(t *testing.T) {
	hdr := protocol.EncodeHeader(protocol.KindImageChunk, false, 0, 10)
	if _, err := protocol.Decode(append(hdr[:], 1, 2, 3)); !errors.Is(err, protocol.ErrMalformedPayload) {
		t.Fatalf("err = %v, want ErrMalformedPayload", err)
	}

	hdr = protocol.EncodeHeader(protocol.KindImageChunk, false, 0, 2)
	pkt, err := protocol.Decode(append(hdr[:], 1, 2, 3, 4))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(pkt.Payload, []byte{1, 2}) {
		t.Fatalf("payload = %v, want [1 2]", pkt.Payload)
	}
}

// TestEncodeOversizedPayload verifies that payloads over 255 bytes are refused.
func TestEncodeOversizedPayload(t *testing.T) {
	_, err := protocol.Encode(&protocol.Packet{Payload: make([]byte, 256)})
	if !errors.Is(err, protocol.ErrMalformedPayload) {
		t.Fatalf("err = %v, want ErrMalformedPayload", err)
	}
}

// TestCommandPacket verifies the single-shot command layout.
func TestCommandPacket(t *testing.T) {
	pkt := protocol.CommandPacket(protocol.KindHeartbeatBattery, protocol.KindImageInfo, 77)
	if pkt.Kind != protocol.KindAck || !pkt.AckRequested || pkt.Length != 4 || pkt.Seq != 0 {
		t.Fatalf("header = %+v", pkt.Header)
	}
	if !bytes.Equal(pkt.Payload, []byte{0x00, 0x21, 0x00, 0x00}) {
		t.Fatalf("payload = % x", pkt.Payload)
	}

	pkt = protocol.CommandPacket(protocol.KindImageChunk, protocol.KindImageChunk, 0x0102)
	if pkt.Seq != 0x0102 {
		t.Fatalf("Seq = %d, want 258", pkt.Seq)
	}
	if !bytes.Equal(pkt.Payload, []byte{0x50, 0x50, 0x01, 0x02}) {
		t.Fatalf("payload = % x", pkt.Payload)
	}

	lastRx, cmd, index, err := protocol.DecodeCommand(pkt.Payload)
	if err != nil || lastRx != protocol.KindImageChunk || cmd != protocol.KindImageChunk || index != 0x0102 {
		t.Fatalf("DecodeCommand = %v %v %d %v", lastRx, cmd, index, err)
	}
}

// TestKindString verifies names for known kinds and the Unknown fallback.
func TestKindString(t *testing.T) {
	if s := protocol.KindOtaResponse.String(); s != "OtaResponse" {
		t.Errorf("String = %q", s)
	}
	if s := protocol.Kind(0x42).String(); s != "Unknown(0x42)" {
		t.Errorf("String = %q", s)
	}
	if protocol.Kind(0x42).Known() || protocol.KindNone.Known() {
		t.Error("Known() true for undefined kind")
	}
	if protocol.KindFromID(0x80|0x21) != protocol.KindImageInfo {
		t.Error("KindFromID did not mask the ack flag")
	}
}
