package sim

import (
	"context"
	"testing"
	"time"

	"github.com/1ureka/groundlink/internal/link"
	"github.com/1ureka/groundlink/internal/protocol"
)

func startSatellite(t *testing.T, cfg Config) (*Satellite, *link.Pipe) {
	t.Helper()
	ground, space := link.NewPipe()
	sat := New(space, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		ground.Close()
	})
	go sat.Run(ctx)
	return sat, ground
}

func recv(t *testing.T, l link.Link) *protocol.Packet {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := l.WaitForPacket(ctx)
	if err != nil {
		t.Fatalf("WaitForPacket: %v", err)
	}
	pkt, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return pkt
}

func command(t *testing.T, l link.Link, cmd protocol.Kind, index uint16) {
	t.Helper()
	data, err := protocol.Encode(protocol.CommandPacket(protocol.KindNone, cmd, index))
	if err != nil {
		t.Fatal(err)
	}
	if !l.Transmit(data, link.SatelliteAddr) {
		t.Fatal("Transmit failed")
	}
}

// TestHeartbeatUntilEngaged verifies the satellite announces itself and
// answers ImageInfo with its stored image.
func TestHeartbeatUntilEngaged(t *testing.T) {
	img := make([]byte, 450)
	sat, ground := startSatellite(t, Config{Image: img, ImageUID: 9, HeartbeatInterval: time.Hour})

	if hb := recv(t, ground); hb.Kind != protocol.KindHeartbeatBattery || !hb.AckRequested {
		t.Fatalf("first packet = %+v", hb.Header)
	}

	command(t, ground, protocol.KindImageInfo, 0)
	pkt := recv(t, ground)
	meta, err := protocol.DecodeImageMeta(pkt.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if meta.UID != 9 || meta.Size != 450 || meta.Count != 3 {
		t.Fatalf("meta = %+v", meta)
	}
	if got := sat.Commands(); len(got) != 1 || got[0] != protocol.KindImageInfo {
		t.Fatalf("Commands = %v", got)
	}
}

// TestStreamWindow verifies one window of chunks with the ack on its last chunk,
// and that a dropped chunk is only dropped once.
func TestStreamWindow(t *testing.T) {
	img := make([]byte, 25*DefaultChunkSize)
	_, ground := startSatellite(t, Config{
		Image:             img,
		HeartbeatInterval: time.Hour,
		DropOnce:          map[uint16]bool{2: true},
	})
	recv(t, ground) // heartbeat

	command(t, ground, protocol.KindImageChunk, 0)
	var seqs []uint16
	for {
		pkt := recv(t, ground)
		seqs = append(seqs, pkt.Seq)
		if pkt.AckRequested {
			break
		}
	}
	if len(seqs) != 9 || seqs[2] != 3 || seqs[len(seqs)-1] != 9 {
		t.Fatalf("first window seqs = %v", seqs)
	}

	command(t, ground, protocol.KindImageChunk, 20)
	count := 0
	for {
		pkt := recv(t, ground)
		count++
		if pkt.AckRequested {
			if pkt.Seq != 24 {
				t.Fatalf("last chunk seq = %d, want 24", pkt.Seq)
			}
			break
		}
	}
	if count != 5 {
		t.Fatalf("tail window had %d chunks, want 5", count)
	}

	command(t, ground, protocol.KindImageChunk, 2)
	if pkt := recv(t, ground); pkt.Seq != 2 {
		t.Fatalf("re-request started at %d, want 2", pkt.Seq)
	}
}

// TestOtaResponses verifies in-order storage and a negative response on a gap.
func TestOtaResponses(t *testing.T) {
	sat, ground := startSatellite(t, Config{HeartbeatInterval: time.Hour})
	recv(t, ground)

	send := func(seq uint16, remaining uint16, ack bool, body byte) {
		pkt := &protocol.Packet{
			Header:  protocol.Header{AckRequested: ack, Kind: protocol.KindOtaRequest, Seq: seq, Length: 3},
			Payload: []byte{byte(remaining >> 8), byte(remaining), body},
		}
		data, _ := protocol.Encode(pkt)
		ground.Transmit(data, link.SatelliteAddr)
	}

	send(0, 3, false, 'a')
	send(2, 1, true, 'c') // chunk 1 lost
	resp, err := protocol.DecodeOtaResponse(recv(t, ground).Payload)
	if err != nil {
		t.Fatal(err)
	}
	if resp.OK || resp.Seq != 1 {
		t.Fatalf("response = %+v, want !OK seq 1", resp)
	}

	send(1, 2, false, 'b')
	send(2, 1, false, 'c')
	send(3, 0, true, 'd')
	resp, _ = protocol.DecodeOtaResponse(recv(t, ground).Payload)
	if !resp.OK {
		t.Fatalf("response = %+v, want OK", resp)
	}
	if got := string(sat.OtaResult()); got != "abcd" {
		t.Fatalf("OtaResult = %q", got)
	}
	if sat.OtaWindows() != 2 {
		t.Fatalf("OtaWindows = %d", sat.OtaWindows())
	}
}

// TestStopGoesQuiet verifies Stop silences the satellite and Contact wakes it.
func TestStopGoesQuiet(t *testing.T) {
	sat, ground := startSatellite(t, Config{HeartbeatInterval: 20 * time.Millisecond})
	recv(t, ground)

	command(t, ground, protocol.KindStop, 0)
	deadline := time.Now().Add(2 * time.Second)
	for !sat.Quiet() {
		if time.Now().After(deadline) {
			t.Fatal("satellite never went quiet")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Drain heartbeats sent before Stop was processed.
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		_, err := ground.WaitForPacket(ctx)
		cancel()
		if err != nil {
			break
		}
	}

	sat.Contact()
	if hb := recv(t, ground); !hb.Kind.IsHeartbeat() {
		t.Fatalf("after Contact got %s", hb.Kind)
	}
}
