package sessionlog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/1ureka/groundlink/internal/protocol"
	"github.com/1ureka/groundlink/internal/store"
)

// TestRecordFormat verifies the three-line record layout.
func TestRecordFormat(t *testing.T) {
	start := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	l := New(start)
	if l.Name() != "GS_Logs_2024-05-06_07-08-09.txt" {
		t.Fatalf("Name = %q", l.Name())
	}

	pkt := &protocol.Packet{
		Header:  protocol.Header{AckRequested: true, Kind: protocol.KindImageChunk, Seq: 3, Length: 2},
		Payload: []byte{0xAB, 0xCD},
	}
	l.Record(start.Add(time.Second), pkt)

	want := "2024-05-06_07-08-10\n" +
		"Kind: ImageChunk, ID: 0x50, Ack: true, Seq: 3, Length: 2\n" +
		"Payload: abcd\n\n"
	if got := string(l.Bytes()); got != want {
		t.Fatalf("record:\n%q\nwant\n%q", got, want)
	}
}

// TestFlush verifies the log lands in the sink and that an empty log is skipped.
func TestFlush(t *testing.T) {
	mem := store.NewMemory()
	l := New(time.Unix(0, 0).UTC())

	if err := l.Flush(context.Background(), mem); err != nil {
		t.Fatal(err)
	}
	if len(mem.Names()) != 0 {
		t.Fatal("empty log was written")
	}

	l.Record(time.Unix(0, 0).UTC(), &protocol.Packet{Header: protocol.Header{Kind: protocol.KindSatAck}})
	if err := l.Flush(context.Background(), mem); err != nil {
		t.Fatal(err)
	}
	data, ok := mem.Get(l.Name())
	if !ok || !strings.Contains(string(data), "Kind: SatAck") {
		t.Fatalf("flushed = %q, %v", data, ok)
	}
}
