// Package sessionlog keeps a plain-text record of every packet received
// during a run, uploaded to the artifact store when the run ends.
package sessionlog

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/1ureka/groundlink/internal/protocol"
	"github.com/1ureka/groundlink/internal/store"
)

const timeLayout = "2006-01-02_15-04-05"

// Log accumulates packet records in memory.
type Log struct {
	name string

	mu  sync.Mutex
	buf bytes.Buffer
}

// New starts a log named after start.
func New(start time.Time) *Log {
	return &Log{name: fmt.Sprintf("GS_Logs_%s.txt", start.Format(timeLayout))}
}

// Name is the artifact name the log is flushed under.
func (l *Log) Name() string { return l.name }

// Record appends the reception time, header fields and payload of pkt.
func (l *Log) Record(t time.Time, pkt *protocol.Packet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(&l.buf, "%s\n", t.Format(timeLayout))
	fmt.Fprintf(&l.buf, "Kind: %s, ID: 0x%02x, Ack: %t, Seq: %d, Length: %d\n",
		pkt.Kind, pkt.Kind.ID(), pkt.AckRequested, pkt.Seq, pkt.Length)
	fmt.Fprintf(&l.buf, "Payload: %s\n\n", hex.EncodeToString(pkt.Payload))
}

// Bytes returns a copy of everything recorded so far.
func (l *Log) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return bytes.Clone(l.buf.Bytes())
}

// Flush writes the log to sink. An empty log is not written.
func (l *Log) Flush(ctx context.Context, sink store.Sink) error {
	data := l.Bytes()
	if len(data) == 0 {
		return nil
	}
	if err := sink.Put(ctx, l.name, data); err != nil {
		return fmt.Errorf("flush session log: %w", err)
	}
	return nil
}
