package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide link counter.
var Stats = &stats{}

type stats struct {
	PacketsRecv atomic.Int64 // decoded packets received
	PacketsSent atomic.Int64 // packets handed to the link
	BytesRecv   atomic.Int64 // frame bytes received
	BytesSent   atomic.Int64 // frame bytes sent
	CRCFaults   atomic.Int64 // frames dropped for a bad checksum
	Gaps        atomic.Int64 // out-of-order image chunks
	Rewinds     atomic.Int64 // retry policy rewinds
	TxFailures  atomic.Int64 // transmits without link-level ack
	Images      atomic.Int64 // images persisted
}

func (s *stats) AddRecv(n int) { s.PacketsRecv.Add(1); s.BytesRecv.Add(int64(n)) }
func (s *stats) AddSent(n int) { s.PacketsSent.Add(1); s.BytesSent.Add(int64(n)) }
func (s *stats) AddCRCFaults(n uint32) {
	s.CRCFaults.Add(int64(n))
}
func (s *stats) AddGap()       { s.Gaps.Add(1) }
func (s *stats) AddRewind()    { s.Rewinds.Add(1) }
func (s *stats) AddTxFailure() { s.TxFailures.Add(1) }
func (s *stats) AddImage()     { s.Images.Add(1) }

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	PacketsRecv int64 `json:"packetsRecv"`
	PacketsSent int64 `json:"packetsSent"`
	BytesRecv   int64 `json:"bytesRecv"`
	BytesSent   int64 `json:"bytesSent"`
	CRCFaults   int64 `json:"crcFaults"`
	Gaps        int64 `json:"gaps"`
	Rewinds     int64 `json:"rewinds"`
	TxFailures  int64 `json:"txFailures"`
	Images      int64 `json:"images"`
}

// Snapshot copies every counter.
func (s *stats) Snapshot() Snapshot {
	return Snapshot{
		PacketsRecv: s.PacketsRecv.Load(),
		PacketsSent: s.PacketsSent.Load(),
		BytesRecv:   s.BytesRecv.Load(),
		BytesSent:   s.BytesSent.Load(),
		CRCFaults:   s.CRCFaults.Load(),
		Gaps:        s.Gaps.Load(),
		Rewinds:     s.Rewinds.Load(),
		TxFailures:  s.TxFailures.Load(),
		Images:      s.Images.Load(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs link statistics every
// interval while there is traffic. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		prev := Stats.Snapshot()
		for {
			select {
			case <-ticker.C:
				cur := Stats.Snapshot()
				if cur.PacketsRecv != prev.PacketsRecv || cur.PacketsSent != prev.PacketsSent {
					pterm.DefaultLogger.Info(formatStats(prev, cur, interval))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats renders the change between two snapshots for the logger.
func formatStats(prev, cur Snapshot, interval time.Duration) string {
	secs := interval.Seconds()
	return fmt.Sprintf("Rx: %s/s %3d pkt | Tx: %s/s %3d pkt | CRC: %d | Gaps: %d | Rewinds: %d",
		formatBytes(float64(cur.BytesRecv-prev.BytesRecv)/secs),
		cur.PacketsRecv-prev.PacketsRecv,
		formatBytes(float64(cur.BytesSent-prev.BytesSent)/secs),
		cur.PacketsSent-prev.PacketsSent,
		cur.CRCFaults-prev.CRCFaults,
		cur.Gaps-prev.Gaps,
		cur.Rewinds-prev.Rewinds,
	)
}
