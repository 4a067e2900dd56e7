package session

import (
	"github.com/1ureka/groundlink/internal/protocol"
	"github.com/1ureka/groundlink/internal/util"
)

// applyRetry runs once per completed receive batch. Loss is assumed to be
// bounded within one window, so at most one window is rewound.
func (m *Machine) applyRetry(timedOut bool) {
	crc := m.cfg.Link.CRCErrorCount()
	if !m.forceResync && !m.missed && crc == 0 && !timedOut {
		return
	}

	switch m.current {
	case protocol.KindImageChunk:
		// Only lost or corrupt data is discarded. A timeout re-requests from
		// the first missing chunk without a rewind.
		if m.missed || crc > 0 {
			n := m.buf.Rewind(m.cfg.Window)
			util.Stats.AddRewind()
			util.LogWarning("image rewind by %d chunks (gap=%t crc=%d), next request at %d",
				n, m.missed, crc, m.buf.Received())
			m.emit(Event{Kind: EventRewind, Packet: m.current.String(), Seq: m.buf.Received()})
		}

	case protocol.KindOtaRequest:
		if m.cfg.OTA != nil {
			m.cfg.OTA.Rewind(m.cfg.OTA.Window())
			util.Stats.AddRewind()
			util.LogWarning("OTA rewind by one window (resync=%t crc=%d timeout=%t), next chunk %d",
				m.forceResync, crc, timedOut, m.cfg.OTA.Sequence())
			m.emit(Event{Kind: EventRewind, Packet: m.current.String(), Seq: m.cfg.OTA.Sequence()})
		}
	}

	m.missed = false
	m.forceResync = false
	m.cfg.Link.ResetCRCErrorCount()
}
