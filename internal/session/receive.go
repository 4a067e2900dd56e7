package session

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/1ureka/groundlink/internal/link"
	"github.com/1ureka/groundlink/internal/protocol"
	"github.com/1ureka/groundlink/internal/telemetry"
	"github.com/1ureka/groundlink/internal/util"
)

// Receive runs one receive phase: it absorbs packets until one requests an
// acknowledgment (or the receive timeout expires) and then applies the
// retry policy once for the whole batch.
func (m *Machine) Receive(ctx context.Context) error {
	if err := m.setDuplex(DuplexReceiving); err != nil {
		return err
	}
	if err := m.cfg.Link.SetReceiveMode(); err != nil {
		m.setDuplex(DuplexIdle)
		return fmt.Errorf("set receive mode: %w", err)
	}

	timedOut := false
	for {
		data, err := m.wait(ctx)
		if errors.Is(err, link.ErrReceiveTimeout) {
			util.LogWarning("no ack-requesting packet within %s while %s", m.cfg.ReceiveTimeout, m.phase)
			timedOut = true
			break
		}
		if err != nil {
			m.setDuplex(DuplexIdle)
			return err
		}
		util.Stats.AddRecv(len(data))

		if m.absorb(data) {
			break
		}
	}

	m.applyRetry(timedOut)
	m.publish()
	return m.setDuplex(DuplexIdle)
}

// wait blocks for the next frame, bounded by the receive timeout when set.
func (m *Machine) wait(ctx context.Context) ([]byte, error) {
	if m.cfg.ReceiveTimeout <= 0 {
		return m.cfg.Link.WaitForPacket(ctx)
	}

	wctx, cancel := context.WithTimeout(ctx, m.cfg.ReceiveTimeout)
	defer cancel()
	data, err := m.cfg.Link.WaitForPacket(wctx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, link.ErrReceiveTimeout
	}
	return data, err
}

// absorb decodes and dispatches one frame and reports whether it ends the batch.
func (m *Machine) absorb(data []byte) (endOfBatch bool) {
	pkt, err := protocol.Decode(data)
	if err != nil {
		// A short body still has a usable header.
		hdr, herr := protocol.DecodeHeader(data)
		if herr != nil {
			util.LogWarning("dropped packet: %v", err)
			return false
		}
		util.LogWarning("malformed %s payload: %v", hdr.Kind, err)
		return hdr.AckRequested
	}

	util.LogDebug("rx %s seq=%d len=%d ack=%t", pkt.Kind, pkt.Seq, pkt.Length, pkt.AckRequested)
	if m.cfg.Recorder != nil {
		m.cfg.Recorder.Record(m.cfg.Now(), pkt)
	}
	for _, p := range telemetry.Points(pkt) {
		m.cfg.Telemetry.Record(p.Subsystem, p.Fields)
	}
	m.emit(Event{Kind: EventPacket, Packet: pkt.Kind.String(), Seq: int(pkt.Seq)})

	m.dispatch(pkt)
	m.lastRx = pkt.Kind
	return pkt.AckRequested
}

func (m *Machine) dispatch(pkt *protocol.Packet) {
	switch {
	case pkt.Kind.IsHeartbeat():
		m.onHeartbeat(pkt)
	case pkt.Kind == protocol.KindImageInfo:
		m.onImageInfo(pkt)
	case pkt.Kind == protocol.KindImageChunk:
		m.onImageChunk(pkt)
	case pkt.Kind == protocol.KindOtaResponse:
		m.onOtaResponse(pkt)
	case pkt.Kind == protocol.KindDeleteImage:
		m.onDeleteImage()
	case pkt.Kind == protocol.KindSatAck:
		util.LogDebug("satellite acknowledged %s", m.current)
	default:
		util.LogDebug("no handler for %s", pkt.Kind)
	}
}

// onHeartbeat starts a new session unless the heartbeat answers a telemetry
// command of the same kind.
func (m *Machine) onHeartbeat(pkt *protocol.Packet) {
	if pkt.Kind == m.current {
		return
	}
	if !m.newSession {
		util.LogInfo("heartbeat %s: new contact", pkt.Kind)
		m.queuePos = 0
		m.otaFinished = false
	}
	m.newSession = true
	m.forceResync = true
	m.queue = slices.Clone(m.cfg.Commands)
	m.setPhase(PhaseDrainQueue)
}

func (m *Machine) onImageInfo(pkt *protocol.Packet) {
	if m.phase != PhaseRequestImageInfo {
		util.LogDebug("ignoring image info during %s", m.phase)
		return
	}
	meta, err := protocol.DecodeImageMeta(pkt.Payload)
	if err != nil {
		util.LogWarning("image info: %v", err)
		return
	}

	m.buf.Begin(meta)
	if meta.UID == 0 {
		util.LogInfo("satellite has no image")
		m.setPhase(PhaseStop)
		return
	}
	util.LogInfo("image uid=%d size=%d bytes in %d chunks, %d already buffered",
		meta.UID, meta.Size, meta.Count, m.buf.Received())
	m.setPhase(PhaseDownload)
}

func (m *Machine) onImageChunk(pkt *protocol.Packet) {
	if m.phase != PhaseDownload || m.buf.Target() == 0 {
		util.LogDebug("ignoring image chunk %d during %s", pkt.Seq, m.phase)
		return
	}
	if m.buf.IsComplete() {
		util.LogDebug("image already complete, ignoring chunk %d", pkt.Seq)
		return
	}
	expected := m.buf.Received()
	if m.buf.Accept(pkt.Seq, pkt.Payload) {
		m.missed = true
		util.Stats.AddGap()
		util.LogWarning("image chunk gap: got %d, expected %d", pkt.Seq, expected)
	}
}

func (m *Machine) onOtaResponse(pkt *protocol.Packet) {
	resp, err := protocol.DecodeOtaResponse(pkt.Payload)
	if err != nil {
		util.LogWarning("OTA response: %v", err)
		return
	}
	if m.cfg.OTA == nil || m.current != protocol.KindOtaRequest {
		util.LogDebug("ignoring OTA response while %s", m.current)
		return
	}
	if resp.OK {
		util.LogDebug("OTA window confirmed")
		m.emit(Event{Kind: EventOta, Seq: m.cfg.OTA.Sequence(), Detail: "window confirmed"})
		return
	}

	util.LogWarning("OTA window incomplete, satellite wants chunk %d", resp.Seq)
	m.cfg.OTA.ResumeFrom(resp.Seq)
	// The final window failed after the last chunk went out: stay on the OTA command.
	m.otaFinished = false
	m.emit(Event{Kind: EventOta, Seq: int(resp.Seq), Detail: "resume"})
}

func (m *Machine) onDeleteImage() {
	if m.phase != PhaseRequestDelete {
		return
	}
	util.LogSuccess("satellite deleted the downlinked image")
	m.setPhase(PhaseStop)
}
