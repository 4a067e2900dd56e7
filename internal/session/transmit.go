package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/1ureka/groundlink/internal/ota"
	"github.com/1ureka/groundlink/internal/protocol"
	"github.com/1ureka/groundlink/internal/util"
)

const imageTimeLayout = "2006-01-02_15-04-05"

// Transmit runs one transmit phase. Depending on the phase it sends one
// command, one OTA window, or nothing while waiting for a heartbeat.
func (m *Machine) Transmit(ctx context.Context) error {
	if err := m.setDuplex(DuplexTransmitting); err != nil {
		return err
	}
	err := m.transmitTurn(ctx)
	m.publish()
	if derr := m.setDuplex(DuplexIdle); err == nil {
		err = derr
	}
	return err
}

func (m *Machine) transmitTurn(ctx context.Context) error {
	switch m.phase {
	case PhaseAwaitHeartbeat:
		return nil

	case PhaseDrainQueue, PhaseOtaTransfer:
		if m.otaFinished {
			m.otaFinished = false
			m.queuePos++
		}
		if m.queuePos < len(m.queue) {
			cmd := m.queue[m.queuePos]
			if cmd == protocol.KindOtaRequest {
				return m.transmitOta(ctx)
			}
			m.setPhase(PhaseDrainQueue)
			m.queuePos++
			return m.sendCommand(ctx, cmd, 0)
		}
		m.newSession = false
		m.setPhase(PhaseRequestImageInfo)
		return m.sendCommand(ctx, protocol.KindImageInfo, 0)

	case PhaseRequestImageInfo:
		return m.sendCommand(ctx, protocol.KindImageInfo, 0)

	case PhaseDownload:
		if m.buf.IsComplete() {
			return m.finishImage(ctx)
		}
		return m.sendCommand(ctx, protocol.KindImageChunk, uint16(m.buf.Received()))

	case PhaseRequestDelete:
		return m.sendCommand(ctx, protocol.KindDeleteImage, 0)

	case PhaseStop:
		err := m.sendCommand(ctx, protocol.KindStop, 0)
		m.current = protocol.KindNone
		m.setPhase(PhaseAwaitHeartbeat)
		return err
	}
	return fmt.Errorf("session: unknown phase %s", m.phase)
}

// transmitOta sends OTA chunks until one requests an acknowledgment or the
// file is exhausted. A missing source skips the command in the same turn.
func (m *Machine) transmitOta(ctx context.Context) error {
	m.setPhase(PhaseOtaTransfer)
	m.current = protocol.KindOtaRequest

	for {
		var (
			pkt  *protocol.Packet
			done bool
			err  error
		)
		if m.cfg.OTA == nil {
			err = fmt.Errorf("%w: OTA is not configured", ota.ErrResourceUnavailable)
		} else {
			pkt, done, err = m.cfg.OTA.NextPacket()
		}
		if err != nil {
			if !errors.Is(err, ota.ErrResourceUnavailable) {
				return err
			}
			util.LogError("skipping OTA command: %v", err)
			m.queuePos++
			m.setPhase(PhaseDrainQueue)
			return m.transmitTurn(ctx)
		}

		if err := m.send(ctx, pkt); err != nil {
			return err
		}
		if done {
			util.LogSuccess("OTA transfer sent all %d chunks", m.cfg.OTA.Count())
			m.otaFinished = true
			m.emit(Event{Kind: EventOta, Seq: m.cfg.OTA.Count(), Detail: "sent"})
		}
		if pkt.AckRequested || done {
			return nil
		}
	}
}

// finishImage persists the completed image. On success the satellite is
// asked to delete it; on failure the buffer is kept for the next contact.
func (m *Machine) finishImage(ctx context.Context) error {
	name := fmt.Sprintf("earth_image_%s.jpg", m.cfg.Now().UTC().Format(imageTimeLayout))
	data := m.buf.Finalize()

	if err := m.cfg.Artifacts.Put(ctx, name, data); err != nil {
		util.LogError("saving %s failed, keeping %d chunks for the next contact: %v", name, m.buf.Received(), err)
		m.setPhase(PhaseStop)
		return m.transmitTurn(ctx)
	}

	util.LogSuccess("saved %s (%d bytes, uid %d)", name, len(data), m.buf.UID())
	util.Stats.AddImage()
	m.emit(Event{Kind: EventImage, Detail: name})
	m.buf.Clear()
	m.setPhase(PhaseRequestDelete)
	return m.transmitTurn(ctx)
}

func (m *Machine) sendCommand(ctx context.Context, cmd protocol.Kind, index uint16) error {
	m.current = cmd
	return m.send(ctx, protocol.CommandPacket(m.lastRx, cmd, index))
}

// send hands one packet to the link. A transmit without link-level ack is
// only logged; the next receive phase detects what went missing.
func (m *Machine) send(ctx context.Context, pkt *protocol.Packet) error {
	data, err := protocol.Encode(pkt)
	if err != nil {
		return err
	}

	if m.cfg.TxGap > 0 {
		t := time.NewTimer(m.cfg.TxGap)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}

	util.LogDebug("tx %s seq=%d len=%d ack=%t", pkt.Kind, pkt.Seq, pkt.Length, pkt.AckRequested)
	util.Stats.AddSent(len(data))
	if !m.cfg.Link.Transmit(data, m.cfg.Dest) {
		util.Stats.AddTxFailure()
		util.LogWarning("no link-level ack for %s seq=%d", pkt.Kind, pkt.Seq)
	}
	return m.cfg.Link.WaitUntilSent(ctx)
}
