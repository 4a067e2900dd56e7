// Package sim is a satellite that answers a ground station over any link.
// It serves one stored image, accepts OTA uploads and can drop chosen
// chunks to exercise recovery.
package sim

import (
	"bytes"
	"context"
	"encoding/binary"
	"maps"
	"sync"
	"time"

	"github.com/1ureka/groundlink/internal/link"
	"github.com/1ureka/groundlink/internal/ota"
	"github.com/1ureka/groundlink/internal/protocol"
	"github.com/1ureka/groundlink/internal/util"
)

const (
	DefaultChunkSize         = 200
	DefaultHeartbeatInterval = 200 * time.Millisecond
)

// Config describes the simulated satellite.
type Config struct {
	Image     []byte
	ImageUID  uint8 // derived from the image content when 0
	Window    int   // image chunks per ack, defaults to 10
	ChunkSize int   // image bytes per chunk, defaults to DefaultChunkSize

	Heartbeat         protocol.Kind // kind announcing a contact, defaults to HeartbeatBattery
	HeartbeatInterval time.Duration

	DropOnce    map[uint16]bool // image chunks lost the first time they are sent
	DropOtaOnce map[uint16]bool // OTA chunks ignored the first time they arrive
}

// Satellite is the simulated peer.
type Satellite struct {
	link link.Link
	cfg  Config

	txMu sync.Mutex

	mu       sync.Mutex
	image    []byte
	uid      uint8
	quiet    bool // after Stop, until Contact
	engaged  bool // a command arrived this contact
	commands []protocol.Kind
	deletes  int

	otaExpected int
	otaChunks   [][]byte
	otaResult   []byte
	otaWindows  int
}

// New creates a satellite on l. It starts announcing itself once Run is called.
func New(l link.Link, cfg Config) *Satellite {
	if cfg.Window <= 0 {
		cfg.Window = ota.DefaultWindow
	}
	if cfg.ChunkSize <= 0 || cfg.ChunkSize > protocol.MaxPayload {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if !cfg.Heartbeat.IsHeartbeat() {
		cfg.Heartbeat = protocol.KindHeartbeatBattery
	}
	cfg.DropOnce = maps.Clone(cfg.DropOnce)
	cfg.DropOtaOnce = maps.Clone(cfg.DropOtaOnce)

	s := &Satellite{
		link:  l,
		cfg:   cfg,
		image: bytes.Clone(cfg.Image),
		uid:   cfg.ImageUID,
	}
	if s.uid == 0 && len(s.image) > 0 {
		s.uid = util.ContentID(s.image)
	}
	return s
}

// Run answers the ground station until ctx is cancelled or the link closes.
func (s *Satellite) Run(ctx context.Context) error {
	go s.announce(ctx)

	for {
		data, err := s.link.WaitForPacket(ctx)
		if err != nil {
			return err
		}
		pkt, err := protocol.Decode(data)
		if err != nil {
			util.LogDebug("sim: %v", err)
			continue
		}
		s.handle(pkt)
	}
}

// Contact starts a new pass: heartbeats resume until the ground station answers.
func (s *Satellite) Contact() {
	s.mu.Lock()
	s.quiet = false
	s.engaged = false
	s.mu.Unlock()
}

// announce sends heartbeats while the satellite is in contact and not yet engaged.
func (s *Satellite) announce(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		idle := !s.quiet && !s.engaged
		s.mu.Unlock()
		if idle {
			s.send(s.heartbeat(s.cfg.Heartbeat))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Satellite) handle(pkt *protocol.Packet) {
	switch pkt.Kind {
	case protocol.KindOtaRequest:
		s.markEngaged()
		s.receiveOta(pkt)
	case protocol.KindAck:
		_, cmd, index, err := protocol.DecodeCommand(pkt.Payload)
		if err != nil {
			util.LogDebug("sim: %v", err)
			return
		}
		s.markEngaged()
		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		s.mu.Unlock()
		s.command(cmd, index)
	default:
		util.LogDebug("sim: ignoring %s", pkt.Kind)
	}
}

func (s *Satellite) markEngaged() {
	s.mu.Lock()
	s.engaged = true
	s.mu.Unlock()
}

func (s *Satellite) command(cmd protocol.Kind, index uint16) {
	switch {
	case cmd.IsHeartbeat():
		s.send(s.heartbeat(cmd))

	case cmd == protocol.KindImageInfo:
		s.send(s.reply(protocol.KindImageInfo, 0, protocol.EncodeImageMeta(s.meta())))

	case cmd == protocol.KindImageChunk:
		s.streamImage(index)

	case cmd == protocol.KindDeleteImage:
		s.mu.Lock()
		s.image = nil
		s.uid = 0
		s.deletes++
		s.mu.Unlock()
		s.send(s.reply(protocol.KindDeleteImage, 0, nil))

	case cmd == protocol.KindStop:
		s.mu.Lock()
		s.quiet = true
		s.mu.Unlock()

	default:
		s.send(s.reply(protocol.KindSatAck, 0, nil))
	}
}

func (s *Satellite) meta() protocol.ImageMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.image) == 0 {
		return protocol.ImageMeta{}
	}
	return protocol.ImageMeta{
		UID:   s.uid,
		Size:  uint32(len(s.image)),
		Count: uint16((len(s.image) + s.cfg.ChunkSize - 1) / s.cfg.ChunkSize),
	}
}

// streamImage sends one window of chunks starting at from. The last chunk
// of the window, or of the image, requests an ack.
func (s *Satellite) streamImage(from uint16) {
	m := s.meta()
	if int(from) >= int(m.Count) {
		s.send(s.reply(protocol.KindSatAck, 0, nil))
		return
	}

	end := min(int(from)+s.cfg.Window, int(m.Count))
	for i := int(from); i < end; i++ {
		idx := uint16(i)
		if s.dropOnce(s.cfg.DropOnce, idx) {
			util.LogDebug("sim: dropping image chunk %d", idx)
			continue
		}

		s.mu.Lock()
		off := i * s.cfg.ChunkSize
		chunk := s.image[off:min(off+s.cfg.ChunkSize, len(s.image))]
		s.mu.Unlock()

		pkt := &protocol.Packet{
			Header: protocol.Header{
				AckRequested: i == end-1,
				Kind:         protocol.KindImageChunk,
				Seq:          idx,
				Length:       uint8(len(chunk)),
			},
			Payload: chunk,
		}
		s.send(pkt)
	}
}

// receiveOta stores in-order chunks and answers at every ack request with
// the next sequence it needs.
func (s *Satellite) receiveOta(pkt *protocol.Packet) {
	if len(pkt.Payload) < 2 {
		return
	}
	if s.dropOnce(s.cfg.DropOtaOnce, pkt.Seq) {
		util.LogDebug("sim: losing OTA chunk %d", pkt.Seq)
		return
	}
	remaining := int(binary.BigEndian.Uint16(pkt.Payload[0:2]))

	s.mu.Lock()
	if pkt.Seq == 0 && s.otaExpected != 0 {
		s.otaExpected = 0
		s.otaChunks = nil
	}
	if int(pkt.Seq) == s.otaExpected {
		s.otaChunks = append(s.otaChunks, bytes.Clone(pkt.Payload[2:]))
		s.otaExpected++
		if remaining == 0 {
			s.otaResult = bytes.Join(s.otaChunks, nil)
		}
	}
	ok := s.otaExpected > int(pkt.Seq)
	next := s.otaExpected
	if pkt.AckRequested {
		s.otaWindows++
	}
	s.mu.Unlock()

	if !pkt.AckRequested {
		return
	}
	s.send(s.reply(protocol.KindOtaResponse, 0, protocol.EncodeOtaResponse(protocol.OtaResponse{
		OK:  ok,
		Seq: uint16(next),
	})))
}

func (s *Satellite) dropOnce(set map[uint16]bool, idx uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set[idx] {
		delete(set, idx)
		return true
	}
	return false
}

func (s *Satellite) heartbeat(kind protocol.Kind) *protocol.Packet {
	var payload []byte
	switch kind {
	case protocol.KindHeartbeatBattery:
		payload = protocol.EncodeBattery(protocol.BatteryTelemetry{
			SOC:     [6]uint8{90, 90, 89, 91, 90, 88},
			Current: -150,
			Time:    uint32(time.Now().Unix()),
		})
	case protocol.KindHeartbeatSun:
		payload = protocol.EncodeSun(protocol.SunTelemetry{X: 0.6, Y: -0.48, Z: 0.64, Time: uint32(time.Now().Unix())})
	default:
		payload = make([]byte, 8)
	}
	return s.reply(kind, 0, payload)
}

func (s *Satellite) reply(kind protocol.Kind, seq uint16, payload []byte) *protocol.Packet {
	return &protocol.Packet{
		Header:  protocol.Header{AckRequested: true, Kind: kind, Seq: seq, Length: uint8(len(payload))},
		Payload: payload,
	}
}

func (s *Satellite) send(pkt *protocol.Packet) {
	data, err := protocol.Encode(pkt)
	if err != nil {
		util.LogWarning("sim: %v", err)
		return
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if !s.link.Transmit(data, link.GroundAddr) {
		util.LogDebug("sim: transmit %s failed", pkt.Kind)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────────────────────────────────

// Commands lists every command received, in order.
func (s *Satellite) Commands() []protocol.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Kind(nil), s.commands...)
}

// HasImage reports whether the image is still stored.
func (s *Satellite) HasImage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.image) > 0
}

// Deletes is the number of DeleteImage commands served.
func (s *Satellite) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

// Quiet reports whether the satellite received Stop and awaits Contact.
func (s *Satellite) Quiet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiet
}

// OtaResult is the uploaded file once its last chunk arrived in order.
func (s *Satellite) OtaResult() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.otaResult)
}

// OtaWindows is the number of OTA acknowledgments requested so far.
func (s *Satellite) OtaWindows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otaWindows
}
