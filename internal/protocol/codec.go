package protocol

import (
	"encoding/binary"
	"fmt"
)

// EncodeHeader packs a header into its 4-byte wire form.
func EncodeHeader(kind Kind, ackRequested bool, seq uint16, length uint8) [HeaderSize]byte {
	var b [HeaderSize]byte
	b[0] = kind.ID()
	if ackRequested {
		b[0] |= AckFlag
	}
	binary.BigEndian.PutUint16(b[1:3], seq)
	b[3] = length
	return b
}

// DecodeHeader unpacks the first HeaderSize bytes of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes (need %d)", ErrMalformedHeader, len(data), HeaderSize)
	}
	return Header{
		AckRequested: data[0]&AckFlag != 0,
		Kind:         KindFromID(data[0]),
		Seq:          binary.BigEndian.Uint16(data[1:3]),
		Length:       data[3],
	}, nil
}

// Encode serializes a Packet. The header length is taken from the payload.
func Encode(pkt *Packet) ([]byte, error) {
	if len(pkt.Payload) > MaxPayload {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrMalformedPayload, len(pkt.Payload), MaxPayload)
	}
	hdr := EncodeHeader(pkt.Kind, pkt.AckRequested, pkt.Seq, uint8(len(pkt.Payload)))
	buf := make([]byte, HeaderSize+len(pkt.Payload))
	copy(buf, hdr[:])
	copy(buf[HeaderSize:], pkt.Payload)
	return buf, nil
}

// Decode deserializes one packet. Bytes past the declared payload length are ignored.
func Decode(data []byte) (*Packet, error) {
	hdr, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	end := HeaderSize + int(hdr.Length)
	if len(data) < end {
		return nil, fmt.Errorf("%w: %s declares %d bytes, got %d",
			ErrMalformedPayload, hdr.Kind, hdr.Length, len(data)-HeaderSize)
	}
	pkt := &Packet{Header: hdr}
	if hdr.Length > 0 {
		pkt.Payload = make([]byte, hdr.Length)
		copy(pkt.Payload, data[HeaderSize:end])
	}
	return pkt, nil
}

// CommandPayloadSize is the payload length of every single-shot command.
const CommandPayloadSize = 4

// CommandPacket builds a single-shot command: an ack-requesting Ack frame
// whose payload is [lastRx][cmd][0][0]. For ImageChunk the last two bytes
// and the header sequence carry the requested chunk index.
func CommandPacket(lastRx Kind, cmd Kind, index uint16) *Packet {
	payload := make([]byte, CommandPayloadSize)
	payload[0] = lastRx.ID()
	payload[1] = cmd.ID()

	var seq uint16
	if cmd == KindImageChunk {
		binary.BigEndian.PutUint16(payload[2:4], index)
		seq = index
	}

	return &Packet{
		Header: Header{
			AckRequested: true,
			Kind:         KindAck,
			Seq:          seq,
			Length:       CommandPayloadSize,
		},
		Payload: payload,
	}
}

// DecodeCommand returns the command and index carried by a CommandPacket payload.
func DecodeCommand(payload []byte) (lastRx, cmd Kind, index uint16, err error) {
	if len(payload) < CommandPayloadSize {
		return 0, 0, 0, fmt.Errorf("%w: command needs %d bytes, got %d", ErrMalformedPayload, CommandPayloadSize, len(payload))
	}
	return KindFromID(payload[0]), KindFromID(payload[1]), binary.BigEndian.Uint16(payload[2:4]), nil
}
