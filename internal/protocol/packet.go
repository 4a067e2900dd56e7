// Package protocol defines the packet format and message kinds exchanged
// with the satellite over the radio link.
package protocol

import "fmt"

// Kind identifies a message by its 7-bit ID. Values outside the known set
// are carried as-is and reported as Unknown.
type Kind uint8

// Message kinds.
const (
	KindHeartbeatBattery Kind = 0x00 // battery status heartbeat
	KindHeartbeatSun     Kind = 0x01 // sun vector heartbeat
	KindHeartbeatImu     Kind = 0x02 // IMU heartbeat
	KindHeartbeatGps     Kind = 0x03 // GPS heartbeat
	KindAck              Kind = 0x08 // ground station command / ack
	KindSatAck           Kind = 0x09 // satellite ack
	KindOtaRequest       Kind = 0x14 // OTA chunk push
	KindOtaResponse      Kind = 0x15 // OTA window result
	KindImageInfo        Kind = 0x21 // stored image metadata
	KindDeleteImage      Kind = 0x22 // delete stored image
	KindStop             Kind = 0x23 // end of contact
	KindImageChunk       Kind = 0x50 // one image chunk
)

// KindNone is the "no command active" marker. It is never put on the wire.
const KindNone Kind = 0xFF

const (
	HeaderSize = 4    // Flags|ID(1) + Seq(2) + Length(1)
	AckFlag    = 0x80 // top bit of byte 0
	IDMask     = 0x7F // message ID bits of byte 0
	MaxPayload = 0xFF // Length is a single byte
)

var kindNames = map[Kind]string{
	KindHeartbeatBattery: "HeartbeatBattery",
	KindHeartbeatSun:     "HeartbeatSun",
	KindHeartbeatImu:     "HeartbeatImu",
	KindHeartbeatGps:     "HeartbeatGps",
	KindAck:              "Ack",
	KindSatAck:           "SatAck",
	KindOtaRequest:       "OtaRequest",
	KindOtaResponse:      "OtaResponse",
	KindImageInfo:        "ImageInfo",
	KindDeleteImage:      "DeleteImage",
	KindStop:             "Stop",
	KindImageChunk:       "ImageChunk",
	KindNone:             "None",
}

// KindFromID masks off the ack flag and returns the kind for a raw ID byte.
func KindFromID(id uint8) Kind { return Kind(id & IDMask) }

// ID returns the 7-bit wire value of k.
func (k Kind) ID() uint8 { return uint8(k) & IDMask }

// Known reports whether k is one of the defined message kinds.
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok && k != KindNone
}

// IsHeartbeat reports whether k is one of the four heartbeat kinds.
func (k Kind) IsHeartbeat() bool {
	return k <= KindHeartbeatGps
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02x)", uint8(k))
}

// Header is the fixed 4-byte packet header.
type Header struct {
	AckRequested bool
	Kind         Kind   // 7-bit message ID
	Seq          uint16 // sequence count, meaning depends on Kind
	Length       uint8  // payload length in bytes
}

// Packet is one framed message on the link.
type Packet struct {
	Header
	Payload []byte // exactly Header.Length bytes
}
