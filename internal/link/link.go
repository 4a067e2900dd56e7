// Package link carries framed packets between the ground station and the
// satellite's radio. Every implementation delivers one packet per frame and
// protects it with a CRC-32 trailer; frames that fail the check are dropped
// and counted, never handed to the caller.
package link

import (
	"context"
	"errors"
)

// Link is the half-duplex radio as seen by the session machine.
type Link interface {
	// SetReceiveMode turns the radio around to listen. Frames that already
	// arrived are kept.
	SetReceiveMode() error

	// WaitForPacket blocks until a frame passes its CRC check, ctx is done,
	// or the link closes.
	WaitForPacket(ctx context.Context) ([]byte, error)

	// Transmit sends one frame to dest and reports whether the link accepted it.
	Transmit(data []byte, dest uint8) bool

	// WaitUntilSent blocks until the last transmitted frame has left the radio.
	WaitUntilSent(ctx context.Context) error

	// CRCErrorCount is the number of corrupt frames since the last reset.
	CRCErrorCount() uint32
	ResetCRCErrorCount()

	Close() error
}

// Lines drives the RX/TX activity signals of the radio front end.
type Lines interface {
	SetRX(on bool) error
	SetTX(on bool) error
}

// NopLines is used when the hardware has no activity lines.
type NopLines struct{}

func (NopLines) SetRX(bool) error { return nil }
func (NopLines) SetTX(bool) error { return nil }

// SatelliteAddr is the radio address of the single peer.
const SatelliteAddr uint8 = 0x01

// GroundAddr is the radio address of the ground station.
const GroundAddr uint8 = 0x00

var (
	// ErrClosed is returned once the link or its underlying connection is gone.
	ErrClosed = errors.New("link: closed")

	// ErrReceiveTimeout is returned when no frame arrives within the
	// configured receive timeout.
	ErrReceiveTimeout = errors.New("link: receive timeout")
)
