package session

import (
	"errors"
	"fmt"
)

// Phase is the step of a contact the machine is in.
type Phase int

const (
	PhaseAwaitHeartbeat Phase = iota
	PhaseDrainQueue
	PhaseOtaTransfer
	PhaseRequestImageInfo
	PhaseDownload
	PhaseRequestDelete
	PhaseStop
)

var phaseNames = [...]string{
	PhaseAwaitHeartbeat:   "AwaitHeartbeat",
	PhaseDrainQueue:       "DrainCommandQueue",
	PhaseOtaTransfer:      "OtaTransfer",
	PhaseRequestImageInfo: "RequestImageInfo",
	PhaseDownload:         "DownloadImageChunks",
	PhaseRequestDelete:    "RequestDelete",
	PhaseStop:             "Stop",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Duplex is the direction the half-duplex radio is turned to.
type Duplex int

const (
	DuplexIdle Duplex = iota
	DuplexReceiving
	DuplexTransmitting
)

func (d Duplex) String() string {
	switch d {
	case DuplexIdle:
		return "idle"
	case DuplexReceiving:
		return "receiving"
	case DuplexTransmitting:
		return "transmitting"
	}
	return fmt.Sprintf("Duplex(%d)", int(d))
}

// ErrDuplexViolation is returned when a receive phase would overlap a
// transmit phase or the other way round.
var ErrDuplexViolation = errors.New("session: half-duplex violation")

// setDuplex turns the radio to d. Moving between receiving and transmitting
// must pass through idle. The line being released is lowered before the
// other one is raised.
func (m *Machine) setDuplex(d Duplex) error {
	if d != DuplexIdle && m.duplex != DuplexIdle && m.duplex != d {
		return fmt.Errorf("%w: %s requested while %s", ErrDuplexViolation, d, m.duplex)
	}

	rx, tx := d == DuplexReceiving, d == DuplexTransmitting
	if !rx {
		if err := m.cfg.Lines.SetRX(false); err != nil {
			return fmt.Errorf("RX line: %w", err)
		}
	}
	if !tx {
		if err := m.cfg.Lines.SetTX(false); err != nil {
			return fmt.Errorf("TX line: %w", err)
		}
	}
	if rx {
		if err := m.cfg.Lines.SetRX(true); err != nil {
			return fmt.Errorf("RX line: %w", err)
		}
	}
	if tx {
		if err := m.cfg.Lines.SetTX(true); err != nil {
			return fmt.Errorf("TX line: %w", err)
		}
	}

	m.duplex = d
	m.publish()
	return nil
}
