// Package session runs the ground station side of a contact: it drains the
// command queue, pushes OTA updates, downloads the satellite's image and
// recovers from loss by rewinding one window at a time.
package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/1ureka/groundlink/internal/image"
	"github.com/1ureka/groundlink/internal/link"
	"github.com/1ureka/groundlink/internal/ota"
	"github.com/1ureka/groundlink/internal/protocol"
	"github.com/1ureka/groundlink/internal/store"
	"github.com/1ureka/groundlink/internal/telemetry"
	"github.com/1ureka/groundlink/internal/util"
)

// Recorder keeps a per-packet log of the run.
type Recorder interface {
	Record(t time.Time, pkt *protocol.Packet)
}

// Config holds the collaborators and tunables of a Machine.
type Config struct {
	Link      link.Link
	Lines     link.Lines      // defaults to link.NopLines
	Artifacts store.Sink      // finished images
	Telemetry telemetry.Sink  // defaults to telemetry.Nop
	Recorder  Recorder        // optional
	OTA       *ota.Engine     // nil skips every OTA command
	Commands  []protocol.Kind // reloaded into the queue on every new session

	Window         int           // image rewind size, defaults to ota.DefaultWindow
	ReceiveTimeout time.Duration // 0 waits forever
	TxGap          time.Duration // pause before every transmit
	Dest           uint8         // radio address of the satellite, defaults to link.SatelliteAddr

	OnEvent func(Event) // optional, called from the machine's goroutine
	Now     func() time.Time
}

// Machine is the session state machine. Run, Receive and Transmit must be
// called from one goroutine; Snapshot is safe from any goroutine.
type Machine struct {
	cfg Config
	buf *image.Buffer

	queue    []protocol.Kind
	queuePos int

	phase   Phase
	duplex  Duplex
	current protocol.Kind // command last sent, KindNone between contacts
	lastRx  protocol.Kind

	newSession  bool // set by a heartbeat, cleared once ImageInfo is requested
	forceResync bool // a new session began during the current batch
	missed      bool // an image chunk arrived out of order in the current batch
	otaFinished bool // last OTA chunk sent, queue advances on the next turn

	mu     sync.Mutex
	status Status
}

// New creates a machine waiting for the first heartbeat.
func New(cfg Config) *Machine {
	if cfg.Lines == nil {
		cfg.Lines = link.NopLines{}
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = telemetry.Nop{}
	}
	if cfg.Window <= 0 {
		cfg.Window = ota.DefaultWindow
	}
	if cfg.Dest == 0 {
		cfg.Dest = link.SatelliteAddr
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Machine{
		cfg:     cfg,
		buf:     image.NewBuffer(),
		queue:   slices.Clone(cfg.Commands),
		current: protocol.KindNone,
		lastRx:  protocol.KindNone,
	}
	m.publish()
	return m
}

// Run alternates receive and transmit phases until ctx is cancelled or the
// link fails.
func (m *Machine) Run(ctx context.Context) error {
	util.LogInfo("session machine started, %d queued commands", len(m.queue))
	for {
		if err := m.Receive(ctx); err != nil {
			return err
		}
		if err := m.Transmit(ctx); err != nil {
			return err
		}
	}
}

// Phase is the current phase. Must be called from the machine's goroutine.
func (m *Machine) Phase() Phase { return m.phase }

// Buffer exposes the image buffer. Must be used from the machine's goroutine.
func (m *Machine) Buffer() *image.Buffer { return m.buf }

func (m *Machine) setPhase(p Phase) {
	if m.phase == p {
		return
	}
	util.LogInfo("phase %s -> %s", m.phase, p)
	m.phase = p
	m.emit(Event{Kind: EventPhase, Phase: p.String()})
	m.publish()
}
