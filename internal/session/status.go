package session

import "time"

// Status is a point-in-time view of the machine for operators.
type Status struct {
	Phase         string `json:"phase"`
	Duplex        string `json:"duplex"`
	Current       string `json:"current"`
	LastReceived  string `json:"lastReceived"`
	QueuePosition int    `json:"queuePosition"`
	QueueLength   int    `json:"queueLength"`
	NewSession    bool   `json:"newSession"`
	ImageUID      uint8  `json:"imageUid"`
	ImageReceived int    `json:"imageReceived"`
	ImageTarget   int    `json:"imageTarget"`
	OtaSequence   int    `json:"otaSequence"`
	OtaCount      int    `json:"otaCount"`
}

// Event kinds.
const (
	EventPhase  = "phase"
	EventPacket = "packet"
	EventImage  = "image"
	EventOta    = "ota"
	EventRewind = "rewind"
)

// Event is one notable thing that happened, fed to Config.OnEvent.
type Event struct {
	Kind   string    `json:"kind"`
	Time   time.Time `json:"time"`
	Phase  string    `json:"phase,omitempty"`
	Packet string    `json:"packet,omitempty"`
	Seq    int       `json:"seq,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Snapshot returns the latest published status.
func (m *Machine) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Machine) publish() {
	st := Status{
		Phase:         m.phase.String(),
		Duplex:        m.duplex.String(),
		Current:       m.current.String(),
		LastReceived:  m.lastRx.String(),
		QueuePosition: m.queuePos,
		QueueLength:   len(m.queue),
		NewSession:    m.newSession,
		ImageUID:      m.buf.UID(),
		ImageReceived: m.buf.Received(),
		ImageTarget:   int(m.buf.Target()),
	}
	if m.cfg.OTA != nil {
		st.OtaSequence = m.cfg.OTA.Sequence()
		st.OtaCount = m.cfg.OTA.Count()
	}

	m.mu.Lock()
	m.status = st
	m.mu.Unlock()
}

func (m *Machine) emit(ev Event) {
	if m.cfg.OnEvent == nil {
		return
	}
	ev.Time = m.cfg.Now()
	m.cfg.OnEvent(ev)
}
