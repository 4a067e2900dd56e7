package rtc

import (
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/groundlink/internal/util"
)

// DefaultSTUNServers are used for ICE candidate gathering when Config has none.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Config selects ICE behaviour for a WebRTC link.
type Config struct {
	STUNServers     []string // nil means DefaultSTUNServers; empty means host candidates only
	IncludeLoopback bool     // offer 127.0.0.1 candidates (same-machine testing)
}

// newPeerConnection creates a PeerConnection whose pion internals log
// through the process logger.
func newPeerConnection(cfg Config) (*webrtc.PeerConnection, error) {
	se := webrtc.SettingEngine{LoggerFactory: util.PionLoggerFactory{}}
	if cfg.IncludeLoopback {
		se.SetIncludeLoopbackCandidate(true)
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	servers := cfg.STUNServers
	if servers == nil {
		servers = DefaultSTUNServers
	}
	config := webrtc.Configuration{}
	if len(servers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: servers}}
	}
	return api.NewPeerConnection(config)
}

// newDataChannel creates a pre-negotiated DataChannel on the given
// PeerConnection. Negotiated mode (ID 0) lets both sides create the channel
// independently. The channel is ordered so window boundaries arrive last.
func newDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	negotiated := true
	id := uint16(0)

	return pc.CreateDataChannel("radio", &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
}
