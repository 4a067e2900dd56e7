// Package config holds the ground station's runtime configuration and loads
// the telemetry command list.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/1ureka/groundlink/internal/ota"
	"github.com/1ureka/groundlink/internal/protocol"
)

// LinkKind selects the radio link implementation.
type LinkKind string

const (
	LinkSerial    LinkKind = "serial"    // KISS TNC on a serial port
	LinkTCP       LinkKind = "tcp"       // KISS TNC over TCP
	LinkWebSocket LinkKind = "websocket" // radio gateway
	LinkUDP       LinkKind = "udp"       // radio gateway over datagrams
	LinkWebRTC    LinkKind = "webrtc"    // remote front end over a DataChannel
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config collects every parameter of a ground station run.
type Config struct {
	Link     LinkKind
	Address  string // serial device, host:port, or URL depending on Link
	Baud     int    // serial only
	Listen   bool   // webrtc: serve signaling instead of dialing it
	STUN     []string

	ArtifactDir string
	S3Bucket    string
	S3Region    string
	S3Prefix    string

	MQTTBroker string
	MQTTTopic  string

	OTAPath      string
	CommandsPath string
	Commands     []protocol.Kind

	Window         int
	ReceiveTimeout time.Duration
	TxGap          time.Duration

	StatusAddr string
	MDNS       bool
	Debug      bool
}

// Default returns the configuration used when no flags are given.
func Default() Config {
	return Config{
		Link:        LinkSerial,
		Address:     "/dev/ttyUSB0",
		Baud:        9600,
		ArtifactDir: ".",
		MQTTTopic:   "groundlink",
		Commands:    DefaultCommands(),
		Window:      ota.DefaultWindow,
		TxGap:       150 * time.Millisecond,
	}
}

// DefaultCommands is the queue used without a command file.
func DefaultCommands() []protocol.Kind {
	return []protocol.Kind{protocol.KindHeartbeatBattery}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.Link {
	case LinkSerial:
		if c.Baud <= 0 {
			return fmt.Errorf("%w: baud rate must be positive", ErrInvalid)
		}
	case LinkTCP, LinkWebSocket, LinkUDP, LinkWebRTC:
	default:
		return fmt.Errorf("%w: unknown link %q", ErrInvalid, c.Link)
	}
	if c.Address == "" {
		return fmt.Errorf("%w: %s link needs an address", ErrInvalid, c.Link)
	}
	if c.ArtifactDir == "" && c.S3Bucket == "" {
		return fmt.Errorf("%w: no artifact destination", ErrInvalid)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive", ErrInvalid)
	}
	if c.ReceiveTimeout < 0 || c.TxGap < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalid)
	}
	if c.MDNS && c.StatusAddr == "" {
		return fmt.Errorf("%w: mDNS needs a status address", ErrInvalid)
	}
	return nil
}

// commandFile is the JSON layout of a command file.
type commandFile struct {
	Commands []string `json:"commands"`
}

// LoadCommands reads the ordered command list from a JSON file such as
// {"commands": ["HeartbeatBattery", "OtaRequest"]}. Unknown names fail
// with protocol.ErrUnknownCommand. An empty path yields DefaultCommands.
func LoadCommands(path string) ([]protocol.Kind, error) {
	if path == "" {
		return DefaultCommands(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read command file: %w", err)
	}
	return ParseCommands(data)
}

// ParseCommands decodes a command file body.
func ParseCommands(data []byte) ([]protocol.Kind, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var f commandFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: command file: %w", ErrInvalid, err)
	}
	kinds, err := protocol.ParseKinds(f.Commands)
	if err != nil {
		return nil, fmt.Errorf("command file: %w", err)
	}
	return kinds, nil
}
