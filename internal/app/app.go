// Package app wires the ground station together: it opens the radio link,
// builds the artifact and telemetry sinks, starts the operator surfaces and
// runs the session machine until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/1ureka/groundlink/internal/config"
	"github.com/1ureka/groundlink/internal/link"
	"github.com/1ureka/groundlink/internal/link/rtc"
	"github.com/1ureka/groundlink/internal/ota"
	"github.com/1ureka/groundlink/internal/session"
	"github.com/1ureka/groundlink/internal/sessionlog"
	"github.com/1ureka/groundlink/internal/status"
	"github.com/1ureka/groundlink/internal/store"
	"github.com/1ureka/groundlink/internal/telemetry"
	"github.com/1ureka/groundlink/internal/util"
)

const (
	statsInterval = 10 * time.Second
	flushTimeout  = 30 * time.Second
)

// Run executes the ground station until ctx is cancelled. The session log
// is flushed to the artifact sink on the way out. Cancellation is a clean
// exit and returns nil.
func Run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	start := time.Now()

	// ── 1. Radio link ──────────────────────────────────────────────────
	lk, lines, err := openLink(ctx, cfg)
	if err != nil {
		return err
	}
	defer lk.Close()

	// ── 2. Sinks ───────────────────────────────────────────────────────
	artifacts, err := openArtifacts(ctx, cfg)
	if err != nil {
		return err
	}
	tel, closeTelemetry, err := openTelemetry(cfg)
	if err != nil {
		return err
	}
	defer closeTelemetry()
	packets := sessionlog.New(start)

	// ── 3. OTA source ──────────────────────────────────────────────────
	engine := ota.NewEngine(cfg.OTAPath, cfg.Window)
	if cfg.OTAPath != "" {
		if err := ota.Watch(ctx, cfg.OTAPath, engine.Invalidate); err != nil {
			util.LogWarning("OTA source will not be watched: %v", err)
		}
	}

	// ── 4. Session machine ─────────────────────────────────────────────
	hub := status.NewHub()
	machine := session.New(session.Config{
		Link:           lk,
		Lines:          lines,
		Artifacts:      artifacts,
		Telemetry:      tel,
		Recorder:       packets,
		OTA:            engine,
		Commands:       cfg.Commands,
		Window:         cfg.Window,
		ReceiveTimeout: cfg.ReceiveTimeout,
		TxGap:          cfg.TxGap,
		OnEvent:        hub.Publish,
	})

	// ── 5. Operator surfaces ───────────────────────────────────────────
	if cfg.StatusAddr != "" {
		addr, err := status.NewServer(hub, machine.Snapshot).Serve(ctx, cfg.StatusAddr)
		if err != nil {
			return err
		}
		if cfg.MDNS {
			if shutdown, err := advertise(addr); err != nil {
				util.LogWarning("%v", err)
			} else {
				defer shutdown()
			}
		}
	}
	util.StartStatsReporter(ctx, statsInterval)

	// ── 6. Run until interrupted ───────────────────────────────────────
	util.LogSuccess("ground station ready on %s link %s", cfg.Link, cfg.Address)
	runErr := machine.Run(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := packets.Flush(flushCtx, artifacts); err != nil {
		util.LogError("%v", err)
	} else {
		util.LogInfo("session log saved as %s", packets.Name())
	}

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// openLink opens the configured radio link and its activity lines.
func openLink(ctx context.Context, cfg config.Config) (link.Link, link.Lines, error) {
	switch cfg.Link {
	case config.LinkSerial:
		s, err := link.OpenSerial(cfg.Address, cfg.Baud)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	case config.LinkTCP:
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", cfg.Address)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to TNC %s: %w", cfg.Address, err)
		}
		util.LogInfo("connected to KISS TNC %s", cfg.Address)
		return link.NewStream(conn), link.NopLines{}, nil

	case config.LinkWebSocket:
		ws, err := link.DialWebSocket(ctx, cfg.Address)
		if err != nil {
			return nil, nil, err
		}
		return ws, link.NopLines{}, nil

	case config.LinkUDP:
		u, err := link.DialUDP(cfg.Address)
		if err != nil {
			return nil, nil, err
		}
		return u, link.NopLines{}, nil

	case config.LinkWebRTC:
		rcfg := rtc.Config{STUNServers: cfg.STUN}
		var (
			l   *rtc.Link
			err error
		)
		if cfg.Listen {
			l, err = rtc.Serve(ctx, cfg.Address, rcfg)
		} else {
			l, err = rtc.Dial(ctx, cfg.Address, rcfg)
		}
		if err != nil {
			return nil, nil, err
		}
		return l, link.NopLines{}, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown link %q", config.ErrInvalid, cfg.Link)
}

// openArtifacts builds the artifact sink from the configured destinations.
func openArtifacts(ctx context.Context, cfg config.Config) (store.Sink, error) {
	var sinks store.Multi
	if cfg.ArtifactDir != "" {
		sinks = append(sinks, store.Dir{Path: cfg.ArtifactDir})
	}
	if cfg.S3Bucket != "" {
		s3, err := store.NewS3(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

// openTelemetry builds the telemetry sink. Points always reach the debug
// log; an MQTT broker is added when configured.
func openTelemetry(cfg config.Config) (telemetry.Sink, func(), error) {
	if cfg.MQTTBroker == "" {
		return telemetry.LogSink{}, func() {}, nil
	}
	m, err := telemetry.NewMQTT(cfg.MQTTBroker, cfg.MQTTTopic, "groundlink-"+hostname())
	if err != nil {
		return nil, nil, err
	}
	return telemetry.Multi{telemetry.LogSink{}, m}, m.Close, nil
}

func advertise(addr net.Addr) (func(), error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("mDNS: unexpected status address %s", addr)
	}
	return status.Advertise("groundlink-"+hostname(), tcp.Port)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "station"
	}
	return name
}
