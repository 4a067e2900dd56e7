// Satsim is a simulated satellite for bench testing a ground station.
//
// Serves one image and accepts OTA uploads over a WebSocket gateway, a UDP
// socket, a KISS TCP port or a WebRTC DataChannel. After each Stop it waits
// -pass-gap and starts a new contact.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/groundlink/internal/link"
	"github.com/1ureka/groundlink/internal/link/rtc"
	"github.com/1ureka/groundlink/internal/sim"
	"github.com/1ureka/groundlink/internal/util"
)

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mode := flag.String("link", "websocket", "Link: websocket, udp, tcp or webrtc")
	addr := flag.String("addr", "127.0.0.1:8001", "Listen address")
	imagePath := flag.String("image", "", "Image served to the ground station (empty for none)")
	drop := flag.String("drop", "", "Comma-separated image chunk indexes lost once")
	interval := flag.Duration("heartbeat", sim.DefaultHeartbeatInterval, "Heartbeat interval while waiting for contact")
	passGap := flag.Duration("pass-gap", 30*time.Second, "Time between contacts")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}
	pterm.Info.Println("Satsim — simulated satellite")
	pterm.Println()

	cfg := sim.Config{HeartbeatInterval: *interval}
	if *imagePath != "" {
		data, err := os.ReadFile(*imagePath)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		cfg.Image = data
	}
	dropSet, err := parseDrop(*drop)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	cfg.DropOnce = dropSet

	lk, err := accept(ctx, *mode, *addr)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	defer lk.Close()

	sat := sim.New(lk, cfg)
	go schedulePasses(ctx, sat, *passGap)

	util.LogSuccess("satellite on air (%s %s)", *mode, *addr)
	if err := sat.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		util.LogError("satellite stopped: %v", err)
		os.Exit(1)
	}
}

// accept waits for the ground station on the chosen transport.
func accept(ctx context.Context, mode, addr string) (link.Link, error) {
	switch mode {
	case "websocket":
		linkCh := make(chan link.Link, 1)
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			ws, err := link.AcceptWebSocket(w, r)
			if err != nil {
				return
			}
			select {
			case linkCh <- ws:
			default:
				ws.Close()
			}
		})
		srv := &http.Server{Addr: addr, Handler: mux}
		go srv.ListenAndServe()
		go func() { <-ctx.Done(); srv.Close() }()
		util.LogInfo("waiting for ground station on ws://%s/", addr)
		select {
		case l := <-linkCh:
			return l, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}

	case "udp":
		return link.ListenUDP(addr)

	case "tcp":
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		defer ln.Close()
		util.LogInfo("waiting for ground station on tcp://%s", addr)
		conn, err := ln.Accept()
		if err != nil {
			return nil, err
		}
		return link.NewStream(conn), nil

	case "webrtc":
		return rtc.Serve(ctx, addr, rtc.Config{})
	}
	return nil, fmt.Errorf("unknown link %q", mode)
}

// schedulePasses starts a new contact gap after each Stop.
func schedulePasses(ctx context.Context, sat *sim.Satellite, gap time.Duration) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var quietSince time.Time
	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		if !sat.Quiet() {
			quietSince = time.Time{}
			continue
		}
		if quietSince.IsZero() {
			quietSince = time.Now()
		}
		if time.Since(quietSince) >= gap {
			util.LogInfo("starting a new contact")
			sat.Contact()
			quietSince = time.Time{}
		}
	}
}

func parseDrop(raw string) (map[uint16]bool, error) {
	if raw == "" {
		return nil, nil
	}
	set := make(map[uint16]bool)
	for _, f := range strings.Split(raw, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(f), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid -drop index %q", f)
		}
		set[uint16(n)] = true
	}
	return set, nil
}
