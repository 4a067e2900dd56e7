// Groundlink is the ground station CLI.
//
// Runs the link session engine against one satellite: drains the telemetry
// command queue, pushes OTA updates, downloads the stored image and uploads
// artifacts. Runs until interrupted, then saves the session log.
//
// Without -link or -addr it lists serial ports and asks which one to use.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/groundlink/internal/app"
	"github.com/1ureka/groundlink/internal/config"
	"github.com/1ureka/groundlink/internal/link"
	"github.com/1ureka/groundlink/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.Default()

	linkKind := flag.String("link", "", "Link: serial, tcp, websocket, udp or webrtc")
	flag.StringVar(&cfg.Address, "addr", cfg.Address, "Serial device, TNC host:port, gateway URL or signaling address")
	flag.IntVar(&cfg.Baud, "baud", cfg.Baud, "Serial baud rate")
	flag.BoolVar(&cfg.Listen, "listen", false, "webrtc: serve signaling on -addr instead of dialing it")
	stun := flag.String("stun", "", "Comma-separated STUN servers for webrtc (default public servers)")
	flag.StringVar(&cfg.ArtifactDir, "out", cfg.ArtifactDir, "Directory for images and session logs (empty to disable)")
	flag.StringVar(&cfg.S3Bucket, "s3-bucket", "", "S3 bucket for images and session logs")
	flag.StringVar(&cfg.S3Region, "s3-region", "", "S3 region (default from the AWS environment)")
	flag.StringVar(&cfg.S3Prefix, "s3-prefix", "", "S3 key prefix")
	flag.StringVar(&cfg.MQTTBroker, "mqtt", "", "MQTT broker for telemetry, e.g. tcp://localhost:1883")
	flag.StringVar(&cfg.MQTTTopic, "mqtt-topic", cfg.MQTTTopic, "MQTT topic prefix")
	flag.StringVar(&cfg.OTAPath, "ota", "", "File pushed by OtaRequest commands")
	flag.StringVar(&cfg.CommandsPath, "commands", "", "JSON command file (default: HeartbeatBattery)")
	flag.IntVar(&cfg.Window, "window", cfg.Window, "Packets per acknowledgment")
	flag.DurationVar(&cfg.ReceiveTimeout, "rx-timeout", 0, "Give up on a receive batch after this long (0 waits forever)")
	flag.DurationVar(&cfg.TxGap, "tx-gap", cfg.TxGap, "Pause before each transmit")
	flag.StringVar(&cfg.StatusAddr, "status", "", "Serve /status and /events on this address, e.g. :8080")
	flag.BoolVar(&cfg.MDNS, "mdns", false, "Advertise the status server over mDNS")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Groundlink — v%s", version))
	pterm.Println()

	switch {
	case *linkKind != "":
		cfg.Link = config.LinkKind(*linkKind)
	case !flagGiven("addr"):
		// No link chosen: interactive serial port selection.
		cfg.Link = config.LinkSerial
		cfg.Address = askSerialPort()
	default:
		cfg.Link = config.LinkSerial
	}
	if *stun != "" {
		cfg.STUN = strings.Split(*stun, ",")
	}

	commands, err := config.LoadCommands(cfg.CommandsPath)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	cfg.Commands = commands

	if err := app.Run(ctx, cfg); err != nil {
		util.LogError("ground station stopped: %v", err)
		os.Exit(1)
	}

	util.LogInfo("ground station shut down")
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// flagGiven reports whether name was set on the command line.
func flagGiven(name string) bool {
	given := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			given = true
		}
	})
	return given
}

// askSerialPort lets the operator pick a serial port. It exits when none exist.
func askSerialPort() string {
	ports, err := link.ListSerialPorts()
	if err != nil || len(ports) == 0 {
		util.LogError("no serial ports found; use -link and -addr")
		os.Exit(1)
	}

	port, _ := pterm.DefaultInteractiveSelect.
		WithOptions(ports).
		WithDefaultText("Select the TNC serial port").
		Show()

	pterm.Println()
	return port
}
