// Package telemetry turns decoded packets into tagged data points and ships
// them to a time-series backend.
package telemetry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/1ureka/groundlink/internal/protocol"
	"github.com/1ureka/groundlink/internal/util"
)

// Subsystem tags, as used by the ground station dashboards.
const (
	SubsystemBattery      = "Battery"
	SubsystemSun          = "Sun Vector Info"
	SubsystemIMU          = "IMU Info"
	SubsystemGPS          = "GPS Info"
	SubsystemSystem       = "System"
	SubsystemReboot       = "Satellite Reboot Counter"
	SubsystemImage        = "Downlinked Image Info"
	SubsystemLastReceived = "Downlinked Message Info"
)

// Sink records one data point. Implementations must not block the caller
// for network round trips.
type Sink interface {
	Record(subsystem string, fields map[string]any)
}

// Point is one tagged set of fields.
type Point struct {
	Subsystem string
	Fields    map[string]any
}

// Points decodes pkt into the data points it carries. Every packet yields at
// least a last-received point; malformed bodies yield only that.
func Points(pkt *protocol.Packet) []Point {
	points := []Point{{
		Subsystem: SubsystemLastReceived,
		Fields: map[string]any{
			"message_id": int(pkt.Kind.ID()),
			"message":    pkt.Kind.String(),
			"sequence":   int(pkt.Seq),
			"length":     int(pkt.Length),
		},
	}}

	switch pkt.Kind {
	case protocol.KindHeartbeatBattery:
		b, err := protocol.DecodeBattery(pkt.Payload)
		if err != nil {
			util.LogDebug("battery telemetry: %v", err)
			break
		}
		fields := map[string]any{"status": int(b.Status), "current": int(b.Current)}
		for i, soc := range b.SOC {
			fields[fmt.Sprintf("SOC%d", i+1)] = int(soc)
		}
		points = append(points,
			Point{SubsystemBattery, fields},
			Point{SubsystemSystem, map[string]any{"time": int64(b.Time), "payload_status": int(b.PayloadStatus)}},
			Point{SubsystemReboot, map[string]any{"count": int(b.RebootCount)}},
		)

	case protocol.KindHeartbeatSun:
		s, err := protocol.DecodeSun(pkt.Payload)
		if err != nil {
			util.LogDebug("sun telemetry: %v", err)
			break
		}
		points = append(points,
			Point{SubsystemSun, map[string]any{"x": s.X, "y": s.Y, "z": s.Z, "status": int(s.Status)}},
			Point{SubsystemSystem, map[string]any{"time": int64(s.Time)}},
		)

	case protocol.KindHeartbeatImu:
		points = append(points, Point{SubsystemIMU, map[string]any{"raw": fmt.Sprintf("%x", pkt.Payload)}})

	case protocol.KindHeartbeatGps:
		points = append(points, Point{SubsystemGPS, map[string]any{"raw": fmt.Sprintf("%x", pkt.Payload)}})

	case protocol.KindImageInfo:
		m, err := protocol.DecodeImageMeta(pkt.Payload)
		if err != nil {
			break
		}
		points = append(points, Point{SubsystemImage, map[string]any{
			"uid": int(m.UID), "size": int64(m.Size), "count": int(m.Count),
		}})
	}
	return points
}

// Nop discards every point.
type Nop struct{}

func (Nop) Record(string, map[string]any) {}

// LogSink writes points to the debug log.
type LogSink struct{}

func (LogSink) Record(subsystem string, fields map[string]any) {
	util.LogDebug("telemetry [%s] %s", subsystem, formatFields(fields))
}

// Multi fans a point out to several sinks.
type Multi []Sink

func (ms Multi) Record(subsystem string, fields map[string]any) {
	for _, s := range ms {
		s.Record(subsystem, fields)
	}
}

// formatFields renders fields as sorted key=value pairs.
func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s=%v", k, fields[k])
	}
	return sb.String()
}
