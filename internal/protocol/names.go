package protocol

import (
	"fmt"
	"strings"
)

// commandNames maps external command names, as written in a command file,
// to message kinds. Both the plain names and the flight software constant
// names are accepted.
var commandNames = map[string]Kind{
	"heartbeatbattery": KindHeartbeatBattery,
	"heartbeatsun":     KindHeartbeatSun,
	"heartbeatimu":     KindHeartbeatImu,
	"heartbeatgps":     KindHeartbeatGps,
	"otarequest":       KindOtaRequest,
	"imageinfo":        KindImageInfo,
	"deleteimage":      KindDeleteImage,
	"imagechunk":       KindImageChunk,
	"stop":             KindStop,

	"sat_heartbeat_batt": KindHeartbeatBattery,
	"sat_heartbeat_sun":  KindHeartbeatSun,
	"sat_heartbeat_imu":  KindHeartbeatImu,
	"sat_heartbeat_gps":  KindHeartbeatGps,
	"gs_ota_req":         KindOtaRequest,
	"sat_img_info":       KindImageInfo,
	"sat_del_img":        KindDeleteImage,
	"sat_img_cmd":        KindImageChunk,
}

// ParseKind resolves a command name (case-insensitive) to its kind.
func ParseKind(name string) (Kind, error) {
	k, ok := commandNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return k, nil
}

// ParseKinds resolves every name in order, failing on the first unknown one.
func ParseKinds(names []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(names))
	for i, name := range names {
		k, err := ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
