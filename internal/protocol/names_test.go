package protocol_test

import (
	"errors"
	"testing"

	"github.com/1ureka/groundlink/internal/protocol"
)

// TestParseKind verifies plain names, flight constant names and rejection of
// unknown names.
func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want protocol.Kind
	}{
		{"HeartbeatBattery", protocol.KindHeartbeatBattery},
		{" otarequest ", protocol.KindOtaRequest},
		{"SAT_HEARTBEAT_SUN", protocol.KindHeartbeatSun},
		{"GS_OTA_REQ", protocol.KindOtaRequest},
	}
	for _, tc := range tests {
		got, err := protocol.ParseKind(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}

	if _, err := protocol.ParseKind("SelfDestruct"); !errors.Is(err, protocol.ErrUnknownCommand) {
		t.Errorf("err = %v, want ErrUnknownCommand", err)
	}
}

// TestParseKinds verifies order is kept and the first bad name fails the list.
func TestParseKinds(t *testing.T) {
	kinds, err := protocol.ParseKinds([]string{"HeartbeatSun", "OtaRequest", "HeartbeatBattery"})
	if err != nil {
		t.Fatalf("ParseKinds: %v", err)
	}
	want := []protocol.Kind{protocol.KindHeartbeatSun, protocol.KindOtaRequest, protocol.KindHeartbeatBattery}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}

	if _, err := protocol.ParseKinds([]string{"HeartbeatSun", "nope"}); !errors.Is(err, protocol.ErrUnknownCommand) {
		t.Fatalf("err = %v, want ErrUnknownCommand", err)
	}
}
