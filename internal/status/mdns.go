package status

import (
	"fmt"

	"github.com/grandcat/zeroconf"

	"github.com/1ureka/groundlink/internal/util"
)

// ServiceType is the mDNS service type of the status server.
const ServiceType = "_groundlink._tcp"

// Advertise announces the status server on the local network. The returned
// function withdraws the announcement.
func Advertise(instance string, port int) (func(), error) {
	srv, err := zeroconf.Register(instance, ServiceType, "local.", port, []string{"path=/status", "events=/events"}, nil)
	if err != nil {
		return nil, fmt.Errorf("mDNS register: %w", err)
	}
	util.LogInfo("advertising %s.%s.local on port %d", instance, ServiceType, port)
	return srv.Shutdown, nil
}
