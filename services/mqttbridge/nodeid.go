package mqttbridge

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

const appID = "telemetry-go"

// NodeID names this node in broker topics: a short app-scoped hash of the
// machine id, or the host name when no machine id is available.
func NodeID() string {
	if id, err := machineid.ProtectedID(appID); err == nil && len(id) >= 12 {
		return id[:12]
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "node"
}
