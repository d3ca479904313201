package types

// Link is the health of one side of the node.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

// Status is the node heartbeat (retained).
type Status struct {
	Seq      uint32 `json:"seq"`
	UptimeMs int64  `json:"uptime_ms"`
	Link     Link   `json:"link"`
	// Failures counts consecutive failed cycles.
	Failures int    `json:"failures"`
	LastErr  string `json:"last_err,omitempty"`
	TS       int64  `json:"ts_ms"`
}
