// Package heartbeat publishes the node status on telemetry/heartbeat: uptime
// and a link state derived from the outcome of recent telemetry cycles.
package heartbeat

import (
	"context"
	"time"

	"github.com/golang/glog"

	"telemetry-go/bus"
	"telemetry-go/services/config"
	"telemetry-go/types"
)

// TopicStatus carries the retained types.Status.
var TopicStatus = bus.T("telemetry", "heartbeat")

var topicTx = bus.T("telemetry", "tx")

const (
	DefaultInterval = 30 * time.Second
	// DownAfter consecutive failed cycles mark the link down.
	DownAfter = 3
)

type Service struct {
	now      func() time.Time
	start    time.Time
	interval time.Duration
	status   types.Status
}

func New() *Service {
	s := &Service{now: time.Now, interval: DefaultInterval}
	s.status.Link = types.LinkDown
	return s
}

// observe folds one cycle outcome into the status. It reports whether the
// link state changed.
func (s *Service) observe(res types.TxResult) bool {
	prev := s.status.Link
	if res.OK {
		s.status.Failures = 0
		s.status.LastErr = ""
		s.status.Link = types.LinkUp
	} else {
		s.status.Failures++
		s.status.LastErr = res.Err
		if s.status.Failures >= DownAfter {
			s.status.Link = types.LinkDown
		} else {
			s.status.Link = types.LinkDegraded
		}
	}
	return s.status.Link != prev
}

func (s *Service) publish(conn *bus.Connection) {
	now := s.now()
	s.status.Seq++
	s.status.UptimeMs = now.Sub(s.start).Milliseconds()
	s.status.TS = now.UnixMilli()
	conn.Publish(conn.NewMessage(TopicStatus, s.status, true))
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(config.TopicHeartbeat)
	defer conn.Unsubscribe(cfgSub)
	txSub := conn.Subscribe(topicTx)
	defer conn.Unsubscribe(txSub)

	s.start = s.now()
	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			glog.Info("heartbeat: stopping")
			return
		case <-tick.C:
			s.publish(conn)
		case msg := <-txSub.Channel():
			res, ok := msg.Payload.(types.TxResult)
			if !ok {
				continue
			}
			if s.observe(res) {
				glog.Infof("heartbeat: link %s", s.status.Link)
				s.publish(conn)
			}
		case msg := <-cfgSub.Channel():
			hb, ok := msg.Payload.(config.Heartbeat)
			if !ok || hb.Interval() <= 0 {
				continue
			}
			s.interval = hb.Interval()
			tick.Reset(s.interval)
			glog.V(1).Infof("heartbeat: interval set to %v", s.interval)
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go s.serviceLoop(ctx, conn)
}
