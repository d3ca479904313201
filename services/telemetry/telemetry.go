// Package telemetry runs the read, encode and send cycle: one sensor read,
// one 4-byte packet, one radio transmission per period. Failures are logged
// and reported; the next attempt happens on the next period, never as an
// immediate retry.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"telemetry-go/bus"
	"telemetry-go/errcode"
	"telemetry-go/services/config"
	"telemetry-go/types"
	"telemetry-go/x/conv"
	"telemetry-go/x/timex"
)

// Bus topics.
var (
	TopicReading = bus.T("telemetry", "reading")
	TopicTx      = bus.T("telemetry", "tx")
	// TopicStep requests an immediate cycle; the reply carries its TxResult.
	TopicStep = bus.T("telemetry", "cmd", "step")
)

// DefaultPeriod is the cycle period when none is configured.
const DefaultPeriod = 10 * time.Second

// Sensor yields one reading per call.
type Sensor interface {
	Read() (types.Reading, error)
}

// Radio transmits one packet per call.
type Radio interface {
	Send(data []byte) error
}

// Initializer is a radio that must be brought up before use.
type Initializer interface {
	Init() error
}

type Service struct {
	sensor Sensor
	radio  Radio
	now    func() int64

	mu     sync.Mutex
	seq    uint32
	period time.Duration
}

// New builds a service. period <= 0 takes DefaultPeriod.
func New(sensor Sensor, radio Radio, period time.Duration) *Service {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Service{sensor: sensor, radio: radio, period: period, now: timex.NowMs}
}

// Period returns the current cycle period.
func (s *Service) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

// Bootstrap initialises the radio. An identity mismatch is returned as a
// fatal error: there is no degraded mode without a verified radio.
func Bootstrap(radio Initializer) error {
	err := radio.Init()
	switch {
	case err == nil:
		glog.Info("telemetry: radio ready")
	case errcode.Fatal(err):
		glog.Errorf("telemetry: radio not detected: %v", err)
	default:
		glog.Warningf("telemetry: radio init: %v", err)
	}
	return err
}

// Step runs one cycle. A sensor failure skips the transmission. The reading
// is returned whenever the sensor produced one.
func (s *Service) Step() (types.Reading, error) {
	r, _, err := s.step()
	return r, err
}

func (s *Service) step() (r types.Reading, read bool, err error) {
	r, err = s.sensor.Read()
	if err != nil {
		glog.Warningf("telemetry: sensor read failed: %v", err)
		return r, false, err
	}
	var tb, hb [8]byte
	glog.Infof("telemetry: %s C, %s %%", conv.Centi(tb[:], int32(r.CentiC)), conv.Centi(hb[:], int32(r.CentiRH)))

	pkt := types.EncodePacket(r)
	if err := s.radio.Send(pkt[:]); err != nil {
		glog.Warningf("telemetry: send failed: %v", err)
		return r, true, err
	}
	glog.V(1).Infof("telemetry: sent % x", pkt[:])
	return r, true, nil
}

// cycle runs one step and publishes its outcome.
func (s *Service) cycle(conn *bus.Connection) types.TxResult {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	r, read, err := s.step()
	res := types.TxResult{Seq: seq, OK: err == nil, TsMs: s.now()}
	if read {
		conn.Publish(conn.NewMessage(TopicReading, r, true))
	}
	if err != nil {
		res.Err = err.Error()
	} else {
		res.Bytes = types.PacketSize
	}
	conn.Publish(conn.NewMessage(TopicTx, res, true))
	return res
}

func (s *Service) setPeriod(d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d <= 0 || d == s.period {
		return false
	}
	s.period = d
	return true
}

// Run cycles immediately and then once per period until ctx is done. It
// follows config/telemetry for period changes and serves TopicStep requests.
func (s *Service) Run(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(config.TopicTelemetry)
	defer conn.Unsubscribe(cfgSub)
	stepSub := conn.Subscribe(TopicStep)
	defer conn.Unsubscribe(stepSub)

	s.cycle(conn)

	tick := time.NewTicker(s.Period())
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			glog.Info("telemetry: stopping")
			return
		case <-tick.C:
			s.cycle(conn)
		case msg := <-stepSub.Channel():
			conn.Reply(msg, s.cycle(conn), false)
		case msg := <-cfgSub.Channel():
			t, ok := msg.Payload.(config.Telemetry)
			if !ok {
				glog.Warningf("telemetry: unexpected config payload %T", msg.Payload)
				continue
			}
			if s.setPeriod(t.Period()) {
				tick.Reset(t.Period())
				glog.Infof("telemetry: period set to %v", t.Period())
			}
		}
	}
}

// Start runs the service in a goroutine.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go s.Run(ctx, conn)
}
