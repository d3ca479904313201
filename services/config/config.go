// Package config publishes the embedded per-board configuration on the bus.
// Each top-level key of the board document becomes a retained message on
// config/<key>; known sections are decoded into typed payloads.
package config

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/andreyvit/tinyjson"
	"github.com/golang/glog"

	"telemetry-go/bus"
	"telemetry-go/errcode"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey string

// CtxBoardKey is the context key holding the board name.
const CtxBoardKey ctxKey = "board"

// Section keys with typed payloads.
const (
	KeyTelemetry = "telemetry"
	KeyMQTT      = "mqtt"
	KeyHeartbeat = "heartbeat"
)

// Topics carrying the retained typed sections.
var (
	TopicTelemetry = bus.T(configPrefix, KeyTelemetry)
	TopicHeartbeat = bus.T(configPrefix, KeyHeartbeat)
)

// Telemetry tunes the telemetry cycle and the radio.
type Telemetry struct {
	PeriodMs     int    `json:"period_ms"`
	FrequencyHz  uint32 `json:"frequency_hz"`
	TxPollBudget int    `json:"tx_poll_budget"`
}

// Period returns the cycle period.
func (t Telemetry) Period() time.Duration { return time.Duration(t.PeriodMs) * time.Millisecond }

// MQTT is the uplink section. An empty URL disables the bridge.
type MQTT struct {
	URL    string `json:"url"`
	Prefix string `json:"prefix"`
}

// Heartbeat sets the node status interval.
type Heartbeat struct {
	IntervalMs int `json:"interval_ms"`
}

// Interval returns the heartbeat period.
func (h Heartbeat) Interval() time.Duration { return time.Duration(h.IntervalMs) * time.Millisecond }

// DefaultTelemetry is used for missing or zero fields.
func DefaultTelemetry() Telemetry {
	return Telemetry{PeriodMs: 10_000, FrequencyHz: 915_000_000, TxPollBudget: 5000}
}

func (t *Telemetry) fill() {
	d := DefaultTelemetry()
	if t.PeriodMs <= 0 {
		t.PeriodMs = d.PeriodMs
	}
	if t.FrequencyHz == 0 {
		t.FrequencyHz = d.FrequencyHz
	}
	if t.TxPollBudget <= 0 {
		t.TxPollBudget = d.TxPollBudget
	}
}

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

// Boards lists the boards with an embedded document.
func Boards() []string {
	out := make([]string, 0, len(embeddedConfigs))
	for k := range embeddedConfigs {
		out = append(out, k)
	}
	return out
}

// Sections decodes a board document into its top-level sections.
func Sections(board string) (map[string]any, error) {
	raw, ok := EmbeddedConfigLookup(board)
	if !ok || len(raw) == 0 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "config.load", Msg: "no embedded config for board " + board}
	}
	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		val, err := section(k, v)
		if err != nil {
			return nil, err
		}
		out[k] = val
	}
	return out, nil
}

// decode parses the document into a generic object. tinyjson panics on
// malformed input; the panic is returned as InvalidParams.
func decode(raw []byte) (doc map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = &errcode.E{C: errcode.InvalidParams, Op: "config.load", Msg: fmt.Sprint(r)}
		}
	}()
	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "config.load", Msg: "embedded config is not a JSON object"}
	}
	return m, nil
}

func section(key string, v any) (any, error) {
	switch key {
	case KeyTelemetry, KeyMQTT, KeyHeartbeat:
	default:
		return v, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, badField(key, "", v)
	}
	var err error
	switch key {
	case KeyTelemetry:
		var period, hz, budget int64
		if period, err = intField(key, m, "period_ms"); err != nil {
			return nil, err
		}
		if hz, err = intField(key, m, "frequency_hz"); err != nil {
			return nil, err
		}
		if hz < 0 || hz > math.MaxUint32 {
			return nil, badField(key, "frequency_hz", m["frequency_hz"])
		}
		if budget, err = intField(key, m, "tx_poll_budget"); err != nil {
			return nil, err
		}
		t := Telemetry{PeriodMs: int(period), FrequencyHz: uint32(hz), TxPollBudget: int(budget)}
		t.fill()
		return t, nil
	case KeyMQTT:
		var q MQTT
		if q.URL, err = strField(key, m, "url"); err != nil {
			return nil, err
		}
		if q.Prefix, err = strField(key, m, "prefix"); err != nil {
			return nil, err
		}
		return q, nil
	default:
		ms, err := intField(key, m, "interval_ms")
		if err != nil {
			return nil, err
		}
		return Heartbeat{IntervalMs: int(ms)}, nil
	}
}

// intField reads a whole number; a missing key yields zero.
func intField(sec string, m map[string]any, name string) (int64, error) {
	v, ok := m[name]
	if !ok || v == nil {
		return 0, nil
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxUint32 {
		return 0, badField(sec, name, v)
	}
	return int64(f), nil
}

func strField(sec string, m map[string]any, name string) (string, error) {
	v, ok := m[name]
	if !ok || v == nil {
		return "", nil
	}
	str, ok := v.(string)
	if !ok {
		return "", badField(sec, name, v)
	}
	return str, nil
}

func badField(sec, name string, v any) error {
	path := sec
	if name != "" {
		path += "." + name
	}
	return &errcode.E{C: errcode.InvalidParams, Op: "config.load", Msg: fmt.Sprintf("%s: unexpected value %v", path, v)}
}

// Load returns the typed sections of a board document. Missing sections take
// defaults.
func Load(board string) (Telemetry, MQTT, error) {
	s, err := Sections(board)
	if err != nil {
		return DefaultTelemetry(), MQTT{}, err
	}
	t, ok := s[KeyTelemetry].(Telemetry)
	if !ok {
		t = DefaultTelemetry()
	}
	m, _ := s[KeyMQTT].(MQTT)
	return t, m, nil
}

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig publishes every section of the board's document as a
// retained message.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	board, _ := ctx.Value(CtxBoardKey).(string)
	if board == "" {
		return &errcode.E{C: errcode.InvalidParams, Op: "config.publish", Msg: "missing board in context"}
	}
	sections, err := Sections(board)
	if err != nil {
		return err
	}
	for k, v := range sections {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	glog.V(1).Infof("config: published %d sections for board %s", len(sections), board)
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			glog.Errorf("config: %v", err)
		}
	}()
}
