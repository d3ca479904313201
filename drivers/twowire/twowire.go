// Package twowire is a bit-banged two-wire (I2C-style) bus controller.
//
// All timing comes from a settle delay after every line transition; there is
// no clock-stretching detection and no multi-controller arbitration. Every
// transaction that starts also ends with exactly one stop condition, including
// the ones aborted by a missing acknowledgment.
//
// Bus implements tinygo.org/x/drivers.I2C so regular device drivers can sit on
// top of it.
package twowire

import (
	"strconv"
	"time"

	"tinygo.org/x/drivers"

	"telemetry-go/errcode"
	"telemetry-go/x/conv"
	"telemetry-go/x/timex"
)

var _ drivers.I2C = (*Bus)(nil)

// ErrNack is matched (errors.Is) by every unacknowledged-byte failure.
var ErrNack error = errcode.BusNack

const (
	// DefaultDelay is the settle time after each line transition.
	DefaultDelay = 10 * time.Microsecond

	// Scan range, reserved addresses excluded.
	ScanFirst = 0x03
	ScanLast  = 0x77

	maxAddr = 0x7F
)

// Config controls timing. All fields are optional.
type Config struct {
	// Delay after every line transition. Default 10µs.
	Delay time.Duration
	// Sleeper performs the delay. Default timex.Busy.
	Sleeper timex.Sleeper
	// Trace, if set, is called once per completed transaction.
	Trace func(Txn)
}

// Txn summarises one transaction for Trace.
type Txn struct {
	Addr uint8
	W, R int
	Err  error
}

// Bus is a two-wire controller on top of a Line. Not safe for concurrent use.
type Bus struct {
	line  Line
	cur   Levels
	delay time.Duration
	sleep timex.Sleeper
	trace func(Txn)
}

// New creates a bus controller. It performs no line I/O; the line is assumed
// idle (clock high, data released) until the first operation.
func New(line Line, cfgs ...Config) *Bus {
	var c Config
	if len(cfgs) > 0 {
		c = cfgs[0]
	}
	if c.Delay <= 0 {
		c.Delay = DefaultDelay
	}
	return &Bus{
		line:  line,
		cur:   Levels{SCL: true},
		delay: c.Delay,
		sleep: timex.Or(c.Sleeper, timex.Busy),
		trace: c.Trace,
	}
}

// ---- line primitives ----

func (b *Bus) set(l Levels) {
	b.cur = l
	b.line.Write(l)
	b.sleep.Sleep(b.delay)
}

func (b *Bus) setSCL(high bool) {
	l := b.cur
	l.SCL = high
	b.set(l)
}

func (b *Bus) driveSDALow() {
	l := b.cur
	l.OE, l.SDA = true, false
	b.set(l)
}

func (b *Bus) releaseSDA() {
	l := b.cur
	l.OE, l.SDA = false, false
	b.set(l)
}

func (b *Bus) writeBit(bit bool) {
	if bit {
		b.releaseSDA()
	} else {
		b.driveSDALow()
	}
	b.setSCL(true)
	b.setSCL(false)
}

func (b *Bus) readBit() bool {
	b.releaseSDA()
	b.setSCL(true)
	v := b.line.SDA()
	b.setSCL(false)
	return v
}

// Idle releases data and raises the clock.
func (b *Bus) Idle() {
	b.releaseSDA()
	b.setSCL(true)
}

// Start issues a start (or repeated start): data falls while clock is high.
func (b *Bus) Start() {
	b.releaseSDA()
	b.setSCL(true)
	b.driveSDALow()
	b.setSCL(false)
}

// Stop issues a stop: data rises while clock is high.
func (b *Bus) Stop() {
	b.setSCL(false)
	b.driveSDALow()
	b.setSCL(true)
	b.releaseSDA()
}

// WriteByte clocks v out MSB first and samples the acknowledgment on the
// ninth clock. It returns ErrNack when the peer left the line high.
func (b *Bus) WriteByte(v byte) error {
	for i := 7; i >= 0; i-- {
		b.writeBit(v&(1<<uint(i)) != 0)
	}
	if b.readBit() {
		return ErrNack
	}
	return nil
}

// ReadByteAck clocks eight bits in MSB first, then answers with ack (line low)
// or nack (line released). A nack tells the peer to stop sending.
func (b *Bus) ReadByteAck(ack bool) byte {
	var v byte
	for i := 0; i < 8; i++ {
		v <<= 1
		if b.readBit() {
			v |= 1
		}
	}
	b.writeBit(!ack)
	return v
}

// ---- transactions ----

// Tx implements drivers.I2C. With both w and r set it writes w, issues a
// repeated start and reads into r. With both empty it probes the address.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > maxAddr {
		return &errcode.E{C: errcode.InvalidParams, Op: "twowire.tx", Msg: "address out of range"}
	}
	a := uint8(addr)
	b.Start()
	err := b.tx(a, w, r)
	b.Stop()
	if b.trace != nil {
		b.trace(Txn{Addr: a, W: len(w), R: len(r), Err: err})
	}
	return err
}

func (b *Bus) tx(a uint8, w, r []byte) error {
	if len(w) > 0 || len(r) == 0 {
		if err := b.WriteByte(a << 1); err != nil {
			return nack("twowire.write", "address", a, 0)
		}
		for i, v := range w {
			if err := b.WriteByte(v); err != nil {
				return nack("twowire.write", "data", a, i)
			}
		}
	}
	if len(r) > 0 {
		if len(w) > 0 {
			b.Start()
		}
		if err := b.WriteByte(a<<1 | 1); err != nil {
			return nack("twowire.read", "address", a, 0)
		}
		for i := range r {
			r[i] = b.ReadByteAck(i+1 < len(r))
		}
	}
	return nil
}

// WriteBytes sends start, address+write, data, stop. It aborts at the first
// unacknowledged byte.
func (b *Bus) WriteBytes(addr uint8, data []byte) error {
	return b.Tx(uint16(addr), data, nil)
}

// ReadBytes sends start, address+read, fills buf (ack on all but the last
// byte), stop.
func (b *Bus) ReadBytes(addr uint8, buf []byte) error {
	if len(buf) == 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: "twowire.read", Msg: "empty buffer"}
	}
	return b.Tx(uint16(addr), nil, buf)
}

// Probe reports whether addr acknowledges an address-only write.
func (b *Bus) Probe(addr uint8) bool {
	return b.Tx(uint16(addr), nil, nil) == nil
}

// Scan probes every address in [ScanFirst, ScanLast] and returns the ones
// that answered. Diagnostics only.
func (b *Bus) Scan() []uint8 {
	var found []uint8
	for a := uint8(ScanFirst); a <= ScanLast; a++ {
		if b.Probe(a) {
			found = append(found, a)
		}
	}
	return found
}

func nack(op, phase string, addr uint8, idx int) error {
	msg := phase + " " + conv.Hex8String(addr)
	if phase == "data" {
		msg = "data byte " + strconv.Itoa(idx) + " to " + conv.Hex8String(addr)
	}
	return &errcode.E{C: errcode.BusNack, Op: op, Msg: msg}
}
