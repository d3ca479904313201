package sim

import "sync"

// Target is a device attached to the simulated two-wire bus.
type Target interface {
	// Addressed is called when the address byte matches. Returning false
	// leaves the address unacknowledged.
	Addressed(read bool) bool
	// Receive takes one byte written by the controller; false nacks it.
	Receive(b byte) bool
	// Transmit returns the next byte the controller reads.
	Transmit() byte
	// Stop ends the transaction.
	Stop()
}

// EventKind classifies decoded bus activity.
type EventKind int

const (
	EvStart EventKind = iota
	EvStop
	EvByte
)

func (k EventKind) String() string {
	switch k {
	case EvStart:
		return "start"
	case EvStop:
		return "stop"
	default:
		return "byte"
	}
}

// Event is one decoded bus condition or byte. For bytes, Read is true when the
// target sent it and Acked reports the ninth-clock level.
type Event struct {
	Kind  EventKind
	Byte  byte
	Read  bool
	Acked bool
}

type phase int

const (
	phIdle  phase = iota
	phAddr        // controller sending address byte
	phWrite       // controller sending data bytes
	phRead        // target sending data bytes
	phWait        // read ended with nack, waiting for stop
)

// I2C is an open-drain two-wire bus seen from the register side. WriteReg
// takes the controller write register ([bit2:SDA | bit1:OE | bit0:SCL]) and
// ReadReg returns the sampled data level in bit0.
type I2C struct {
	mu      sync.Mutex
	targets map[uint8]Target

	scl     bool
	ctrlLow bool // controller pulling SDA low
	tgtLow  bool // target pulling SDA low

	ph      phase
	clk     int
	shift   byte
	out     byte
	readDir bool
	acked   bool
	cur     Target

	events []Event
	writes int
}

// NewI2C returns an idle bus (clock high, data released) with no targets.
func NewI2C() *I2C {
	return &I2C{scl: true, targets: make(map[uint8]Target)}
}

// Attach places t at the 7-bit address addr.
func (s *I2C) Attach(addr uint8, t Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[addr&0x7F] = t
}

// Detach removes the target at addr.
func (s *I2C) Detach(addr uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.targets, addr&0x7F)
}

func (s *I2C) sda() bool { return !(s.ctrlLow || s.tgtLow) }

// WriteReg applies one controller register write.
func (s *I2C) WriteReg(v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++

	prevSCL, prevSDA := s.scl, s.sda()
	s.scl = v&1 != 0
	s.ctrlLow = v&2 != 0 && v&4 == 0
	nowSDA := s.sda()

	switch {
	case prevSCL && s.scl && prevSDA && !nowSDA:
		s.start()
	case prevSCL && s.scl && !prevSDA && nowSDA:
		s.stop()
	case !prevSCL && s.scl:
		s.rise()
	case prevSCL && !s.scl:
		s.fall()
	}
}

// ReadReg samples the data line.
func (s *I2C) ReadReg() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sda() {
		return 1
	}
	return 0
}

func (s *I2C) start() {
	s.events = append(s.events, Event{Kind: EvStart})
	s.ph, s.clk, s.shift = phAddr, 0, 0
	s.tgtLow = false
}

func (s *I2C) stop() {
	s.events = append(s.events, Event{Kind: EvStop})
	if s.cur != nil {
		s.cur.Stop()
	}
	s.cur = nil
	s.ph, s.clk, s.shift = phIdle, 0, 0
	s.tgtLow = false
}

func (s *I2C) rise() {
	switch s.ph {
	case phAddr, phWrite:
		s.clk++
		if s.clk <= 8 {
			s.shift <<= 1
			if s.sda() {
				s.shift |= 1
			}
		}
	case phRead:
		s.clk++
		if s.clk == 9 {
			s.acked = !s.sda()
		}
	}
}

func (s *I2C) fall() {
	switch s.ph {
	case phAddr, phWrite:
		switch s.clk {
		case 8:
			b := s.shift
			var ack bool
			if s.ph == phAddr {
				s.readDir = b&1 != 0
				s.cur = nil
				if t, ok := s.targets[b>>1]; ok && t.Addressed(s.readDir) {
					s.cur = t
					ack = true
				}
			} else {
				ack = s.cur != nil && s.cur.Receive(b)
			}
			s.acked = ack
			s.tgtLow = ack
			s.events = append(s.events, Event{Kind: EvByte, Byte: b, Acked: ack})
		case 9:
			s.tgtLow = false
			s.clk, s.shift = 0, 0
			if s.ph == phAddr {
				if s.acked && s.readDir {
					s.ph = phRead
					s.out = s.cur.Transmit()
					s.tgtLow = s.out&0x80 == 0
				} else {
					s.ph = phWrite
				}
			}
		}
	case phRead:
		switch {
		case s.clk < 8:
			s.tgtLow = (s.out>>uint(7-s.clk))&1 == 0
		case s.clk == 8:
			s.tgtLow = false
		case s.clk == 9:
			s.events = append(s.events, Event{Kind: EvByte, Byte: s.out, Read: true, Acked: s.acked})
			s.clk = 0
			if s.acked {
				s.out = s.cur.Transmit()
				s.tgtLow = s.out&0x80 == 0
			} else {
				s.ph = phWait
			}
		}
	}
}

// Events returns a copy of the decoded activity log.
func (s *I2C) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Count returns how many events of kind k were decoded.
func (s *I2C) Count(k EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// Writes returns the number of register writes seen.
func (s *I2C) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// ClearLog drops the event log and write counter.
func (s *I2C) ClearLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.writes = 0
}

// Idle reports whether the bus is released: clock high, data high, no
// transaction in progress.
func (s *I2C) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scl && s.sda() && s.ph == phIdle
}
