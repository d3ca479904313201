package sim

import (
	"errors"
	"sync"

	"tinygo.org/x/drivers"
)

var _ drivers.SPI = (*SX127x)(nil)

// ErrNoChipSelect is returned for a transfer outside a chip-select frame.
var ErrNoChipSelect = errors.New("sim: transfer without chip select")

// Register addresses the model gives behaviour to.
const (
	sxFifo        = 0x00
	sxOpMode      = 0x01
	sxFifoAddrPtr = 0x0D
	sxFifoTxBase  = 0x0E
	sxIrqFlags    = 0x12
	sxPayloadLen  = 0x22
	sxVersion     = 0x42

	sxModeMask    = 0x07
	sxModeStandby = 0x01
	sxModeTx      = 0x03
	sxIrqTxDone   = 0x08
)

// RegWrite is one register write seen on the link.
type RegWrite struct {
	Addr  byte
	Value byte
}

// FifoWrite is one byte stored into the FIFO at Ptr.
type FifoWrite struct {
	Ptr   byte
	Value byte
}

// SX127x models the transceiver's register file behind an SPI link with an
// active-low chip select. Writing 1s to the IRQ flags register clears them,
// FIFO accesses go through the FIFO address pointer, and entering transmit
// mode captures the payload and raises TxDone after TxPollsBeforeDone reads
// of the flags register (negative: never).
type SX127x struct {
	mu sync.Mutex

	TxPollsBeforeDone int

	regs [0x80]byte
	fifo [256]byte

	selected bool
	first    bool
	addr     byte
	write    bool

	polls     int
	transfers int
	resets    int
	writes    []RegWrite
	fifoLog   []FifoWrite
	packets   [][]byte
}

// NewSX127x returns a model reporting the given version byte.
func NewSX127x(version byte) *SX127x {
	r := &SX127x{}
	r.powerOn(version)
	return r
}

func (r *SX127x) powerOn(version byte) {
	r.regs = [0x80]byte{}
	r.regs[sxOpMode] = sxModeStandby
	r.regs[sxVersion] = version
}

// CS drives the chip-select line (active low).
func (r *SX127x) CS(level bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = !level
	r.first = r.selected
}

// Reset drives the reset line; a low level returns the registers to
// power-on values.
func (r *SX127x) Reset(level bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !level {
		r.resets++
		r.powerOn(r.regs[sxVersion])
	}
}

func (r *SX127x) Transfer(b byte) (byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exchange(b)
}

func (r *SX127x) Tx(w, rd []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(w)
	if len(rd) > n {
		n = len(rd)
	}
	for i := 0; i < n; i++ {
		var out byte
		if i < len(w) {
			out = w[i]
		}
		v, err := r.exchange(out)
		if err != nil {
			return err
		}
		if i < len(rd) {
			rd[i] = v
		}
	}
	return nil
}

func (r *SX127x) exchange(b byte) (byte, error) {
	if !r.selected {
		return 0, ErrNoChipSelect
	}
	r.transfers++
	if r.first {
		r.first = false
		r.addr = b & 0x7F
		r.write = b&0x80 != 0
		return 0, nil
	}
	var v byte
	if r.write {
		r.writeReg(r.addr, b)
	} else {
		v = r.readReg(r.addr)
	}
	if r.addr != sxFifo {
		r.addr = (r.addr + 1) & 0x7F
	}
	return v, nil
}

func (r *SX127x) writeReg(a, v byte) {
	r.writes = append(r.writes, RegWrite{Addr: a, Value: v})
	switch a {
	case sxFifo:
		ptr := r.regs[sxFifoAddrPtr]
		r.fifo[ptr] = v
		r.fifoLog = append(r.fifoLog, FifoWrite{Ptr: ptr, Value: v})
		r.regs[sxFifoAddrPtr] = ptr + 1
	case sxIrqFlags:
		r.regs[a] &^= v
	case sxVersion:
	case sxOpMode:
		r.regs[a] = v
		if v&sxModeMask == sxModeTx {
			r.startTx()
		}
	default:
		r.regs[a] = v
	}
}

func (r *SX127x) readReg(a byte) byte {
	switch a {
	case sxFifo:
		ptr := r.regs[sxFifoAddrPtr]
		r.regs[sxFifoAddrPtr] = ptr + 1
		return r.fifo[ptr]
	case sxIrqFlags:
		if r.regs[sxOpMode]&sxModeMask == sxModeTx {
			r.polls++
			if r.TxPollsBeforeDone >= 0 && r.polls > r.TxPollsBeforeDone {
				r.regs[sxIrqFlags] |= sxIrqTxDone
				r.regs[sxOpMode] = r.regs[sxOpMode]&^sxModeMask | sxModeStandby
			}
		}
	}
	return r.regs[a]
}

func (r *SX127x) startTx() {
	r.polls = 0
	n := int(r.regs[sxPayloadLen])
	base := r.regs[sxFifoTxBase]
	p := make([]byte, n)
	for i := range p {
		p[i] = r.fifo[base+byte(i)]
	}
	r.packets = append(r.packets, p)
}

// Reg returns the current value of register a.
func (r *SX127x) Reg(a byte) byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[a&0x7F]
}

// Mode returns the low three bits of the operating-mode register.
func (r *SX127x) Mode() byte { return r.Reg(sxOpMode) & sxModeMask }

// Writes returns a copy of the register write log (FIFO bytes included).
func (r *SX127x) Writes() []RegWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RegWrite(nil), r.writes...)
}

// FifoWrites returns a copy of the FIFO write log.
func (r *SX127x) FifoWrites() []FifoWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FifoWrite(nil), r.fifoLog...)
}

// Packets returns the payloads captured on each entry into transmit mode.
func (r *SX127x) Packets() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.packets))
	for i, p := range r.packets {
		out[i] = append([]byte(nil), p...)
	}
	return out
}

// Polls returns the flag reads made during the most recent transmission.
func (r *SX127x) Polls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.polls
}

// Transfers returns the total number of bytes exchanged on the link.
func (r *SX127x) Transfers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transfers
}

// Resets returns how many reset pulses were seen.
func (r *SX127x) Resets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets
}

// ClearLog drops the write, FIFO and packet logs.
func (r *SX127x) ClearLog() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes, r.fifoLog, r.packets = nil, nil, nil
	r.transfers = 0
}
