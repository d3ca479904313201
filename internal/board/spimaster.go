package board

import (
	"tinygo.org/x/drivers"

	"telemetry-go/errcode"
)

var _ drivers.SPI = (*SPIMaster)(nil)

// LiteX SPI master CSR layout.
const (
	spiControlStart  = 1 << 0
	spiControlLenPos = 8
	spiStatusDone    = 1 << 0
	spiModeManual    = 1 << 16
	spiCSMask        = 0x0001

	// spiDonePolls bounds the wait for one 8-bit shift.
	spiDonePolls = 100_000
)

// SPIMaster drives a LiteX SPI master core with a manually controlled chip
// select, one byte per transfer.
type SPIMaster struct {
	Control func(uint32)
	Status  func() uint32
	MOSI    func(uint32)
	MISO    func() uint32
	CSR     func(uint32)
}

// Init puts the chip select in manual mode, deasserted.
func (s *SPIMaster) Init() { s.CSR(spiModeManual) }

// CS drives the chip select. Low selects the peripheral.
func (s *SPIMaster) CS(level bool) {
	if level {
		s.CSR(spiModeManual)
	} else {
		s.CSR(spiModeManual | spiCSMask)
	}
}

func (s *SPIMaster) Transfer(b byte) (byte, error) {
	s.MOSI(uint32(b))
	s.Control(spiControlStart | 8<<spiControlLenPos)
	for i := 0; i < spiDonePolls; i++ {
		if s.Status()&spiStatusDone != 0 {
			return byte(s.MISO()), nil
		}
	}
	return 0, &errcode.E{C: errcode.Timeout, Op: "spi.transfer", Msg: "shift never completed"}
}

// Tx exchanges len(max(w, r)) bytes; missing write bytes are sent as zero.
func (s *SPIMaster) Tx(w, r []byte) error {
	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	for i := 0; i < n; i++ {
		var out byte
		if i < len(w) {
			out = w[i]
		}
		in, err := s.Transfer(out)
		if err != nil {
			return err
		}
		if i < len(r) {
			r[i] = in
		}
	}
	return nil
}
