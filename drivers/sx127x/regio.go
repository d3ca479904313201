package sx127x

import (
	"time"

	"tinygo.org/x/drivers"

	"telemetry-go/x/timex"
)

// PinOutput sets the logic level of a pin to high (true) or low (false).
type PinOutput func(level bool)

// Regs is the register interface: one framed exchange per access over a
// half-duplex serial link with an active-low chip select. There is no
// pipelining; every call is a full round trip.
type Regs struct {
	bus    drivers.SPI
	cs     PinOutput
	sleep  timex.Sleeper
	settle time.Duration
}

// NewRegs binds a link and its chip select.
func NewRegs(bus drivers.SPI, cs PinOutput, sleep timex.Sleeper, settle time.Duration) Regs {
	return Regs{bus: bus, cs: cs, sleep: timex.Or(sleep, timex.Busy), settle: settle}
}

func (r Regs) selectChip() {
	r.cs(false)
	r.sleep.Sleep(r.settle)
}

func (r Regs) deselectChip() {
	r.cs(true)
	r.sleep.Sleep(r.settle)
}

// ReadRegister sends the address with the write bit clear, then a dummy byte
// to clock the value out.
func (r Regs) ReadRegister(addr uint8) (uint8, error) {
	r.selectChip()
	defer r.deselectChip()
	if _, err := r.bus.Transfer(addr &^ writeBit); err != nil {
		return 0, err
	}
	return r.bus.Transfer(0x00)
}

// WriteRegister sends the address with the write bit set, then the value.
func (r Regs) WriteRegister(addr, value uint8) error {
	r.selectChip()
	defer r.deselectChip()
	if _, err := r.bus.Transfer(addr | writeBit); err != nil {
		return err
	}
	_, err := r.bus.Transfer(value)
	return err
}

// WriteFIFO streams data into the FIFO in a single chip-select frame.
func (r Regs) WriteFIFO(data []byte) error {
	r.selectChip()
	defer r.deselectChip()
	if _, err := r.bus.Transfer(regFifo | writeBit); err != nil {
		return err
	}
	return r.bus.Tx(data, nil)
}
