// Package board bundles the capabilities of one target: the two-wire line,
// the radio's SPI link with its chip-select and reset lines, and the
// sleepers used for line settling and millisecond waits.
package board

import (
	"tinygo.org/x/drivers"

	"telemetry-go/drivers/aht10"
	"telemetry-go/drivers/sx127x"
	"telemetry-go/drivers/twowire"
	"telemetry-go/errcode"
	"telemetry-go/internal/sim"
	"telemetry-go/x/timex"
)

// Board names.
const (
	NameSim   = "sim"
	NameLitex = "litex-rv32"
)

type Board struct {
	Name string

	Line  twowire.Line
	SPI   drivers.SPI
	CS    sx127x.PinOutput
	Reset sx127x.PinOutput // nil: no reset line

	// LineSleeper settles bus lines (microseconds); Sleeper performs
	// millisecond waits.
	LineSleeper timex.Sleeper
	Sleeper     timex.Sleeper

	// Simulated peripherals, set only on the sim board.
	SimBus    *sim.I2C
	SimSensor *sim.AHT10
	SimRadio  *sim.SX127x

	i2c *twowire.Bus
}

// Sim returns a host board with an AHT10 at 0x38 reading 23.45 °C and
// 55.10 %RH, and a radio that completes each transmission after two polls.
func Sim() *Board {
	bus := sim.NewI2C()
	sensor := sim.NewAHT10(577765, 385090)
	bus.Attach(aht10.Address, sensor)

	radio := sim.NewSX127x(0x12)
	radio.TxPollsBeforeDone = 2

	return &Board{
		Name:        NameSim,
		Line:        twowire.CSR{W: bus.WriteReg, R: bus.ReadReg},
		SPI:         radio,
		CS:          radio.CS,
		Reset:       radio.Reset,
		LineSleeper: timex.Busy,
		Sleeper:     timex.Real,
		SimBus:      bus,
		SimSensor:   sensor,
		SimRadio:    radio,
	}
}

// LitexRegs are the CSR accessors of the LiteX SoC: the bit-banged two-wire
// write/read registers, the SPI master and the radio reset output.
type LitexRegs struct {
	I2CW     func(uint32)
	I2CR     func() uint32
	SPI      SPIMaster
	ResetOut func(uint32) // nil when the SoC has no reset CSR
}

// NewLitex builds the hardware board from its register accessors.
func NewLitex(regs LitexRegs) *Board {
	spi := regs.SPI
	spi.Init()
	b := &Board{
		Name:        NameLitex,
		Line:        twowire.CSR{W: regs.I2CW, R: regs.I2CR},
		SPI:         &spi,
		CS:          spi.CS,
		LineSleeper: timex.Busy,
		Sleeper:     timex.Busy,
	}
	if out := regs.ResetOut; out != nil {
		b.Reset = func(level bool) {
			if level {
				out(1)
			} else {
				out(0)
			}
		}
	}
	return b
}

var litex *LitexRegs

// RegisterLitex records the SoC's CSR accessors so that Named can build the
// LiteX board. On-target builds call it from init with the accessors
// generated for their SoC.
func RegisterLitex(regs LitexRegs) { litex = &regs }

// Named returns the board with the given name.
func Named(name string) (*Board, error) {
	switch name {
	case NameSim, "":
		return Sim(), nil
	case NameLinux:
		return Linux(DefaultLinux)
	case NameLitex:
		if litex == nil {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "board.named", Msg: name + ": no CSR accessors registered"}
		}
		return NewLitex(*litex), nil
	}
	return nil, &errcode.E{C: errcode.InvalidParams, Op: "board.named", Msg: "unknown board " + name}
}

// I2C returns the board's two-wire bus engine, built on first use.
func (b *Board) I2C() *twowire.Bus {
	if b.i2c == nil {
		b.i2c = twowire.New(b.Line, twowire.Config{Sleeper: b.LineSleeper})
	}
	return b.i2c
}

// AHT10 returns a sensor handle on the board's two-wire bus.
func (b *Board) AHT10() *aht10.Device {
	d := aht10.New(b.I2C())
	d.Configure(aht10.Config{Sleeper: b.Sleeper})
	return &d
}

// Radio returns a radio handle. cfg sleepers default to the board's.
func (b *Board) Radio(cfg sx127x.Config) *sx127x.Device {
	if cfg.Sleeper == nil {
		cfg.Sleeper = b.Sleeper
	}
	if cfg.LinkSleeper == nil {
		cfg.LinkSleeper = b.LineSleeper
	}
	d := sx127x.New(b.SPI, b.CS, b.Reset)
	d.Configure(cfg)
	return d
}
