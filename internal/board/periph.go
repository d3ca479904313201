package board

import (
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"

	"telemetry-go/drivers/sx127x"
	"telemetry-go/drivers/twowire"
	"telemetry-go/errcode"
	"telemetry-go/x/timex"
)

// NameLinux is a Linux single-board computer: radio on spidev with GPIO chip
// select and reset, sensor on two bit-banged GPIO lines.
const NameLinux = "linux"

// LinuxConfig names the host resources. Pin names are as gpioreg knows them.
type LinuxConfig struct {
	SPIPort string // "" opens the first port
	SPIHz   physic.Frequency
	CS      string
	Reset   string
	SCL     string
	SDA     string
}

// DefaultLinux matches a Raspberry Pi header with the radio on SPI0.
var DefaultLinux = LinuxConfig{
	SPIHz: 8 * physic.MegaHertz,
	CS:    "GPIO25",
	Reset: "GPIO17",
	SCL:   "GPIO23",
	SDA:   "GPIO24",
}

// GPIOLine drives the two-wire lines from two GPIO pins. Releasing SDA turns
// the pin into a pulled-up input.
type GPIOLine struct {
	Clock gpio.PinOut
	Data  gpio.PinIO
}

var _ twowire.Line = GPIOLine{}

func (g GPIOLine) Write(l twowire.Levels) {
	_ = g.Clock.Out(gpio.Level(l.SCL))
	if l.OE && !l.SDA {
		_ = g.Data.Out(gpio.Low)
		return
	}
	_ = g.Data.In(gpio.PullUp, gpio.NoEdge)
}

func (g GPIOLine) SDA() bool { return g.Data.Read() == gpio.High }

// SPIConn adapts a periph connection to drivers.SPI. Chip select is left to
// a GPIO so that one register access can span several transfers.
type SPIConn struct {
	Conn spi.Conn
}

var _ drivers.SPI = SPIConn{}

func (s SPIConn) Transfer(b byte) (byte, error) {
	var r [1]byte
	if err := s.Conn.Tx([]byte{b}, r[:]); err != nil {
		return 0, errcode.Wrap(errcode.Error, "spi.transfer", err)
	}
	return r[0], nil
}

func (s SPIConn) Tx(w, r []byte) error {
	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	if n == 0 {
		return nil
	}
	wb, rb := make([]byte, n), make([]byte, n)
	copy(wb, w)
	if err := s.Conn.Tx(wb, rb); err != nil {
		return errcode.Wrap(errcode.Error, "spi.tx", err)
	}
	copy(r, rb)
	return nil
}

// PinOutput adapts a GPIO output to the radio's pin shape.
func PinOutput(p gpio.PinOut) sx127x.PinOutput {
	return func(level bool) { _ = p.Out(gpio.Level(level)) }
}

func pin(name string) (gpio.PinIO, error) {
	if p := gpioreg.ByName(name); p != nil {
		return p, nil
	}
	return nil, &errcode.E{C: errcode.InvalidParams, Op: "board.linux", Msg: "no GPIO named " + name}
}

// Linux opens the host drivers and the configured resources.
func Linux(cfg LinuxConfig) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, errcode.Wrap(errcode.Error, "board.linux", err)
	}
	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidParams, "board.linux", err)
	}
	conn, err := port.Connect(cfg.SPIHz, spi.Mode0|spi.NoCS, 8)
	if err != nil {
		_ = port.Close()
		return nil, errcode.Wrap(errcode.Error, "board.linux", err)
	}

	pins := make([]gpio.PinIO, 4)
	for i, name := range []string{cfg.CS, cfg.Reset, cfg.SCL, cfg.SDA} {
		if pins[i], err = pin(name); err != nil {
			_ = port.Close()
			return nil, err
		}
	}
	cs, reset := PinOutput(pins[0]), PinOutput(pins[1])
	cs(true)

	return &Board{
		Name:        NameLinux,
		Line:        GPIOLine{Clock: pins[2], Data: pins[3]},
		SPI:         SPIConn{Conn: conn},
		CS:          cs,
		Reset:       reset,
		LineSleeper: timex.Busy,
		Sleeper:     timex.Real,
	}, nil
}
