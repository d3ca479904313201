// Package sx127x drives the transmit path of an SX1276-family LoRa
// transceiver (RFM95 modules).
//
// The driver keeps no copy of the register file; every access is a live
// round trip through Regs. The state machine is:
//
//	Sleep --Init--> Standby --Send--> Transmit --(TxDone | timeout)--> Standby
//
// Sleep is only entered during Init. Send always leaves the radio in Standby,
// including after a timeout.
package sx127x

import (
	"time"

	"tinygo.org/x/drivers"

	"telemetry-go/errcode"
	"telemetry-go/x/conv"
	"telemetry-go/x/timex"
)

// Errors returned by the driver.
var (
	ErrNotDetected error = errcode.RadioIdentityMismatch
	ErrTxTimeout   error = errcode.RadioTxTimeout
	ErrLength      error = errcode.InvalidLength
)

// MaxPayload is the largest payload the FIFO accepts in one packet.
const MaxPayload = 255

// Mode is the transceiver operating mode (RegOpMode bits 2..0).
type Mode uint8

const (
	ModeSleep   Mode = 0x00
	ModeStandby Mode = 0x01
	ModeTx      Mode = 0x03
)

func (m Mode) String() string {
	switch m {
	case ModeSleep:
		return "sleep"
	case ModeStandby:
		return "standby"
	case ModeTx:
		return "tx"
	}
	return "mode(" + conv.Hex8String(uint8(m)) + ")"
}

// Config controls the radio setup. All fields are optional; zero values take
// the defaults noted (915 MHz, BW 62.5 kHz, SF12, CR 4/8, 12-symbol preamble).
type Config struct {
	// FrequencyHz is the carrier. Default 915 MHz.
	FrequencyHz uint32
	// ReferenceHz is the crystal. Default 32 MHz.
	ReferenceHz uint32

	PAConfig     byte   // default 0xFF (PA_BOOST, max power)
	PADac        byte   // default 0x87 (+20 dBm)
	ModemConfig1 byte   // default 0x78 (BW 62.5k, CR 4/8, explicit header)
	ModemConfig2 byte   // default 0xC4 (SF12, AGC)
	ModemConfig3 byte   // default 0x0C (LDRO, AGC auto)
	Preamble     uint16 // default 12
	SyncWord     byte   // default 0x12
	OCP          byte   // default 0x37
	LNA          byte   // default 0x23

	// TxPollBudget bounds the TxDone polling loop. Default 5000.
	TxPollBudget int
	// PollInterval is slept once per unsuccessful poll. Default 1 ms.
	PollInterval time.Duration
	// CSSettle is slept after each chip-select edge. Default 2 µs.
	CSSettle time.Duration

	// Sleeper performs millisecond waits. Default timex.Real.
	Sleeper timex.Sleeper
	// LinkSleeper performs chip-select settling. Default timex.Busy.
	LinkSleeper timex.Sleeper
}

// Device is one transceiver.
type Device struct {
	bus   drivers.SPI
	cs    PinOutput
	reset PinOutput

	regs  Regs
	cfg   Config
	sleep timex.Sleeper
}

// New returns a device handle. It performs no I/O; reset may be nil when the
// board has no reset line.
func New(bus drivers.SPI, cs, reset PinOutput) *Device {
	return &Device{bus: bus, cs: cs, reset: reset}
}

// Configure applies optional config. It performs no I/O; Init programs the
// registers.
func (d *Device) Configure(cfgs ...Config) {
	var c Config
	if len(cfgs) > 0 {
		c = cfgs[0]
	}
	if c.FrequencyHz == 0 {
		c.FrequencyHz = 915_000_000
	}
	if c.ReferenceHz == 0 {
		c.ReferenceHz = 32_000_000
	}
	setDefault(&c.PAConfig, 0xFF)
	setDefault(&c.PADac, 0x87)
	setDefault(&c.ModemConfig1, 0x78)
	setDefault(&c.ModemConfig2, 0xC4)
	setDefault(&c.ModemConfig3, 0x0C)
	setDefault(&c.SyncWord, 0x12)
	setDefault(&c.OCP, 0x37)
	setDefault(&c.LNA, 0x23)
	if c.Preamble == 0 {
		c.Preamble = 12
	}
	if c.TxPollBudget <= 0 {
		c.TxPollBudget = 5000
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Millisecond
	}
	if c.CSSettle <= 0 {
		c.CSSettle = 2 * time.Microsecond
	}
	d.sleep = timex.Or(c.Sleeper, timex.Real)
	d.regs = NewRegs(d.bus, d.cs, c.LinkSleeper, c.CSSettle)
	d.cfg = c
}

func setDefault(b *byte, v byte) {
	if *b == 0 {
		*b = v
	}
}

func (d *Device) ensureConfigured() {
	if d.sleep == nil {
		d.Configure()
	}
}

// Regs exposes the register interface for diagnostics.
func (d *Device) Regs() Regs {
	d.ensureConfigured()
	return d.regs
}

// FrequencyRegister returns round(hz * 2^19 / ref), the 24-bit Frf value.
func FrequencyRegister(hz, ref uint32) uint32 {
	return uint32((uint64(hz)<<19 + uint64(ref)/2) / uint64(ref))
}

type regValue struct {
	addr, val uint8
}

// Init resets the chip, verifies its identity and programs it for transmit.
// An identity mismatch fails before any register is written.
func (d *Device) Init() error {
	d.ensureConfigured()
	c := d.cfg

	if d.reset != nil {
		d.reset(false)
		d.sleep.Sleep(5 * time.Millisecond)
		d.reset(true)
		d.sleep.Sleep(10 * time.Millisecond)
	}

	v, err := d.regs.ReadRegister(regVersion)
	if err != nil {
		return errcode.Wrap(errcode.RadioIdentityMismatch, "sx127x.init", err)
	}
	if v != chipVersion {
		return &errcode.E{C: errcode.RadioIdentityMismatch, Op: "sx127x.init",
			Msg: "version " + conv.Hex8String(v) + ", want " + conv.Hex8String(chipVersion)}
	}

	if err := d.setMode(ModeSleep); err != nil {
		return err
	}

	frf := FrequencyRegister(c.FrequencyHz, c.ReferenceHz)
	seq := []regValue{
		{regFrfMsb, uint8(frf >> 16)},
		{regFrfMid, uint8(frf >> 8)},
		{regFrfLsb, uint8(frf)}, // Frf takes effect on the LSB write.
		{regPaConfig, c.PAConfig},
		{regPaDac, c.PADac},
		{regModemConfig1, c.ModemConfig1},
		{regModemConfig2, c.ModemConfig2},
		{regModemConfig3, c.ModemConfig3},
		{regPreambleMsb, uint8(c.Preamble >> 8)},
		{regPreambleLsb, uint8(c.Preamble)},
		{regSyncWord, c.SyncWord},
		{regOcp, c.OCP},
		{regFifoTxBaseAddr, fifoTxBase},
		{regFifoRxBaseAddr, fifoRxBase},
		{regLna, c.LNA},
		{regIrqFlagsMask, 0x00},
		{regIrqFlags, irqClearAll},
	}
	if err := d.writeAll(seq); err != nil {
		return errcode.Wrap(errcode.Error, "sx127x.init", err)
	}

	if err := d.setMode(ModeStandby); err != nil {
		return err
	}
	d.sleep.Sleep(10 * time.Millisecond)
	return nil
}

func (d *Device) writeAll(seq []regValue) error {
	for _, rv := range seq {
		if err := d.regs.WriteRegister(rv.addr, rv.val); err != nil {
			return err
		}
	}
	return nil
}

// setMode writes RegOpMode with the LoRa bit set.
func (d *Device) setMode(m Mode) error {
	if err := d.regs.WriteRegister(regOpMode, opLongRange|uint8(m)); err != nil {
		return errcode.Wrap(errcode.Error, "sx127x.mode", err)
	}
	return nil
}

// Mode reads the current operating mode.
func (d *Device) Mode() (Mode, error) {
	d.ensureConfigured()
	v, err := d.regs.ReadRegister(regOpMode)
	if err != nil {
		return 0, errcode.Wrap(errcode.Error, "sx127x.mode", err)
	}
	return Mode(v & opModeMask), nil
}

// Send transmits data as one packet and polls for TxDone. The payload is
// opaque; its length must be 1..255. On timeout the radio is forced back to
// Standby and ErrTxTimeout is returned.
func (d *Device) Send(data []byte) error {
	if len(data) == 0 || len(data) > MaxPayload {
		return &errcode.E{C: errcode.InvalidLength, Op: "sx127x.send",
			Msg: "payload must be 1..255 bytes"}
	}
	d.ensureConfigured()

	if err := d.load(data); err != nil {
		_ = d.setMode(ModeStandby)
		return errcode.Wrap(errcode.Error, "sx127x.send", err)
	}

	for i := 0; i < d.cfg.TxPollBudget; i++ {
		flags, err := d.regs.ReadRegister(regIrqFlags)
		if err != nil {
			_ = d.setMode(ModeStandby)
			return errcode.Wrap(errcode.Error, "sx127x.send", err)
		}
		if flags&irqTxDone != 0 {
			if err := d.regs.WriteRegister(regIrqFlags, irqTxDone); err != nil {
				_ = d.setMode(ModeStandby)
				return errcode.Wrap(errcode.Error, "sx127x.send", err)
			}
			return d.setMode(ModeStandby)
		}
		d.sleep.Sleep(d.cfg.PollInterval)
	}

	if err := d.setMode(ModeStandby); err != nil {
		return err
	}
	return &errcode.E{C: errcode.RadioTxTimeout, Op: "sx127x.send"}
}

// load fills the FIFO in Standby and switches to Transmit.
func (d *Device) load(data []byte) error {
	if err := d.setMode(ModeStandby); err != nil {
		return err
	}
	if err := d.regs.WriteRegister(regFifoAddrPtr, fifoTxBase); err != nil {
		return err
	}
	if err := d.regs.WriteFIFO(data); err != nil {
		return err
	}
	seq := []regValue{
		{regPayloadLength, uint8(len(data))},
		{regIrqFlags, irqClearAll},
		{regDioMapping1, dio0TxDone},
	}
	if err := d.writeAll(seq); err != nil {
		return err
	}
	return d.setMode(ModeTx)
}

// RegValue is one register snapshot.
type RegValue struct {
	Addr  uint8
	Name  string
	Value uint8
}

// Dump reads back every register the driver programs.
func (d *Device) Dump() ([]RegValue, error) {
	d.ensureConfigured()
	out := make([]RegValue, 0, len(dumpOrder))
	for _, a := range dumpOrder {
		v, err := d.regs.ReadRegister(a)
		if err != nil {
			return out, errcode.Wrap(errcode.Error, "sx127x.dump", err)
		}
		out = append(out, RegValue{Addr: a, Name: RegName(a), Value: v})
	}
	return out, nil
}
