// Package aht10 provides a driver for the AHT10 temperature/humidity sensor.
//
// One measurement is a fixed sequence on the bus:
//
//	write 0xAC 0x33 0x00    // trigger
//	wait ConversionDelay    // datasheet minimum ~75 ms
//	read 6 bytes            // status, humidity[20], temperature[20]
//
// The driver never retries; a failed step is reported to the caller, who
// decides whether to skip the cycle.
package aht10

import (
	"time"

	"tinygo.org/x/drivers"

	"telemetry-go/errcode"
	"telemetry-go/types"
	"telemetry-go/x/mathx"
	"telemetry-go/x/timex"
)

// I2C address.
const Address = 0x38

// Commands and status bits.
const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xE1
	cmdSoftReset  = 0xBA

	statusBusy       = 0x80
	statusCalibrated = 0x08
)

// ResponseSize is the length of one measurement response.
const ResponseSize = 6

// Errors returned by the driver.
var (
	ErrProtocol error = errcode.SensorProtocol
	ErrBusy     error = errcode.SensorBusy
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x38 if zero.
	Address uint16
	// ConversionDelay between trigger and read. Default 80 ms.
	ConversionDelay time.Duration
	// Sleeper performs the waits. Default timex.Real.
	Sleeper timex.Sleeper
}

// Device wraps a bus connection to an AHT10.
type Device struct {
	bus     drivers.I2C
	Address uint16

	cfg   Config
	sleep timex.Sleeper
	last  Sample
}

// New creates a new AHT10 connection. It does not touch the device.
func New(bus drivers.I2C) Device {
	return Device{
		bus:     bus,
		Address: Address,
	}
}

// Configure applies optional config. It performs no bus I/O.
func (d *Device) Configure(cfgs ...Config) {
	var c Config
	if len(cfgs) > 0 {
		c = cfgs[0]
	}
	if c.Address != 0 {
		d.Address = c.Address
	}
	if c.ConversionDelay <= 0 {
		c.ConversionDelay = 80 * time.Millisecond
	}
	d.sleep = timex.Or(c.Sleeper, timex.Real)
	c.Address = d.Address
	d.cfg = c
}

func (d *Device) ensureConfigured() {
	if d.sleep == nil {
		d.Configure()
	}
}

// Init sends the calibration/initialise command and waits for it to settle.
func (d *Device) Init() error {
	d.ensureConfigured()
	if err := d.bus.Tx(d.Address, []byte{cmdInitialize, 0x08, 0x00}, nil); err != nil {
		return errcode.Wrap(errcode.SensorProtocol, "aht10.init", err)
	}
	d.sleep.Sleep(10 * time.Millisecond)
	return nil
}

// Reset issues a soft reset. Give the device ~20ms afterwards before using.
func (d *Device) Reset() error {
	d.ensureConfigured()
	if err := d.bus.Tx(d.Address, []byte{cmdSoftReset}, nil); err != nil {
		return errcode.Wrap(errcode.SensorProtocol, "aht10.reset", err)
	}
	d.sleep.Sleep(20 * time.Millisecond)
	return nil
}

// TriggerAndRead starts a measurement, waits the conversion delay and reads
// the raw response into buf.
func (d *Device) TriggerAndRead(buf *[ResponseSize]byte) error {
	d.ensureConfigured()
	if err := d.bus.Tx(d.Address, []byte{cmdTrigger, 0x33, 0x00}, nil); err != nil {
		return errcode.Wrap(errcode.SensorProtocol, "aht10.trigger", err)
	}
	d.sleep.Sleep(d.cfg.ConversionDelay)
	if err := d.bus.Tx(d.Address, nil, buf[:]); err != nil {
		return errcode.Wrap(errcode.SensorProtocol, "aht10.read", err)
	}
	return nil
}

// Read performs one full measurement and returns it in hundredths.
func (d *Device) Read() (types.Reading, error) {
	var buf [ResponseSize]byte
	if err := d.TriggerAndRead(&buf); err != nil {
		return types.Reading{}, err
	}
	if buf[0]&statusBusy != 0 {
		return types.Reading{}, &errcode.E{C: errcode.SensorBusy, Op: "aht10.read", Msg: "conversion not finished"}
	}
	s := ParseSample(buf)
	d.last = s
	return types.Reading{CentiC: s.CentiCelsius(), CentiRH: s.CentiRelHumidity()}, nil
}

// Last returns the most recent successfully read sample.
func (d *Device) Last() Sample { return d.last }

// Sample holds the raw 20-bit fields of one response.
type Sample struct {
	Status      byte
	RawHumidity uint32
	RawTemp     uint32
}

// ParseSample extracts the raw fields. Humidity is the top 20 bits of bytes
// 1..3; temperature is the low nibble of byte 3 followed by bytes 4..5.
func ParseSample(buf [ResponseSize]byte) Sample {
	return Sample{
		Status:      buf[0],
		RawHumidity: (uint32(buf[1]) << 12) | (uint32(buf[2]) << 4) | (uint32(buf[3]) >> 4),
		RawTemp:     (uint32(buf[3]&0x0F) << 16) | (uint32(buf[4]) << 8) | uint32(buf[5]),
	}
}

// Parse converts a response into °C and %RH.
func Parse(buf [ResponseSize]byte) (celsius, relHumidity float32) {
	s := ParseSample(buf)
	return s.Celsius(), s.RelHumidity()
}

// Calibrated reports the calibration status bit.
func (s Sample) Calibrated() bool { return s.Status&statusCalibrated != 0 }

// RelHumidity returns relative humidity in percent.
func (s Sample) RelHumidity() float32 {
	return float32(s.RawHumidity) * 100 / 0x100000
}

// Celsius returns °C.
func (s Sample) Celsius() float32 {
	return float32(s.RawTemp)*200/0x100000 - 50
}

// CentiRelHumidity returns hundredths of %RH, rounded.
func (s Sample) CentiRelHumidity() int16 {
	return mathx.SaturateInt16(mathx.RoundHalfAway(s.RelHumidity() * 100))
}

// CentiCelsius returns hundredths of °C, rounded.
func (s Sample) CentiCelsius() int16 {
	return mathx.SaturateInt16(mathx.RoundHalfAway(s.Celsius() * 100))
}
