package sx127x

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-go/errcode"
	"telemetry-go/internal/sim"
)

type rig struct {
	radio *sim.SX127x
	clk   *sim.Clock
	link  *sim.Clock
	dev   *Device
}

func newRig(t *testing.T, version byte, cfg Config) *rig {
	t.Helper()
	r := &rig{radio: sim.NewSX127x(version), clk: &sim.Clock{}, link: &sim.Clock{}}
	cfg.Sleeper = r.clk
	cfg.LinkSleeper = r.link
	r.dev = New(r.radio, r.radio.CS, r.radio.Reset)
	r.dev.Configure(cfg)
	return r
}

func TestFrequencyRegister(t *testing.T) {
	assert.Equal(t, uint32(0xE4C000), FrequencyRegister(915_000_000, 32_000_000))
	assert.Equal(t, uint32(0xD90000), FrequencyRegister(868_000_000, 32_000_000))
	assert.Equal(t, uint32(0x6C8000), FrequencyRegister(434_000_000, 32_000_000))
}

func TestInitProgramsRegisters(t *testing.T) {
	r := newRig(t, chipVersion, Config{})
	require.NoError(t, r.dev.Init())

	assert.Equal(t, 1, r.radio.Resets())
	assert.Equal(t, byte(ModeStandby), r.radio.Mode())
	assert.Equal(t, byte(0x81), r.radio.Reg(regOpMode))

	want := map[byte]byte{
		regFrfMsb: 0xE4, regFrfMid: 0xC0, regFrfLsb: 0x00,
		regPaConfig: 0xFF, regPaDac: 0x87,
		regModemConfig1: 0x78, regModemConfig2: 0xC4, regModemConfig3: 0x0C,
		regPreambleMsb: 0x00, regPreambleLsb: 0x0C,
		regSyncWord: 0x12, regOcp: 0x37, regLna: 0x23,
		regFifoTxBaseAddr: 0x00, regFifoRxBaseAddr: 0x00,
		regIrqFlagsMask: 0x00,
	}
	for a, v := range want {
		assert.Equalf(t, v, r.radio.Reg(a), "register %s", RegName(a))
	}

	// Frf LSB is written last of the three.
	var frf []byte
	for _, w := range r.radio.Writes() {
		if w.Addr >= regFrfMsb && w.Addr <= regFrfLsb {
			frf = append(frf, w.Addr)
		}
	}
	assert.Equal(t, []byte{regFrfMsb, regFrfMid, regFrfLsb}, frf)

	assert.Equal(t, 1, r.clk.Count(5*time.Millisecond))
	assert.Equal(t, 2, r.clk.Count(10*time.Millisecond))
}

func TestInitIdentityMismatchWritesNothing(t *testing.T) {
	r := newRig(t, 0x22, Config{})
	err := r.dev.Init()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotDetected))
	assert.True(t, errcode.Fatal(err))
	assert.Contains(t, err.Error(), "0x22")
	assert.Empty(t, r.radio.Writes())
}

func TestInitCustomFrequency(t *testing.T) {
	r := newRig(t, chipVersion, Config{FrequencyHz: 868_000_000, Preamble: 8})
	require.NoError(t, r.dev.Init())
	assert.Equal(t, byte(0xD9), r.radio.Reg(regFrfMsb))
	assert.Equal(t, byte(0x08), r.radio.Reg(regPreambleLsb))
}

func TestSendRejectsLength(t *testing.T) {
	r := newRig(t, chipVersion, Config{})
	require.NoError(t, r.dev.Init())
	r.radio.ClearLog()

	for _, n := range []int{0, 256} {
		err := r.dev.Send(make([]byte, n))
		assert.Truef(t, errors.Is(err, ErrLength), "len %d: %v", n, err)
	}
	assert.Zero(t, r.radio.Transfers())
	assert.Empty(t, r.radio.Packets())
}

func TestSendCompletes(t *testing.T) {
	r := newRig(t, chipVersion, Config{})
	require.NoError(t, r.dev.Init())
	r.radio.ClearLog()
	r.radio.TxPollsBeforeDone = 3
	before := r.clk.Count(time.Millisecond)

	payload := []byte{0x18, 0xFC, 0x86, 0x15}
	require.NoError(t, r.dev.Send(payload))

	fifo := r.radio.FifoWrites()
	require.Len(t, fifo, 4)
	for i, fw := range fifo {
		assert.Equal(t, byte(i), fw.Ptr)
		assert.Equal(t, payload[i], fw.Value)
	}
	assert.Equal(t, [][]byte{payload}, r.radio.Packets())
	assert.Equal(t, 4, r.radio.Polls())
	assert.Equal(t, 3, r.clk.Count(time.Millisecond)-before)
	assert.Equal(t, byte(ModeStandby), r.radio.Mode())

	want := []sim.RegWrite{
		{Addr: regOpMode, Value: 0x81},
		{Addr: regFifoAddrPtr, Value: 0x00},
		{Addr: regFifo, Value: 0x18},
		{Addr: regFifo, Value: 0xFC},
		{Addr: regFifo, Value: 0x86},
		{Addr: regFifo, Value: 0x15},
		{Addr: regPayloadLength, Value: 4},
		{Addr: regIrqFlags, Value: 0xFF},
		{Addr: regDioMapping1, Value: 0x40},
		{Addr: regOpMode, Value: 0x83},
		{Addr: regIrqFlags, Value: 0x08},
		{Addr: regOpMode, Value: 0x81},
	}
	assert.Equal(t, want, r.radio.Writes())
}

func TestSendTimeout(t *testing.T) {
	r := newRig(t, chipVersion, Config{TxPollBudget: 10})
	require.NoError(t, r.dev.Init())
	r.radio.TxPollsBeforeDone = -1
	before := r.clk.Count(time.Millisecond)

	err := r.dev.Send([]byte{1, 2, 3, 4})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTxTimeout))
	assert.False(t, errcode.Fatal(err))
	assert.Equal(t, 10, r.radio.Polls())
	assert.Equal(t, 10, r.clk.Count(time.Millisecond)-before)
	assert.Equal(t, byte(ModeStandby), r.radio.Mode())

	// A later send still works.
	r.radio.TxPollsBeforeDone = 0
	require.NoError(t, r.dev.Send([]byte{5}))
	assert.Equal(t, 1, r.radio.Polls())
}

func TestFIFOIsOneFrame(t *testing.T) {
	r := newRig(t, chipVersion, Config{})
	r.dev.Configure(Config{Sleeper: r.clk, LinkSleeper: r.link})
	regs := r.dev.Regs()
	require.NoError(t, regs.WriteRegister(regFifoAddrPtr, 0))
	r.radio.ClearLog()
	edges := r.link.Calls()

	require.NoError(t, regs.WriteFIFO([]byte{9, 8, 7}))
	assert.Equal(t, 4, r.radio.Transfers())
	assert.Equal(t, 2, r.link.Calls()-edges)
}

func TestModeReadsBack(t *testing.T) {
	r := newRig(t, chipVersion, Config{})
	require.NoError(t, r.dev.Init())

	m, err := r.dev.Mode()
	require.NoError(t, err)
	assert.Equal(t, ModeStandby, m)
	assert.Equal(t, "standby", m.String())
	assert.Equal(t, "mode(0x05)", Mode(5).String())

	// Sleep is entered only while programming.
	var modes []byte
	for _, w := range r.radio.Writes() {
		if w.Addr == regOpMode {
			modes = append(modes, w.Value)
		}
	}
	assert.Equal(t, []byte{0x80, 0x81}, modes)
}

func TestDump(t *testing.T) {
	r := newRig(t, chipVersion, Config{})
	require.NoError(t, r.dev.Init())
	regs, err := r.dev.Dump()
	require.NoError(t, err)
	require.Len(t, regs, len(dumpOrder))
	for _, rv := range regs {
		if rv.Addr == regVersion {
			assert.Equal(t, "Version", rv.Name)
			assert.Equal(t, uint8(chipVersion), rv.Value)
		}
	}
}
