package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-go/drivers/sx127x"
	"telemetry-go/errcode"
	"telemetry-go/internal/board"
	"telemetry-go/internal/sim"
)

func simOpen(boards *[]*board.Board) func() (*board.Board, error) {
	return func() (*board.Board, error) {
		b := board.Sim()
		clk := &sim.Clock{}
		b.Sleeper, b.LineSleeper = clk, clk
		*boards = append(*boards, b)
		return b, nil
	}
}

func TestConsoleCommands(t *testing.T) {
	var boards []*board.Board
	c, err := newConsole(simOpen(&boards), sx127x.Config{})
	require.NoError(t, err)

	s, err := c.readSensor()
	require.NoError(t, err)
	assert.Equal(t, "Temperature: 23.45 C, Humidity: 55.10 %", s)

	assert.Equal(t, "devices: 0x38", c.scan())

	s, err = c.initRadio()
	require.NoError(t, err)
	assert.Equal(t, "radio ready, mode standby", s)

	s, err = c.send([]string{"0x18", "fc", "86", "15"})
	require.NoError(t, err)
	assert.Equal(t, "sent 4 bytes", s)
	assert.Equal(t, [][]byte{{0x18, 0xFC, 0x86, 0x15}}, boards[0].SimRadio.Packets())

	lines, err := c.regs()
	require.NoError(t, err)
	assert.Contains(t, lines, "0x42 Version         0x12")
	assert.Contains(t, lines, "0x06 FrfMsb          0xE4")
}

func TestConsoleSendErrors(t *testing.T) {
	var boards []*board.Board
	c, err := newConsole(simOpen(&boards), sx127x.Config{})
	require.NoError(t, err)

	_, err = c.send([]string{"zz"})
	assert.True(t, errors.Is(err, errcode.InvalidParams))
	_, err = c.send(nil)
	assert.True(t, errors.Is(err, sx127x.ErrLength))
	assert.Empty(t, boards[0].SimRadio.Packets())
}

func TestConsoleReboot(t *testing.T) {
	var boards []*board.Board
	c, err := newConsole(simOpen(&boards), sx127x.Config{})
	require.NoError(t, err)
	boards[0].SimSensor.Set(0, 0)

	require.NoError(t, c.reboot())
	require.Len(t, boards, 2)
	s, err := c.readSensor()
	require.NoError(t, err)
	assert.Contains(t, s, "23.45")
}

func TestScanEmptyBus(t *testing.T) {
	open := func() (*board.Board, error) {
		b := board.Sim()
		b.LineSleeper = &sim.Clock{}
		b.SimBus.Detach(0x38)
		return b, nil
	}
	c, err := newConsole(open, sx127x.Config{})
	require.NoError(t, err)
	assert.Equal(t, "no devices found", c.scan())
}

func TestSplitBatch(t *testing.T) {
	got, err := splitBatch(`lora; send 01 "02"  ;; regs`)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"lora"}, {"send", "01", "02"}, {"regs"}}, got)

	_, err = splitBatch(`send "01`)
	assert.Error(t, err)
}
