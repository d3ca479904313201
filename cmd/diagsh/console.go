package main

import (
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/google/shlex"

	"telemetry-go/drivers/aht10"
	"telemetry-go/drivers/sx127x"
	"telemetry-go/errcode"
	"telemetry-go/internal/board"
	"telemetry-go/types"
	"telemetry-go/x/conv"
)

// console holds the peripherals the commands act on. reboot rebuilds them
// from open.
type console struct {
	open   func() (*board.Board, error)
	board  *board.Board
	sensor *aht10.Device
	radio  *sx127x.Device
	cfg    sx127x.Config
}

func newConsole(open func() (*board.Board, error), cfg sx127x.Config) (*console, error) {
	c := &console{open: open, cfg: cfg}
	return c, c.reboot()
}

func (c *console) reboot() error {
	b, err := c.open()
	if err != nil {
		return err
	}
	c.board = b
	c.sensor = b.AHT10()
	c.radio = b.Radio(c.cfg)
	return nil
}

func formatReading(r types.Reading) string {
	return "Temperature: " + conv.CentiString(int32(r.CentiC)) + " C, Humidity: " +
		conv.CentiString(int32(r.CentiRH)) + " %"
}

func (c *console) readSensor() (string, error) {
	r, err := c.sensor.Read()
	if err != nil {
		return "", err
	}
	return formatReading(r), nil
}

func (c *console) scan() string {
	found := c.board.I2C().Scan()
	if len(found) == 0 {
		return "no devices found"
	}
	parts := make([]string, len(found))
	for i, a := range found {
		parts[i] = conv.Hex8String(a)
	}
	return "devices: " + strings.Join(parts, " ")
}

func (c *console) initRadio() (string, error) {
	if err := c.radio.Init(); err != nil {
		return "", err
	}
	m, err := c.radio.Mode()
	if err != nil {
		return "", err
	}
	return "radio ready, mode " + m.String(), nil
}

// parseHex accepts bytes as "0A", "0x0a" or "a".
func parseHex(args []string) ([]byte, error) {
	out := make([]byte, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(a), "0x"), 16, 8)
		if err != nil {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "send", Msg: "bad byte " + strconv.Quote(a)}
		}
		out = append(out, byte(v))
	}
	return out, nil
}

func (c *console) send(args []string) (string, error) {
	data, err := parseHex(args)
	if err != nil {
		return "", err
	}
	if err := c.radio.Send(data); err != nil {
		return "", err
	}
	return "sent " + strconv.Itoa(len(data)) + " bytes", nil
}

func (c *console) regs() ([]string, error) {
	values, err := c.radio.Dump()
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(values))
	for i, rv := range values {
		lines[i] = conv.Hex8String(rv.Addr) + " " + rv.Name + strings.Repeat(" ", 16-len(rv.Name)) + conv.Hex8String(rv.Value)
	}
	return lines, nil
}

// splitBatch turns "cmd a; cmd b" into argument vectors.
func splitBatch(script string) ([][]string, error) {
	var out [][]string
	for _, part := range strings.Split(script, ";") {
		args, err := shlex.Split(part)
		if err != nil {
			return nil, errcode.Wrap(errcode.InvalidParams, "batch", err)
		}
		if len(args) > 0 {
			out = append(out, args)
		}
	}
	return out, nil
}

func (c *console) commands() []*ishell.Cmd {
	return []*ishell.Cmd{
		{
			Name: "aht10",
			Help: "read temperature and humidity",
			Func: func(ctx *ishell.Context) {
				s, err := c.readSensor()
				if err != nil {
					ctx.Err(err)
					return
				}
				ctx.Println(s)
			},
		},
		{
			Name:    "i2cscan",
			Aliases: []string{"scan"},
			Help:    "probe two-wire addresses 0x03..0x77",
			Func:    func(ctx *ishell.Context) { ctx.Println(c.scan()) },
		},
		{
			Name: "lora",
			Help: "reset and initialise the radio",
			Func: func(ctx *ishell.Context) {
				s, err := c.initRadio()
				if err != nil {
					ctx.Err(err)
					return
				}
				ctx.Println(s)
			},
		},
		{
			Name: "send",
			Help: "send HEX.. as one packet",
			Func: func(ctx *ishell.Context) {
				s, err := c.send(ctx.Args)
				if err != nil {
					ctx.Err(err)
					return
				}
				ctx.Println(s)
			},
		},
		{
			Name: "regs",
			Help: "dump radio registers",
			Func: func(ctx *ishell.Context) {
				lines, err := c.regs()
				if err != nil {
					ctx.Err(err)
					return
				}
				for _, l := range lines {
					ctx.Println(l)
				}
			},
		},
		{
			Name: "reboot",
			Help: "reset the board",
			Func: func(ctx *ishell.Context) {
				if err := c.reboot(); err != nil {
					ctx.Err(err)
					return
				}
				ctx.Println("rebooted")
			},
		},
	}
}
