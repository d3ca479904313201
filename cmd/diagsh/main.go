// Command diagsh is an operator console for a telemetry board: sensor reads,
// bus scans, radio bring-up, raw sends and register dumps.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"telemetry-go/drivers/sx127x"
	"telemetry-go/internal/board"
)

var (
	boardName = flag.String("board", board.NameSim, "board to attach to")
	script    = flag.String("c", "", `run commands and exit, e.g. "lora; send 01 02"`)
	freqHz    = flag.Uint("freq", 915_000_000, "radio carrier frequency in Hz")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	open := func() (*board.Board, error) { return board.Named(*boardName) }
	c, err := newConsole(open, sx127x.Config{FrequencyHz: uint32(*freqHz)})
	if err != nil {
		glog.Exitf("diagsh: %v", err)
	}

	shell := ishell.New()
	shell.SetPrompt(*boardName + " > ")
	for _, cmd := range c.commands() {
		shell.AddCmd(cmd)
	}

	if *script == "" {
		shell.Println("telemetry diagnostics, type help")
		shell.Run()
		return
	}
	batch, err := splitBatch(*script)
	if err != nil {
		glog.Exitf("diagsh: %v", err)
	}
	for _, args := range batch {
		if err := shell.Process(args...); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
			os.Exit(1)
		}
	}
}
