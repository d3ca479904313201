// Command telemetry-go runs the telemetry node: it brings up the board,
// verifies the radio, then reads the sensor and transmits one 4-byte packet
// per period. Readings can be mirrored to an MQTT broker.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"telemetry-go/bus"
	"telemetry-go/drivers/sx127x"
	"telemetry-go/errcode"
	"telemetry-go/internal/board"
	"telemetry-go/services/config"
	"telemetry-go/services/heartbeat"
	"telemetry-go/services/mqttbridge"
	"telemetry-go/services/telemetry"
	"telemetry-go/x/strx"
)

var (
	boardName = flag.String("board", board.NameSim, "board to run on")
	mqttURL   = flag.String("mqtt", "", "broker URL, e.g. mqtt://host:1883/lora (overrides the board config)")
	once      = flag.Bool("once", false, "run a single cycle and exit")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	tel, mq, err := config.Load(*boardName)
	if err != nil {
		glog.Warningf("config: %v, using defaults", err)
	}
	b, err := board.Named(*boardName)
	if err != nil {
		glog.Exitf("board: %v", err)
	}

	radio := b.Radio(sx127x.Config{FrequencyHz: tel.FrequencyHz, TxPollBudget: tel.TxPollBudget})
	if err := telemetry.Bootstrap(radio); err != nil {
		if errcode.Fatal(err) {
			glog.Fatalf("halting: %v", err)
		}
		glog.Exitf("radio: %v", err)
	}

	sensor := b.AHT10()
	if err := sensor.Init(); err != nil {
		glog.Warningf("sensor: %v", err)
	}

	svc := telemetry.New(sensor, radio, tel.Period())
	if *once {
		if _, err := svc.Step(); err != nil {
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bs := bus.NewBus(16)
	cctx := context.WithValue(ctx, config.CtxBoardKey, *boardName)
	config.NewConfigService().Start(cctx, bs.NewConnection("config"))
	heartbeat.New().Start(ctx, bs.NewConnection("heartbeat"))

	if url := strx.First(*mqttURL, mq.URL); url != "" {
		node := mqttbridge.NodeID()
		client, prefix, err := mqttbridge.Dial(url, "telemetry-"+node)
		if err != nil {
			glog.Errorf("mqtt: %v, continuing without uplink", err)
		} else {
			defer client.Close()
			mqttbridge.New(client, strx.First(prefix, mq.Prefix), node).Start(ctx, bs.NewConnection("mqttbridge"))
		}
	}

	glog.Infof("telemetry: board %s, period %v", b.Name, svc.Period())
	svc.Run(ctx, bs.NewConnection("telemetry"))
}
