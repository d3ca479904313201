package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-go/bus"
	"telemetry-go/drivers/aht10"
	"telemetry-go/drivers/sx127x"
	"telemetry-go/drivers/twowire"
	"telemetry-go/errcode"
	"telemetry-go/internal/sim"
	"telemetry-go/services/config"
	"telemetry-go/types"
)

type fakeSensor struct {
	mu    sync.Mutex
	r     types.Reading
	err   error
	calls int
}

func (f *fakeSensor) Read() (types.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.r, f.err
}

type fakeRadio struct {
	mu      sync.Mutex
	sent    [][]byte
	err     error
	initErr error
}

func (f *fakeRadio) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), b...))
	return f.err
}

func (f *fakeRadio) Init() error { return f.initErr }

func (f *fakeRadio) packets() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func TestStepSendsPacket(t *testing.T) {
	sensor := &fakeSensor{r: types.Reading{CentiC: -1000, CentiRH: 5510}}
	radio := &fakeRadio{}
	s := New(sensor, radio, 0)

	r, err := s.Step()
	require.NoError(t, err)
	assert.Equal(t, sensor.r, r)
	assert.Equal(t, [][]byte{{0x18, 0xFC, 0x86, 0x15}}, radio.packets())
	assert.Equal(t, DefaultPeriod, s.Period())
}

func TestStepSensorFailureSkipsSend(t *testing.T) {
	sensor := &fakeSensor{err: &errcode.E{C: errcode.SensorProtocol, Op: "aht10.trigger"}}
	radio := &fakeRadio{}
	s := New(sensor, radio, time.Second)

	_, err := s.Step()
	assert.True(t, errors.Is(err, errcode.SensorProtocol))
	assert.Empty(t, radio.packets())
}

func TestStepRadioFailureNotRetried(t *testing.T) {
	sensor := &fakeSensor{r: types.Reading{CentiC: 1, CentiRH: 2}}
	radio := &fakeRadio{err: &errcode.E{C: errcode.RadioTxTimeout, Op: "sx127x.send"}}
	s := New(sensor, radio, time.Second)

	_, err := s.Step()
	assert.True(t, errors.Is(err, errcode.RadioTxTimeout))
	assert.Len(t, radio.packets(), 1)
	assert.Equal(t, 1, sensor.calls)

	// The next cycle tries again.
	radio.err = nil
	_, err = s.Step()
	require.NoError(t, err)
	assert.Len(t, radio.packets(), 2)
}

func TestBootstrap(t *testing.T) {
	assert.NoError(t, Bootstrap(&fakeRadio{}))

	err := Bootstrap(&fakeRadio{initErr: &errcode.E{C: errcode.RadioIdentityMismatch, Op: "sx127x.init"}})
	require.Error(t, err)
	assert.True(t, errcode.Fatal(err))

	err = Bootstrap(&fakeRadio{initErr: errors.New("spi")})
	require.Error(t, err)
	assert.False(t, errcode.Fatal(err))
}

func waitTx(t *testing.T, sub *bus.Subscription) types.TxResult {
	t.Helper()
	select {
	case m := <-sub.Channel():
		res, ok := m.Payload.(types.TxResult)
		require.True(t, ok, "payload %T", m.Payload)
		return res
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for tx result")
	}
	return types.TxResult{}
}

func TestRunPublishesAndServesRequests(t *testing.T) {
	sensor := &fakeSensor{r: types.Reading{CentiC: 2345, CentiRH: 5510}}
	radio := &fakeRadio{}
	s := New(sensor, radio, time.Hour)
	s.now = func() int64 { return 42 }

	b := bus.NewBus(8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx, b.NewConnection("telemetry"))
	}()

	client := b.NewConnection("test")
	txSub := client.Subscribe(TopicTx)
	first := waitTx(t, txSub)
	assert.Equal(t, types.TxResult{Seq: 1, OK: true, Bytes: types.PacketSize, TsMs: 42}, first)

	rdSub := client.Subscribe(TopicReading)
	select {
	case m := <-rdSub.Channel():
		assert.Equal(t, sensor.r, m.Payload)
	case <-time.After(time.Second):
		t.Fatal("no retained reading")
	}

	rctx, rcancel := context.WithTimeout(context.Background(), time.Second)
	defer rcancel()
	reply, err := client.RequestWait(rctx, client.NewMessage(TopicStep, nil, false))
	require.NoError(t, err)
	res, ok := reply.Payload.(types.TxResult)
	require.True(t, ok)
	assert.Equal(t, uint32(2), res.Seq)
	assert.Len(t, radio.packets(), 2)

	client.Publish(client.NewMessage(config.TopicTelemetry, config.Telemetry{PeriodMs: 5000}, true))
	require.Eventually(t, func() bool { return s.Period() == 5*time.Second }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunReportsFailure(t *testing.T) {
	sensor := &fakeSensor{err: &errcode.E{C: errcode.SensorBusy, Op: "aht10.read"}}
	s := New(sensor, &fakeRadio{}, time.Hour)

	b := bus.NewBus(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, b.NewConnection("telemetry"))

	c := b.NewConnection("test")
	res := waitTx(t, c.Subscribe(TopicTx))
	assert.False(t, res.OK)
	assert.Zero(t, res.Bytes)
	assert.Contains(t, res.Err, "sensor_busy")
}

func TestCycleOverSimulatedBoard(t *testing.T) {
	clk := &sim.Clock{}

	i2c := sim.NewI2C()
	i2c.Attach(aht10.Address, sim.NewAHT10(577765, 385090))
	sensor := aht10.New(twowire.New(twowire.CSR{W: i2c.WriteReg, R: i2c.ReadReg}, twowire.Config{Sleeper: clk}))
	sensor.Configure(aht10.Config{Sleeper: clk})

	chip := sim.NewSX127x(0x12)
	chip.TxPollsBeforeDone = 2
	radio := sx127x.New(chip, chip.CS, chip.Reset)
	radio.Configure(sx127x.Config{Sleeper: clk, LinkSleeper: clk})
	require.NoError(t, Bootstrap(radio))

	s := New(&sensor, radio, 0)
	r, err := s.Step()
	require.NoError(t, err)
	assert.Equal(t, types.Reading{CentiC: 2345, CentiRH: 5510}, r)
	assert.Equal(t, [][]byte{{0x29, 0x09, 0x86, 0x15}}, chip.Packets())
	assert.Equal(t, byte(0x01), chip.Mode())
}
