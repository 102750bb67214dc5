//go:build !esp32c3

package hal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supermini-go/bus"
	"supermini-go/services/hal"
	"supermini-go/types"

	_ "supermini-go/services/hal/devices/gpio_button"
	_ "supermini-go/services/hal/devices/gpio_dout"
	_ "supermini-go/services/hal/devices/ledstrip"
)

func waitLink(t *testing.T, b *bus.Bus, topic bus.Topic, want types.Link) {
	t.Helper()
	conn := b.NewConnection("probe")
	defer conn.Disconnect()
	sub := conn.Subscribe(topic)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.CapabilityStatus); ok && st.Link == want {
				return
			}
		case <-deadline:
			t.Fatalf("no %s on %s", want, topic.String())
		}
	}
}

// Full stack: config in, control verb round trip, pin observed.
func TestLEDControlEndToEnd(t *testing.T) {
	b := bus.NewBus(16)
	pins := hal.NewFakePins()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hal.RunWith(ctx, b.NewConnection("hal"), hal.Options{Pins: pins})

	cfg := b.NewConnection("cfg")
	cfg.Publish(cfg.NewMessage(bus.T("config", "hal"), types.HALConfig{
		Devices: []types.HALDevice{
			{ID: "led0", Type: "gpio_dout", Params: types.LEDParams{Pin: 8}},
		},
	}, true))
	waitLink(t, b, bus.T("hal", "cap", "io", "led", "led0", "status"), types.LinkUp)

	client := b.NewConnection("client")
	defer client.Disconnect()
	rctx, rcancel := context.WithTimeout(ctx, time.Second)
	defer rcancel()
	reply, err := client.RequestWait(rctx, client.NewRequest(
		bus.T("hal", "cap", "io", "led", "led0", "control", "set"), types.LEDSet{On: true}))
	require.NoError(t, err)
	ok, isOK := reply.Payload.(types.OKReply)
	require.True(t, isOK)
	assert.True(t, ok.OK)
	assert.True(t, pins.Get(8).Get())
}

// Params arriving as a JSON-ish map (the embedded-config path) must build
// the same device.
func TestMapParamsBuildDevices(t *testing.T) {
	b := bus.NewBus(16)
	pins := hal.NewFakePins()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hal.RunWith(ctx, b.NewConnection("hal"), hal.Options{Pins: pins})

	cfg := b.NewConnection("cfg")
	cfg.Publish(cfg.NewMessage(bus.T("config", "hal"), types.HALConfig{
		Devices: []types.HALDevice{
			{ID: "strip0", Type: "ledstrip", Params: map[string]any{
				"pin": 4, "pixels": 2, "mode": "rgb", "chip": "ws2812",
			}},
		},
	}, true))
	waitLink(t, b, bus.T("hal", "cap", "io", "strip", "strip0", "status"), types.LinkUp)

	client := b.NewConnection("client")
	defer client.Disconnect()
	rctx, rcancel := context.WithTimeout(ctx, 2*time.Second)
	defer rcancel()
	reply, err := client.RequestWait(rctx, client.NewRequest(
		bus.T("hal", "cap", "io", "strip", "strip0", "control", "frame"),
		types.StripFrame{Pixels: [][]uint8{{10, 20, 30, 40}, {0, 0, 0, 0}}}))
	require.NoError(t, err)

	// RGBW pixels against an RGB strip: rejected before the wire.
	er, isErr := reply.Payload.(types.ErrorReply)
	require.True(t, isErr)
	assert.Equal(t, "invalid_frame", er.Error)
}

func TestButtonEventReachesBus(t *testing.T) {
	b := bus.NewBus(16)
	pins := hal.NewFakePins()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hal.RunWith(ctx, b.NewConnection("hal"), hal.Options{Pins: pins})

	cfg := b.NewConnection("cfg")
	cfg.Publish(cfg.NewMessage(bus.T("config", "hal"), types.HALConfig{
		Devices: []types.HALDevice{
			{ID: "btn0", Type: "gpio_button", Params: types.ButtonParams{Pin: 9, Invert: true, DebounceMs: 1}},
		},
	}, true))
	waitLink(t, b, bus.T("hal", "cap", "io", "button", "btn0", "status"), types.LinkUp)

	conn := b.NewConnection("watcher")
	defer conn.Disconnect()
	sub := conn.Subscribe(bus.T("hal", "cap", "io", "button", "btn0", "event", "#"))

	pins.Get(9).Drive(false) // press pulls the line low

	select {
	case m := <-sub.Channel():
		v, ok := m.Payload.(types.ButtonValue)
		require.True(t, ok)
		assert.True(t, v.Pressed)
		assert.Equal(t, "pressed", m.Topic.At(m.Topic.Len()-1))
	case <-time.After(2 * time.Second):
		t.Fatal("no button event")
	}
}
