package gpiobutton

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supermini-go/services/hal/internal/core"
	"supermini-go/services/hal/internal/gpioirq"
	"supermini-go/services/hal/internal/platform"
	"supermini-go/types"
)

type capture struct {
	mu  sync.Mutex
	evs []core.Event
}

func (c *capture) Emit(ev core.Event) bool {
	c.mu.Lock()
	c.evs = append(c.evs, ev)
	c.mu.Unlock()
	return true
}

func (c *capture) waitTag(t *testing.T, tag string) core.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		for _, ev := range c.evs {
			if ev.IsEvent && ev.EventTag == tag {
				c.mu.Unlock()
				return ev
			}
		}
		c.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %q event", tag)
	return core.Event{}
}

func newButton(t *testing.T, params types.ButtonParams) (core.Device, *platform.FakePins, *capture) {
	t.Helper()
	pins := platform.NewFakePins()
	irq := gpioirq.NewWorker(16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go irq.Run(ctx)

	pub := &capture{}
	res := core.Resources{Reg: platform.NewRegistry(pins, nil, irq), Pub: pub}

	dev, err := builder{}.Build(ctx, core.BuilderInput{ID: "btn0", Params: params, Res: res})
	require.NoError(t, err)
	require.NoError(t, dev.Init(ctx))
	t.Cleanup(func() { dev.Close() })
	return dev, pins, pub
}

func TestPressAndReleaseEvents(t *testing.T) {
	// Active-low wiring: pull-up idle high, press pulls to ground.
	_, pins, pub := newButton(t, types.ButtonParams{Pin: 9, Invert: true, DebounceMs: 1})

	pins.Get(9).Drive(false)
	ev := pub.waitTag(t, "pressed")
	assert.Equal(t, types.ButtonValue{Pressed: true}, ev.Payload)

	time.Sleep(5 * time.Millisecond)
	pins.Get(9).Drive(true)
	ev = pub.waitTag(t, "released")
	assert.Equal(t, types.ButtonValue{Pressed: false}, ev.Payload)
}

func TestValueEmittedAlongsideEvent(t *testing.T) {
	_, pins, pub := newButton(t, types.ButtonParams{Pin: 9, Invert: true, DebounceMs: 1})

	pins.Get(9).Drive(false)
	pub.waitTag(t, "pressed")

	pub.mu.Lock()
	defer pub.mu.Unlock()
	found := false
	for _, ev := range pub.evs {
		if !ev.IsEvent && ev.Payload == (types.ButtonValue{Pressed: true}) {
			found = true
		}
	}
	assert.True(t, found, "retained value update missing")
}

func TestReadSamplesPin(t *testing.T) {
	dev, pins, pub := newButton(t, types.ButtonParams{Pin: 3, Pull: "down"})

	pins.Get(3).Drive(true)
	time.Sleep(10 * time.Millisecond)

	res, err := dev.Control(core.CapAddr{Domain: "io", Kind: "button", Name: "btn0"}, "read", nil)
	require.NoError(t, err)
	assert.True(t, res.OK)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	last := pub.evs[len(pub.evs)-1]
	assert.Equal(t, types.ButtonValue{Pressed: true}, last.Payload)
}

func TestCloseStopsPump(t *testing.T) {
	dev, pins, pub := newButton(t, types.ButtonParams{Pin: 2, DebounceMs: 1})

	require.NoError(t, dev.Close())
	pins.Get(2).Drive(true)
	time.Sleep(20 * time.Millisecond)

	pub.mu.Lock()
	n := len(pub.evs)
	pub.mu.Unlock()
	assert.Zero(t, n, "no events after close")
}
