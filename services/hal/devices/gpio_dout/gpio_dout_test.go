package gpiodout

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supermini-go/services/hal/internal/core"
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

func (c *capture) last() (core.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.evs) == 0 {
		return core.Event{}, false
	}
	return c.evs[len(c.evs)-1], true
}

func newDevice(t *testing.T, params types.LEDParams) (core.Device, *platform.FakePins, *capture) {
	t.Helper()
	pins := platform.NewFakePins()
	pub := &capture{}
	res := core.Resources{Reg: platform.NewRegistry(pins, nil, nil), Pub: pub}

	dev, err := builder{}.Build(context.Background(), core.BuilderInput{
		ID: "led0", Type: driverName, Params: params, Res: res,
	})
	require.NoError(t, err)
	require.NoError(t, dev.Init(context.Background()))
	return dev, pins, pub
}

var addr = core.CapAddr{Domain: "io", Kind: "led", Name: "led0"}

func TestSetDrivesPin(t *testing.T) {
	dev, pins, pub := newDevice(t, types.LEDParams{Pin: 8})
	defer dev.Close()

	res, err := dev.Control(addr, "set", types.LEDSet{On: true})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.True(t, pins.Get(8).Get())

	ev, ok := pub.last()
	require.True(t, ok)
	assert.Equal(t, types.LEDValue{On: true}, ev.Payload)
}

func TestToggleTracksCommandedLevel(t *testing.T) {
	dev, pins, _ := newDevice(t, types.LEDParams{Pin: 8})
	defer dev.Close()

	dev.Control(addr, "set", types.LEDSet{On: true})
	dev.Control(addr, "toggle", nil)
	assert.False(t, pins.Get(8).Get())
	dev.Control(addr, "toggle", nil)
	assert.True(t, pins.Get(8).Get())
}

// Toggle must not resample hardware: an externally disturbed line does
// not change what the next toggle produces.
func TestToggleIgnoresExternalLevel(t *testing.T) {
	dev, pins, _ := newDevice(t, types.LEDParams{Pin: 8})
	defer dev.Close()

	dev.Control(addr, "set", types.LEDSet{On: true})
	pins.Get(8).Drive(false) // glitch on the wire

	dev.Control(addr, "toggle", nil)
	assert.False(t, pins.Get(8).Get(), "toggle from tracked true lands at false")
}

func TestActiveLowInverts(t *testing.T) {
	dev, pins, _ := newDevice(t, types.LEDParams{Pin: 5, ActiveLow: true})
	defer dev.Close()

	// Initial logical off means physical high.
	assert.True(t, pins.Get(5).Get())

	dev.Control(addr, "set", types.LEDSet{On: true})
	assert.False(t, pins.Get(5).Get())
}

func TestInitialLevelApplied(t *testing.T) {
	dev, pins, _ := newDevice(t, types.LEDParams{Pin: 2, Initial: true})
	defer dev.Close()
	assert.True(t, pins.Get(2).Get())
}

func TestUnknownVerbRejected(t *testing.T) {
	dev, _, _ := newDevice(t, types.LEDParams{Pin: 8})
	defer dev.Close()

	res, err := dev.Control(addr, "blorp", nil)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "unsupported", string(res.Error))
}

func TestPinConflictFailsInit(t *testing.T) {
	pins := platform.NewFakePins()
	reg := platform.NewRegistry(pins, nil, nil)
	res := core.Resources{Reg: reg, Pub: &capture{}}

	a, err := builder{}.Build(context.Background(), core.BuilderInput{ID: "led0", Params: types.LEDParams{Pin: 4}, Res: res})
	require.NoError(t, err)
	require.NoError(t, a.Init(context.Background()))
	defer a.Close()

	b, err := builder{}.Build(context.Background(), core.BuilderInput{ID: "led1", Params: types.LEDParams{Pin: 4}, Res: res})
	require.NoError(t, err)
	assert.ErrorIs(t, b.Init(context.Background()), core.ErrPinInUse)
}

func TestCloseReleasesPin(t *testing.T) {
	pins := platform.NewFakePins()
	reg := platform.NewRegistry(pins, nil, nil)
	res := core.Resources{Reg: reg, Pub: &capture{}}

	a, _ := builder{}.Build(context.Background(), core.BuilderInput{ID: "led0", Params: types.LEDParams{Pin: 4}, Res: res})
	require.NoError(t, a.Init(context.Background()))
	require.NoError(t, a.Close())

	b, _ := builder{}.Build(context.Background(), core.BuilderInput{ID: "led1", Params: types.LEDParams{Pin: 4}, Res: res})
	assert.NoError(t, b.Init(context.Background()))
}
