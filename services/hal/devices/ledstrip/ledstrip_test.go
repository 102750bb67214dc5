package ledstrip

import (
	"context"
	"sync"
	"testing"
	"time"

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

type nopDelay struct{}

func (nopDelay) Delay(d time.Duration) {}

func newStrip(t *testing.T, params types.StripParams) (core.Device, *platform.FakePins, *capture) {
	t.Helper()
	pins := platform.NewFakePins()
	pub := &capture{}
	res := core.Resources{
		Reg:   platform.NewRegistry(pins, nil, nil),
		Pub:   pub,
		Delay: nopDelay{},
	}
	dev, err := builder{}.Build(context.Background(), core.BuilderInput{ID: "strip0", Params: params, Res: res})
	require.NoError(t, err)
	require.NoError(t, dev.Init(context.Background()))
	t.Cleanup(func() { dev.Close() })
	return dev, pins, pub
}

var addr = core.CapAddr{Domain: "io", Kind: "strip", Name: "strip0"}

func TestFrameTransmitsAndPublishes(t *testing.T) {
	dev, pins, pub := newStrip(t, types.StripParams{Pin: 4, Pixels: 2})

	before := len(pins.Get(4).Writes())
	res, err := dev.Control(addr, "frame", types.StripFrame{
		Pixels: [][]uint8{{255, 0, 0}, {0, 0, 255}},
	})
	require.NoError(t, err)
	assert.True(t, res.OK)

	// 2 pixels x 24 bits x 2 transitions each.
	writes := pins.Get(4).Writes()
	assert.Equal(t, 96, len(writes)-before)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.NotEmpty(t, pub.evs)
	v, ok := pub.evs[len(pub.evs)-1].Payload.(types.StripValue)
	require.True(t, ok)
	assert.Equal(t, [][]uint8{{255, 0, 0}, {0, 0, 255}}, v.Pixels)
}

func TestChannelMismatchRejectedBeforeWire(t *testing.T) {
	dev, pins, pub := newStrip(t, types.StripParams{Pin: 4, Pixels: 1})

	before := len(pins.Get(4).Writes())
	res, err := dev.Control(addr, "frame", types.StripFrame{
		Pixels: [][]uint8{{10, 20, 30, 40}}, // RGBW pixel on an RGB strip
	})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "invalid_frame", string(res.Error))
	assert.Equal(t, before, len(pins.Get(4).Writes()), "wire must stay untouched")

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Empty(t, pub.evs, "no value published for a rejected frame")
}

func TestWrongPixelCountRejected(t *testing.T) {
	dev, pins, _ := newStrip(t, types.StripParams{Pin: 4, Pixels: 3})

	before := len(pins.Get(4).Writes())
	res, err := dev.Control(addr, "frame", types.StripFrame{
		Pixels: [][]uint8{{1, 2, 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "invalid_frame", string(res.Error))
	assert.Equal(t, before, len(pins.Get(4).Writes()))
}

func TestFillBuildsWholeFrame(t *testing.T) {
	dev, _, pub := newStrip(t, types.StripParams{Pin: 4, Pixels: 3, Mode: "rgbw", Chip: "sk6812"})

	res, err := dev.Control(addr, "fill", types.StripFill{R: 1, G: 2, B: 3, W: 4})
	require.NoError(t, err)
	assert.True(t, res.OK)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	v := pub.evs[len(pub.evs)-1].Payload.(types.StripValue)
	require.Len(t, v.Pixels, 3)
	for _, px := range v.Pixels {
		assert.Equal(t, []uint8{1, 2, 3, 4}, px)
	}
}

func TestOffClearsStrip(t *testing.T) {
	dev, _, pub := newStrip(t, types.StripParams{Pin: 4, Pixels: 2})

	res, err := dev.Control(addr, "off", nil)
	require.NoError(t, err)
	assert.True(t, res.OK)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	v := pub.evs[len(pub.evs)-1].Payload.(types.StripValue)
	for _, px := range v.Pixels {
		assert.Equal(t, []uint8{0, 0, 0}, px)
	}
}

func TestBadPayloadRejected(t *testing.T) {
	dev, _, _ := newStrip(t, types.StripParams{Pin: 4, Pixels: 2})

	res, err := dev.Control(addr, "frame", "nonsense")
	require.NoError(t, err)
	assert.Equal(t, "invalid_payload", string(res.Error))
}
