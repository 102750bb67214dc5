// Package gpiobutton exposes a debounced GPIO input. Edges arrive via
// the HAL's IRQ worker; the capability publishes pressed/released events
// and keeps a retained value.
package gpiobutton

import (
	"context"
	"time"

	"supermini-go/errcode"
	"supermini-go/services/hal/internal/core"
	"supermini-go/types"
	"supermini-go/x/timex"
)

const (
	driverName      = "gpio_button"
	defaultDebounce = 150 * time.Millisecond
)

type device struct {
	id     string
	res    core.Resources
	params types.ButtonParams
	pin    core.GPIOHandle
	stream core.GPIOEdgeStream
	done   chan struct{}
}

type builder struct{}

func init() { core.RegisterBuilder(driverName, builder{}) }

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.DecodeParams[types.ButtonParams](in.Params)
	if err != nil {
		return nil, err
	}
	return &device{id: in.ID, res: in.Res, params: p}, nil
}

func (d *device) ID() string { return d.id }

func (d *device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Kind: types.KindButton,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        driverName,
			Detail:        types.ButtonInfo{Pin: d.params.Pin},
		},
	}}
}

func (d *device) pull() core.Pull {
	switch d.params.Pull {
	case "down":
		return core.PullDown
	case "none":
		return core.PullNone
	default:
		return core.PullUp
	}
}

func (d *device) debounce() time.Duration {
	if d.params.DebounceMs > 0 {
		return time.Duration(d.params.DebounceMs) * time.Millisecond
	}
	return defaultDebounce
}

func (d *device) pressed(level bool) bool {
	return level != d.params.Invert
}

func (d *device) Init(ctx context.Context) error {
	pin, err := d.res.Reg.ClaimPin(d.id, d.params.Pin)
	if err != nil {
		return err
	}
	if err := pin.ConfigureInput(d.pull()); err != nil {
		d.res.Reg.ReleasePin(d.id, d.params.Pin)
		return err
	}
	stream, err := d.res.Reg.SubscribeGPIOEdges(d.id, d.params.Pin, core.EdgeBoth, d.debounce(), 4)
	if err != nil {
		d.res.Reg.ReleasePin(d.id, d.params.Pin)
		return err
	}
	d.pin = pin
	d.stream = stream
	d.done = make(chan struct{})

	go d.pump()
	return nil
}

// pump forwards debounced edges until the stream closes.
func (d *device) pump() {
	defer close(d.done)
	for ev := range d.stream.Events() {
		d.publish(d.pressed(ev.Level), ev.TSms)
	}
}

func (d *device) publish(pressed bool, tsms int64) {
	addr := d.addr()
	tag := "released"
	if pressed {
		tag = "pressed"
	}
	d.res.Pub.Emit(core.Event{
		Addr:     addr,
		Payload:  types.ButtonValue{Pressed: pressed},
		TSms:     tsms,
		IsEvent:  true,
		EventTag: tag,
	})
	d.res.Pub.Emit(core.Event{
		Addr:    addr,
		Payload: types.ButtonValue{Pressed: pressed},
		TSms:    tsms,
	})
}

func (d *device) addr() core.CapAddr {
	return core.CapAddr{Domain: "io", Kind: string(types.KindButton), Name: d.id}
}

func (d *device) Control(addr core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "read":
		d.res.Pub.Emit(core.Event{
			Addr:    addr,
			Payload: types.ButtonValue{Pressed: d.pressed(d.pin.Get())},
			TSms:    timex.NowMs(),
		})
	default:
		return core.EnqueueResult{Error: errcode.Unsupported}, nil
	}
	return core.EnqueueResult{OK: true}, nil
}

func (d *device) Close() error {
	if d.stream != nil {
		d.res.Reg.UnsubscribeGPIOEdges(d.id, d.params.Pin)
		<-d.done
		d.stream = nil
	}
	if d.pin != nil {
		d.res.Reg.ReleasePin(d.id, d.params.Pin)
		d.pin = nil
	}
	return nil
}
