// Package gpiodout exposes one GPIO as a boolean output capability with
// verbs set, toggle and read. Toggle operates on the last commanded
// logical level tracked in the device; the hardware is never read back.
package gpiodout

import (
	"context"

	"supermini-go/errcode"
	"supermini-go/services/hal/internal/core"
	"supermini-go/types"
	"supermini-go/x/timex"
)

const driverName = "gpio_dout"

type device struct {
	id     string
	res    core.Resources
	params types.LEDParams
	pin    core.GPIOHandle
	level  bool // logical, before active-low inversion
}

type builder struct{}

func init() { core.RegisterBuilder(driverName, builder{}) }

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.DecodeParams[types.LEDParams](in.Params)
	if err != nil {
		return nil, err
	}
	return &device{id: in.ID, res: in.Res, params: p}, nil
}

func (d *device) ID() string { return d.id }

func (d *device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Kind: types.KindLED,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        driverName,
			Detail:        types.LEDInfo{Pin: d.params.Pin},
		},
	}}
}

func (d *device) Init(ctx context.Context) error {
	pin, err := d.res.Reg.ClaimPin(d.id, d.params.Pin)
	if err != nil {
		return err
	}
	d.pin = pin
	d.level = d.params.Initial
	if err := pin.ConfigureOutput(d.physical(d.level)); err != nil {
		d.res.Reg.ReleasePin(d.id, d.params.Pin)
		d.pin = nil
		return err
	}
	return nil
}

// physical maps the logical level onto the wire, honouring active-low.
func (d *device) physical(on bool) bool {
	return on != d.params.ActiveLow
}

func (d *device) Control(addr core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "set":
		v, code := core.As[types.LEDSet](payload)
		if code != "" {
			return core.EnqueueResult{Error: code}, nil
		}
		d.apply(addr, v.On)
	case "toggle":
		d.apply(addr, !d.level)
	case "read":
		d.emit(addr)
	default:
		return core.EnqueueResult{Error: errcode.Unsupported}, nil
	}
	return core.EnqueueResult{OK: true}, nil
}

func (d *device) apply(addr core.CapAddr, on bool) {
	d.level = on
	d.pin.Set(d.physical(on))
	d.emit(addr)
}

func (d *device) emit(addr core.CapAddr) {
	d.res.Pub.Emit(core.Event{
		Addr:    addr,
		Payload: types.LEDValue{On: d.level},
		TSms:    timex.NowMs(),
	})
}

func (d *device) Close() error {
	if d.pin != nil {
		d.pin.Set(d.physical(false))
		d.res.Reg.ReleasePin(d.id, d.params.Pin)
		d.pin = nil
	}
	return nil
}
