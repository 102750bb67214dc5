// Package ledstrip exposes an addressable LED chain as a capability with
// verbs frame, fill and off. Transmission is delegated to drivers/sk6812;
// a rejected frame maps to the invalid_frame error code and leaves the
// wire untouched.
package ledstrip

import (
	"context"

	"supermini-go/drivers/sk6812"
	"supermini-go/errcode"
	"supermini-go/services/hal/internal/core"
	"supermini-go/types"
	"supermini-go/x/timex"
)

const driverName = "ledstrip"

type device struct {
	id     string
	res    core.Resources
	params types.StripParams
	pin    core.GPIOHandle
	strip  *sk6812.Device
	mode   sk6812.Mode
}

type builder struct{}

func init() { core.RegisterBuilder(driverName, builder{}) }

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.DecodeParams[types.StripParams](in.Params)
	if err != nil {
		return nil, err
	}
	if p.Pixels <= 0 {
		return nil, errcode.InvalidParams
	}
	return &device{id: in.ID, res: in.Res, params: p}, nil
}

func (d *device) ID() string { return d.id }

func (d *device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Kind: types.KindStrip,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        driverName,
			Detail: types.StripInfo{
				Pin:    d.params.Pin,
				Pixels: d.params.Pixels,
				Mode:   d.modeOf().String(),
				Chip:   d.chipOf(),
			},
		},
	}}
}

func (d *device) modeOf() sk6812.Mode {
	if d.params.Mode == "rgbw" {
		return sk6812.ModeRGBW
	}
	return sk6812.ModeRGB
}

func (d *device) chipOf() string {
	if d.params.Chip == "sk6812" {
		return "sk6812"
	}
	return "ws2812"
}

func (d *device) timings() sk6812.Timings {
	if d.chipOf() == "sk6812" {
		return sk6812.TimingsSK6812
	}
	return sk6812.TimingsWS2812
}

func (d *device) Init(ctx context.Context) error {
	pin, err := d.res.Reg.ClaimPin(d.id, d.params.Pin)
	if err != nil {
		return err
	}
	if err := pin.ConfigureOutput(false); err != nil {
		d.res.Reg.ReleasePin(d.id, d.params.Pin)
		return err
	}
	d.mode = d.modeOf()
	strip, err := sk6812.New(pin, d.res.Delay, d.mode, d.timings())
	if err != nil {
		d.res.Reg.ReleasePin(d.id, d.params.Pin)
		return err
	}
	d.pin = pin
	d.strip = strip
	return nil
}

func (d *device) Control(addr core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "frame":
		f, code := core.As[types.StripFrame](payload)
		if code != "" {
			return core.EnqueueResult{Error: code}, nil
		}
		return d.transmit(addr, f.Pixels)
	case "fill":
		f, code := core.As[types.StripFill](payload)
		if code != "" {
			return core.EnqueueResult{Error: code}, nil
		}
		return d.transmit(addr, d.filled(f))
	case "off":
		return d.transmit(addr, d.filled(types.StripFill{}))
	default:
		return core.EnqueueResult{Error: errcode.Unsupported}, nil
	}
}

func (d *device) filled(f types.StripFill) [][]uint8 {
	px := make([][]uint8, d.params.Pixels)
	for i := range px {
		if d.mode == sk6812.ModeRGBW {
			px[i] = sk6812.RGBW(f.R, f.G, f.B, f.W)
		} else {
			px[i] = sk6812.RGB(f.R, f.G, f.B)
		}
	}
	return px
}

// transmit validates, writes the frame and publishes it as the retained
// value. The write blocks until the latch interval has elapsed.
func (d *device) transmit(addr core.CapAddr, pixels [][]uint8) (core.EnqueueResult, error) {
	if len(pixels) != d.params.Pixels {
		return core.EnqueueResult{Error: errcode.InvalidFrame}, nil
	}
	frame := make([]sk6812.Pixel, len(pixels))
	for i, px := range pixels {
		frame[i] = sk6812.Pixel(px)
	}
	if err := d.strip.WriteFrame(frame); err != nil {
		if err == sk6812.ErrInvalidFrame {
			return core.EnqueueResult{Error: errcode.InvalidFrame}, nil
		}
		return core.EnqueueResult{}, err
	}
	d.res.Pub.Emit(core.Event{
		Addr:    addr,
		Payload: types.StripValue{Pixels: pixels},
		TSms:    timex.NowMs(),
	})
	return core.EnqueueResult{OK: true}, nil
}

func (d *device) Close() error {
	if d.strip != nil {
		d.strip.Clear(d.params.Pixels)
		d.strip = nil
	}
	if d.pin != nil {
		d.res.Reg.ReleasePin(d.id, d.params.Pin)
		d.pin = nil
	}
	return nil
}
