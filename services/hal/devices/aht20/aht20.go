// Package aht20 exposes the AHT20 driver as temperature and humidity
// capabilities. A single "read" performs one conversion and publishes
// both values.
package aht20

import (
	"context"

	drv "supermini-go/drivers/aht20"
	"supermini-go/errcode"
	"supermini-go/services/hal/internal/core"
	"supermini-go/types"
	"supermini-go/x/timex"
)

const driverName = "aht20"

type device struct {
	id     string
	res    core.Resources
	params types.I2CSensorParams
	sensor *drv.Device
}

type builder struct{}

func init() { core.RegisterBuilder(driverName, builder{}) }

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.DecodeParams[types.I2CSensorParams](in.Params)
	if err != nil {
		return nil, err
	}
	if p.Bus == "" {
		p.Bus = "i2c0"
	}
	return &device{id: in.ID, res: in.Res, params: p}, nil
}

func (d *device) ID() string { return d.id }

func (d *device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{
		{
			Kind: types.KindTemperature,
			Info: types.Info{SchemaVersion: 1, Driver: driverName,
				Detail: types.TemperatureInfo{Sensor: driverName, Addr: drv.Address, Bus: d.params.Bus}},
		},
		{
			Kind: types.KindHumidity,
			Info: types.Info{SchemaVersion: 1, Driver: driverName,
				Detail: types.HumidityInfo{Sensor: driverName, Addr: drv.Address, Bus: d.params.Bus}},
		},
	}
}

func (d *device) Init(ctx context.Context) error {
	bus, err := d.res.Reg.ClaimI2C(d.id, d.params.Bus)
	if err != nil {
		return err
	}
	d.sensor = drv.New(bus)
	if err := d.sensor.Configure(); err != nil {
		d.res.Reg.ReleaseI2C(d.id, d.params.Bus)
		d.sensor = nil
		return &errcode.E{C: errcode.Error, Op: "aht20.configure", Err: err}
	}
	return nil
}

func (d *device) Control(addr core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	if verb != "read" {
		return core.EnqueueResult{Error: errcode.Unsupported}, nil
	}
	var s drv.Sample
	if err := d.sensor.Read(&s); err != nil {
		code := errcode.Error
		if err == drv.ErrTimeout {
			code = errcode.Timeout
		}
		return core.EnqueueResult{}, &errcode.E{C: code, Op: "aht20.read", Err: err}
	}

	now := timex.NowMs()
	d.res.Pub.Emit(core.Event{
		Addr:    core.CapAddr{Domain: "env", Kind: string(types.KindTemperature), Name: d.id},
		Payload: types.TemperatureValue{DeciC: s.DeciCelsius()},
		TSms:    now,
	})
	d.res.Pub.Emit(core.Event{
		Addr:    core.CapAddr{Domain: "env", Kind: string(types.KindHumidity), Name: d.id},
		Payload: types.HumidityValue{RHx100: s.RHx100()},
		TSms:    now,
	})
	return core.EnqueueResult{OK: true}, nil
}

func (d *device) Close() error {
	if d.sensor != nil {
		d.res.Reg.ReleaseI2C(d.id, d.params.Bus)
		d.sensor = nil
	}
	return nil
}
