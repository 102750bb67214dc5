// Package bmp280 exposes the BMP280 driver as temperature and pressure
// capabilities.
package bmp280

import (
	"context"

	drv "supermini-go/drivers/bmp280"
	"supermini-go/errcode"
	"supermini-go/services/hal/internal/core"
	"supermini-go/types"
	"supermini-go/x/timex"
)

const driverName = "bmp280"

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
	var addr uint16
	if d.sensor != nil {
		addr = d.sensor.Address()
	}
	return []core.CapabilitySpec{
		{
			Kind: types.KindTemperature,
			Info: types.Info{SchemaVersion: 1, Driver: driverName,
				Detail: types.TemperatureInfo{Sensor: driverName, Addr: addr, Bus: d.params.Bus}},
		},
		{
			Kind: types.KindPressure,
			Info: types.Info{SchemaVersion: 1, Driver: driverName,
				Detail: types.PressureInfo{Sensor: driverName, Addr: addr, Bus: d.params.Bus}},
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
		return &errcode.E{C: errcode.Error, Op: "bmp280.configure", Err: err}
	}
	return nil
}

func (d *device) Control(addr core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	if verb != "read" {
		return core.EnqueueResult{Error: errcode.Unsupported}, nil
	}
	var s drv.Sample
	if err := d.sensor.Read(&s); err != nil {
		return core.EnqueueResult{}, &errcode.E{C: errcode.Error, Op: "bmp280.read", Err: err}
	}

	now := timex.NowMs()
	d.res.Pub.Emit(core.Event{
		Addr:    core.CapAddr{Domain: "env", Kind: string(types.KindTemperature), Name: d.id},
		Payload: types.TemperatureValue{DeciC: s.DeciCelsius()},
		TSms:    now,
	})
	d.res.Pub.Emit(core.Event{
		Addr:    core.CapAddr{Domain: "env", Kind: string(types.KindPressure), Name: d.id},
		Payload: types.PressureValue{Pa: s.Pa},
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
