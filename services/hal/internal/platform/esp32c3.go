//go:build esp32c3

package platform

import (
	"machine"
	"time"

	"tinygo.org/x/drivers"

	"supermini-go/services/hal/internal/core"
)

// ESP32-C3 build: handles wrap the machine package.

const mcuPinCount = 22 // GPIO0..GPIO21

type mcuPin struct {
	pin machine.Pin
}

func (p *mcuPin) Number() int { return int(p.pin) }

func (p *mcuPin) ConfigureInput(pull core.Pull) error {
	mode := machine.PinInput
	switch pull {
	case core.PullUp:
		mode = machine.PinInputPullup
	case core.PullDown:
		mode = machine.PinInputPulldown
	}
	p.pin.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (p *mcuPin) ConfigureOutput(initial bool) error {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.pin.Set(initial)
	return nil
}

func (p *mcuPin) Set(level bool) { p.pin.Set(level) }
func (p *mcuPin) Get() bool      { return p.pin.Get() }

func (p *mcuPin) SetIRQ(edge core.Edge, handler func()) error {
	var change machine.PinChange
	switch edge {
	case core.EdgeRising:
		change = machine.PinRising
	case core.EdgeFalling:
		change = machine.PinFalling
	default:
		change = machine.PinRising | machine.PinFalling
	}
	return p.pin.SetInterrupt(change, func(machine.Pin) { handler() })
}

func (p *mcuPin) ClearIRQ() error {
	return p.pin.SetInterrupt(0, nil)
}

type mcuPins struct{}

func (mcuPins) Pin(num int) (core.IRQPin, error) {
	if num < 0 || num >= mcuPinCount {
		return nil, core.ErrUnknownPin
	}
	return &mcuPin{pin: machine.Pin(num)}, nil
}

// I2C0 on the SuperMini default header pins.
const (
	i2c0SDA = machine.GPIO6
	i2c0SCL = machine.GPIO7
)

type mcuBuses struct {
	i2c0Ready bool
}

func (b *mcuBuses) Bus(id string) (drivers.I2C, error) {
	if id != "i2c0" {
		return nil, core.ErrUnknownBus
	}
	if !b.i2c0Ready {
		err := machine.I2C0.Configure(machine.I2CConfig{
			SDA:       i2c0SDA,
			SCL:       i2c0SCL,
			Frequency: 400 * machine.KHz,
		})
		if err != nil {
			return nil, err
		}
		b.i2c0Ready = true
	}
	return machine.I2C0, nil
}

// spinDelayer busy-waits for short intervals. time.Sleep on the MCU
// yields to the scheduler and cannot hold sub-microsecond pulse widths.
type spinDelayer struct {
	loopsPerUs uint32
}

func newSpinDelayer() spinDelayer {
	// One iteration of the spin loop is roughly 4 cycles on this core.
	return spinDelayer{loopsPerUs: uint32(machine.CPUFrequency() / 4_000_000)}
}

var spinSink uint32

//go:noinline
func spin(n uint32) {
	s := spinSink
	for i := uint32(0); i < n; i++ {
		s++
	}
	spinSink = s
}

func (d spinDelayer) Delay(t time.Duration) {
	if t >= time.Millisecond {
		time.Sleep(t)
		return
	}
	ns := uint32(t.Nanoseconds())
	spin(ns * d.loopsPerUs / 1000)
}

func DefaultPins() PinProvider     { return mcuPins{} }
func DefaultBuses() I2CProvider    { return &mcuBuses{} }
func DefaultDelayer() core.Delayer { return newSpinDelayer() }
