//go:build !esp32c3

package platform

import (
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"supermini-go/services/hal/internal/core"
)

// Host build: everything is faked so services and devices can run in
// ordinary Go tests and in the board simulator.

const hostPinCount = 22 // GPIO0..GPIO21

// FakePin emulates a GPIO with interrupt loopback: driving the input
// level fires the armed handler, like hardware would.
type FakePin struct {
	mu      sync.Mutex
	num     int
	level   bool
	output  bool
	pull    core.Pull
	handler func()

	// History of output levels written via Set, for assertions.
	writes []bool
}

func (p *FakePin) Number() int { return p.num }

func (p *FakePin) ConfigureInput(pull core.Pull) error {
	p.mu.Lock()
	p.output = false
	p.pull = pull
	if pull == core.PullUp {
		p.level = true
	} else {
		p.level = false
	}
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.output = true
	p.level = initial
	p.writes = append(p.writes, initial)
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.writes = append(p.writes, level)
	p.mu.Unlock()
}

func (p *FakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *FakePin) SetIRQ(edge core.Edge, handler func()) error {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.handler = nil
	p.mu.Unlock()
	return nil
}

// Drive sets the externally-observed level and fires the interrupt
// handler, emulating a signal change on the physical pin.
func (p *FakePin) Drive(level bool) {
	p.mu.Lock()
	p.level = level
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h()
	}
}

// Writes returns a copy of the output level history.
func (p *FakePin) Writes() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]bool, len(p.writes))
	copy(out, p.writes)
	return out
}

// FakePins is a PinProvider over a fixed set of FakePins.
type FakePins struct {
	mu   sync.Mutex
	pins map[int]*FakePin
}

func NewFakePins() *FakePins {
	return &FakePins{pins: make(map[int]*FakePin)}
}

func (f *FakePins) Pin(num int) (core.IRQPin, error) {
	if num < 0 || num >= hostPinCount {
		return nil, core.ErrUnknownPin
	}
	return f.Get(num), nil
}

// Get returns the concrete fake, creating it on first use. Tests use it
// to drive inputs and inspect outputs.
func (f *FakePins) Get(num int) *FakePin {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[num]
	if !ok {
		p = &FakePin{num: num}
		f.pins[num] = p
	}
	return p
}

// FakeBuses is an I2CProvider over injected bus fakes.
type FakeBuses struct {
	mu    sync.Mutex
	buses map[string]drivers.I2C
}

func NewFakeBuses() *FakeBuses {
	return &FakeBuses{buses: make(map[string]drivers.I2C)}
}

func (f *FakeBuses) Add(id string, bus drivers.I2C) {
	f.mu.Lock()
	f.buses[id] = bus
	f.mu.Unlock()
}

func (f *FakeBuses) Bus(id string) (drivers.I2C, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buses[id]
	if !ok {
		return nil, core.ErrUnknownBus
	}
	return b, nil
}

// sleepDelayer is fine on a host: nobody checks nanosecond pulse shape
// against a wall clock here.
type sleepDelayer struct{}

func (sleepDelayer) Delay(d time.Duration) { time.Sleep(d) }

// DefaultPins, DefaultBuses and DefaultDelayer are what hal.Run wires
// when the caller injects nothing.
func DefaultPins() PinProvider     { return NewFakePins() }
func DefaultBuses() I2CProvider    { return NewFakeBuses() }
func DefaultDelayer() core.Delayer { return sleepDelayer{} }
