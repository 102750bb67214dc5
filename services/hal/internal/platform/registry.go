package platform

import (
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"supermini-go/services/hal/internal/core"
	"supermini-go/services/hal/internal/gpioirq"
)

// PinProvider hands out pin handles for a board. Providers are dumb; all
// ownership bookkeeping lives in the Registry.
type PinProvider interface {
	Pin(num int) (core.IRQPin, error)
}

// I2CProvider hands out shared bus handles by ID ("i2c0", …).
type I2CProvider interface {
	Bus(id string) (drivers.I2C, error)
}

type pinClaim struct {
	owner string
	pin   core.IRQPin
}

// Registry implements core.ResourceRegistry: exclusive pins, shared I2C,
// and edge streams gated on pin ownership.
type Registry struct {
	mu    sync.Mutex
	pins  PinProvider
	buses I2CProvider
	irq   *gpioirq.Worker

	claimed  map[int]pinClaim
	watching map[int]string // pin -> devID holding the edge stream
}

func NewRegistry(pins PinProvider, buses I2CProvider, irq *gpioirq.Worker) *Registry {
	return &Registry{
		pins:     pins,
		buses:    buses,
		irq:      irq,
		claimed:  make(map[int]pinClaim),
		watching: make(map[int]string),
	}
}

func (r *Registry) ClaimPin(devID string, pin int) (core.GPIOHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.claimed[pin]; ok {
		if c.owner == devID {
			return c.pin, nil
		}
		return nil, core.ErrPinInUse
	}
	h, err := r.pins.Pin(pin)
	if err != nil {
		return nil, err
	}
	r.claimed[pin] = pinClaim{owner: devID, pin: h}
	return h, nil
}

func (r *Registry) ReleasePin(devID string, pin int) {
	r.mu.Lock()
	c, ok := r.claimed[pin]
	if !ok || c.owner != devID {
		r.mu.Unlock()
		return
	}
	watched := r.watching[pin] == devID
	delete(r.claimed, pin)
	delete(r.watching, pin)
	r.mu.Unlock()

	if watched && r.irq != nil {
		r.irq.Unwatch(pin)
	}
}

func (r *Registry) ClaimI2C(devID, busID string) (drivers.I2C, error) {
	if r.buses == nil {
		return nil, core.ErrUnknownBus
	}
	return r.buses.Bus(busID)
}

func (r *Registry) ReleaseI2C(devID, busID string) {}

func (r *Registry) SubscribeGPIOEdges(devID string, pin int, edge core.Edge, debounce time.Duration, buf int) (core.GPIOEdgeStream, error) {
	if r.irq == nil {
		return nil, core.ErrNoIRQ
	}
	r.mu.Lock()
	c, ok := r.claimed[pin]
	if !ok || c.owner != devID {
		r.mu.Unlock()
		return nil, core.ErrNotOwner
	}
	if _, busy := r.watching[pin]; busy {
		r.mu.Unlock()
		return nil, core.ErrPinInUse
	}
	r.watching[pin] = devID
	r.mu.Unlock()

	s, err := r.irq.Watch(c.pin, edge, debounce, buf)
	if err != nil {
		r.mu.Lock()
		delete(r.watching, pin)
		r.mu.Unlock()
		return nil, err
	}
	return s, nil
}

func (r *Registry) UnsubscribeGPIOEdges(devID string, pin int) {
	r.mu.Lock()
	if r.watching[pin] != devID {
		r.mu.Unlock()
		return
	}
	delete(r.watching, pin)
	r.mu.Unlock()
	if r.irq != nil {
		r.irq.Unwatch(pin)
	}
}
