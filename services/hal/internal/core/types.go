package core

import (
	"context"
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"supermini-go/errcode"
	"supermini-go/types"
)

// ---- Capability & device model ----

// CapAddr is the public address of one capability under hal/cap/….
type CapAddr struct {
	Domain string
	Kind   string
	Name   string
}

type CapabilitySpec struct {
	Domain string // defaulted from the kind when empty
	Kind   types.Kind
	Name   string // defaulted to the device ID when empty
	Info   types.Info
}

// EnqueueResult is the synchronous outcome of a control verb.
type EnqueueResult struct {
	OK    bool
	Error errcode.Code
}

type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	Control(addr CapAddr, verb string, payload any) (EnqueueResult, error)
	Close() error // release claimed resources
}

// ---- GPIO handles ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// GPIOHandle is an owned, configured pin. It deliberately has no Toggle:
// output devices track their own last-commanded level.
type GPIOHandle interface {
	Number() int
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
}

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func EdgeToString(e Edge) string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// IRQPin extends GPIOHandle with interrupts.
type IRQPin interface {
	GPIOHandle
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// EdgeEvent is a debounced level change delivered to a subscriber.
type EdgeEvent struct {
	Level bool
	Edge  Edge
	TSms  int64
}

type GPIOEdgeStream interface {
	Events() <-chan EdgeEvent
	Close()
}

// ---- Timing ----

// Delayer provides blocking waits; on MCU builds it must be accurate to
// the sub-microsecond range for the strip transmitter.
type Delayer interface {
	Delay(d time.Duration)
}

// ---- Unified resource registry ----

type ResourceRegistry interface {
	// GPIO: at most one owner per pin.
	ClaimPin(devID string, pin int) (GPIOHandle, error)
	ReleasePin(devID string, pin int)

	// I2C buses are shared; the claim only records usage.
	ClaimI2C(devID, busID string) (drivers.I2C, error)
	ReleaseI2C(devID, busID string)

	// Edge streams require the pin to be claimed by devID first.
	SubscribeGPIOEdges(devID string, pin int, edge Edge, debounce time.Duration, buf int) (GPIOEdgeStream, error)
	UnsubscribeGPIOEdges(devID string, pin int)
}

// Short error codes surfaced by registries.
var (
	ErrUnknownPin = errors.New("unknown_pin")
	ErrPinInUse   = errors.New("pin_in_use")
	ErrNotOwner   = errors.New("not_owner")
	ErrUnknownBus = errors.New("unknown_bus")
	ErrNoIRQ      = errors.New("no_irq")
)

// ---- Device → HAL telemetry (single shape) ----
// By default an Event is a value-like update published retained under
// …/value. IsEvent selects the non-retained …/event topic instead. A
// non-empty Err publishes only …/status=degraded.

type Event struct {
	Addr     CapAddr
	Payload  any
	TSms     int64
	Err      string
	IsEvent  bool
	EventTag string // optional subtopic for events, e.g. "pressed"
}

// EventEmitter is provided by HAL; devices use it to emit values/events.
// Emit must be non-blocking; false indicates a drop under pressure.
type EventEmitter interface {
	Emit(ev Event) bool
}

// ---- HAL-injected resources ----

type Resources struct {
	Reg   ResourceRegistry
	Pub   EventEmitter
	Delay Delayer
}

type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}
