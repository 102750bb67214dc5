// Package hal runs the hardware abstraction service: it builds devices
// from retained config, owns all pin/bus resources, and exposes every
// capability over the bus.
//
// Importing this package pulls in no concrete devices; main registers
// them by importing the device packages for their init side effects.
package hal

import (
	"context"

	"supermini-go/bus"
	"supermini-go/services/hal/internal/core"
	"supermini-go/services/hal/internal/gpioirq"
	"supermini-go/services/hal/internal/platform"
)

// Options lets hosts and tests replace the hardware bindings. Zero-value
// fields fall back to the platform defaults for the current build.
type Options struct {
	Pins  platform.PinProvider
	Buses platform.I2CProvider
	Delay core.Delayer
}

// Run starts the HAL with platform defaults and blocks until ctx ends.
func Run(ctx context.Context, conn *bus.Connection) {
	RunWith(ctx, conn, Options{})
}

// RunWith starts the HAL with explicit bindings and blocks until ctx ends.
func RunWith(ctx context.Context, conn *bus.Connection, opts Options) {
	if opts.Pins == nil {
		opts.Pins = platform.DefaultPins()
	}
	if opts.Buses == nil {
		opts.Buses = platform.DefaultBuses()
	}
	if opts.Delay == nil {
		opts.Delay = platform.DefaultDelayer()
	}

	irq := gpioirq.NewWorker(16)
	go irq.Run(ctx)

	reg := platform.NewRegistry(opts.Pins, opts.Buses, irq)
	h := core.New(conn, core.Resources{Reg: reg, Delay: opts.Delay})
	h.Run(ctx)
}
