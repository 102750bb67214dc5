// Command supermini is the firmware entry point: bus, config,
// heartbeat and the HAL with the full device set.
//
// Flash with the esp32c3 machine bindings; on a host it runs against
// the fake platform, which is handy for a quick smoke run.
package main

import (
	"context"

	"supermini-go/bus"
	"supermini-go/services/config"
	"supermini-go/services/hal"
	"supermini-go/services/heartbeat"

	_ "supermini-go/services/hal/devices/aht20"
	_ "supermini-go/services/hal/devices/bmp280"
	_ "supermini-go/services/hal/devices/gpio_button"
	_ "supermini-go/services/hal/devices/gpio_dout"
	_ "supermini-go/services/hal/devices/ledstrip"
)

func main() {
	ctx := context.Background()
	b := bus.NewBus(16)

	go heartbeat.Run(ctx, b.NewConnection("hb"), heartbeat.Options{ID: "supermini"})
	go func() {
		if err := config.Run(ctx, b.NewConnection("config")); err != nil {
			println("config:", err.Error())
		}
	}()

	// Blocks forever; every capability is reachable over the bus.
	hal.Run(ctx, b.NewConnection("hal"))
}
