//go:build !esp32c3

package hal

import "supermini-go/services/hal/internal/platform"

// Host-side fakes re-exported for the board simulator and integration
// tests, which cannot import the internal packages directly.
type (
	FakePins  = platform.FakePins
	FakePin   = platform.FakePin
	FakeBuses = platform.FakeBuses
)

func NewFakePins() *FakePins   { return platform.NewFakePins() }
func NewFakeBuses() *FakeBuses { return platform.NewFakeBuses() }
