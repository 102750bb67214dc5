package types

// ------------------------
// LED (boolean output on a GPIO)
// ------------------------

type LEDParams struct {
	Pin       int  `json:"pin"`
	Initial   bool `json:"initial,omitempty"`
	ActiveLow bool `json:"active_low,omitempty"`
}

type LEDInfo struct {
	Pin int `json:"pin"`
}

type LEDValue struct {
	On bool `json:"on"`
}

type LEDSet struct {
	On bool `json:"on"`
}

// ------------------------
// Button
// ------------------------

type ButtonParams struct {
	Pin        int    `json:"pin"`
	Pull       string `json:"pull,omitempty"`   // "up" | "down" | "none"
	Invert     bool   `json:"invert,omitempty"` // active-low wiring
	DebounceMs int    `json:"debounce_ms,omitempty"`
}

type ButtonInfo struct {
	Pin int `json:"pin"`
}

type ButtonValue struct {
	Pressed bool `json:"pressed"`
}

// ------------------------
// Addressable LED strip
// ------------------------

type StripParams struct {
	Pin    int    `json:"pin"`
	Pixels int    `json:"pixels"`
	Mode   string `json:"mode,omitempty"` // "rgb" | "rgbw"
	Chip   string `json:"chip,omitempty"` // "ws2812" | "sk6812"
}

type StripInfo struct {
	Pin    int    `json:"pin"`
	Pixels int    `json:"pixels"`
	Mode   string `json:"mode"`
	Chip   string `json:"chip"`
}

// StripFrame is the control payload for verb "frame": one slice per pixel,
// each of the strip's channel count, in chain order.
type StripFrame struct {
	Pixels [][]uint8 `json:"pixels"`
}

// StripFill is the control payload for verb "fill". W is ignored on RGB
// strips.
type StripFill struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	W uint8 `json:"w,omitempty"`
}

// StripValue is the retained value: the last transmitted frame.
type StripValue struct {
	Pixels [][]uint8 `json:"pixels"`
}
