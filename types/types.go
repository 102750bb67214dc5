package types

// ------------------------
// Common HAL state (retained)
// ------------------------

type HALState struct {
	Level  string `json:"level"`  // "idle", "ready", "stopped"
	Status string `json:"status"` // freeform short code
	TSms   int64  `json:"ts_ms"`
}

// Link is the link/state reported for a capability.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityStatus struct {
	Link  Link   `json:"link"`
	TSms  int64  `json:"ts_ms"`
	Error string `json:"error,omitempty"` // machine-readable short code
}

// ------------------------
// Capability kinds
// ------------------------

type Kind string

const (
	KindLED         Kind = "led"
	KindStrip       Kind = "strip"
	KindButton      Kind = "button"
	KindTemperature Kind = "temperature"
	KindHumidity    Kind = "humidity"
	KindPressure    Kind = "pressure"
)

// Info is the envelope each capability exposes (retained).
type Info struct {
	SchemaVersion int         `json:"schema_version"`
	Driver        string      `json:"driver"`
	Detail        interface{} `json:"detail,omitempty"` // one of the *Info types
}

// ------------------------
// HAL configuration (topic "config/hal")
// ------------------------

type HALConfig struct {
	Devices []HALDevice `json:"devices" yaml:"devices"`
	Pollers []PollSpec  `json:"pollers,omitempty" yaml:"pollers,omitempty"`
}

type HALDevice struct {
	ID     string      `json:"id" yaml:"id"`         // logical device id, e.g. "led0"
	Type   string      `json:"type" yaml:"type"`     // e.g. "gpio_dout"
	Params interface{} `json:"params" yaml:"params"` // device-specific params (JSON-like)
}

// PollSpec is a declarative, config-time schedule. HAL applies these when a
// config is applied; the verb is dispatched to the owning device.
type PollSpec struct {
	Domain     string `json:"domain" yaml:"domain"`           // e.g. "env"
	Kind       Kind   `json:"kind" yaml:"kind"`               // e.g. "temperature"
	Name       string `json:"name" yaml:"name"`               // e.g. "board"
	Verb       string `json:"verb" yaml:"verb"`               // typically "read"
	IntervalMs uint32 `json:"interval_ms" yaml:"interval_ms"` // >0
	JitterMs   uint16 `json:"jitter_ms" yaml:"jitter_ms"`     // uniform [0..JitterMs]
}

// ------------------------
// Generic replies
// ------------------------

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
