// Package sk6812 drives WS2812/SK6812 family addressable LED strips by
// bit-banging the single-wire protocol over one output pin.
//
// Each bit is one high pulse followed by one low pulse; the pulse widths
// distinguish 0 from 1 while the total bit period stays constant so the
// LEDs' clock recovery keeps lock. After the last bit the line is held low
// for the reset interval, which latches the frame into the chain.
//
// WriteFrame blocks the calling goroutine for the whole transmission and
// cannot be cancelled mid-frame: an interrupted frame is silently corrupt
// on the wire and has to be retransmitted from the start. Callers on MCU
// builds must keep scheduling latency inside the bit-period tolerance for
// the duration of the call.
package sk6812

import (
	"errors"
	"time"
)

// Pin is the output line the device owns for the duration of its lifetime.
type Pin interface {
	Set(high bool)
}

// Delayer provides the blocking waits used for every pulse phase and for
// the reset interval. Implementations must be reentrant-safe.
type Delayer interface {
	Delay(d time.Duration)
}

// Mode selects the per-pixel channel count fixed at construction time.
type Mode uint8

const (
	ModeRGB  Mode = iota // 3 channels
	ModeRGBW             // 4 channels
)

// Channels returns the per-pixel channel count for the mode.
func (m Mode) Channels() int {
	if m == ModeRGBW {
		return 4
	}
	return 3
}

func (m Mode) String() string {
	if m == ModeRGBW {
		return "rgbw"
	}
	return "rgb"
}

// Pixel is one colour in R,G,B(,W) order. Its length must equal the
// device mode's channel count.
type Pixel []uint8

// RGB builds a 3-channel pixel.
func RGB(r, g, b uint8) Pixel { return Pixel{r, g, b} }

// RGBW builds a 4-channel pixel.
func RGBW(r, g, b, w uint8) Pixel { return Pixel{r, g, b, w} }

// Timings is the pulse-width table for one LED family.
type Timings struct {
	T0H, T0L time.Duration // "0" bit: high then low
	T1H, T1L time.Duration // "1" bit: high then low
	Reset    time.Duration // low hold that latches the frame
}

// Datasheet timing tables. Both hold T0H+T0L == T1H+T1L.
var (
	// TimingsWS2812 suits WS2812/WS2812B (1.25 µs bit period).
	TimingsWS2812 = Timings{
		T0H: 400 * time.Nanosecond, T0L: 850 * time.Nanosecond,
		T1H: 800 * time.Nanosecond, T1L: 450 * time.Nanosecond,
		Reset: 50 * time.Microsecond,
	}
	// TimingsSK6812 suits SK6812 and SK6812RGBW (1.2 µs bit period).
	TimingsSK6812 = Timings{
		T0H: 300 * time.Nanosecond, T0L: 900 * time.Nanosecond,
		T1H: 600 * time.Nanosecond, T1L: 600 * time.Nanosecond,
		Reset: 80 * time.Microsecond,
	}
)

// Protocol constraints checked by New.
const (
	periodTolerance = 150 * time.Nanosecond
	minReset        = 50 * time.Microsecond
)

var (
	// ErrInvalidFrame reports a pixel whose channel count does not match
	// the device mode. Detected before any pin activity.
	ErrInvalidFrame = errors.New("sk6812: invalid frame")
	// ErrBadTimings reports a timing table that breaks the bit-period
	// invariant or the minimum reset hold.
	ErrBadTimings = errors.New("sk6812: bad timings")
)

// Device is a frame transmitter bound to one pin. It is not safe for
// concurrent use; exclusive pin ownership is the caller's contract.
type Device struct {
	pin   Pin
	delay Delayer
	mode  Mode
	t     Timings
}

// New builds a transmitter. The pin must already be configured as an
// output and driven low. The timing table is validated: each phase must
// be positive, the 0 and 1 bit periods must agree within tolerance, and
// the reset hold must be at least 50 µs.
func New(pin Pin, delay Delayer, mode Mode, t Timings) (*Device, error) {
	if t.T0H <= 0 || t.T0L <= 0 || t.T1H <= 0 || t.T1L <= 0 {
		return nil, ErrBadTimings
	}
	p0 := t.T0H + t.T0L
	p1 := t.T1H + t.T1L
	if diff := p0 - p1; diff > periodTolerance || diff < -periodTolerance {
		return nil, ErrBadTimings
	}
	if t.Reset < minReset {
		return nil, ErrBadTimings
	}
	return &Device{pin: pin, delay: delay, mode: mode, t: t}, nil
}

// Mode returns the channel mode fixed at construction.
func (d *Device) Mode() Mode { return d.mode }

// BitPeriod returns the nominal duration of one transmitted bit.
func (d *Device) BitPeriod() time.Duration { return d.t.T0H + d.t.T0L }

// WriteFrame serialises the frame in chain order and latches it. Every
// pixel is validated against the device mode before the first pulse; on
// ErrInvalidFrame the pin is never touched. There is no readback and no
// mid-transmission failure path.
func (d *Device) WriteFrame(frame []Pixel) error {
	ch := d.mode.Channels()
	for _, px := range frame {
		if len(px) != ch {
			return ErrInvalidFrame
		}
	}
	for _, px := range frame {
		// Wire order is G,R,B(,W) regardless of the Pixel layout.
		d.writeByte(px[1])
		d.writeByte(px[0])
		d.writeByte(px[2])
		if ch == 4 {
			d.writeByte(px[3])
		}
	}
	// Line is already low after the final bit; hold it for the latch.
	d.delay.Delay(d.t.Reset)
	return nil
}

// writeByte emits the eight bits of b, most significant first.
func (d *Device) writeByte(b uint8) {
	for i := 7; i >= 0; i-- {
		if b&(1<<uint(i)) != 0 {
			d.pin.Set(true)
			d.delay.Delay(d.t.T1H)
			d.pin.Set(false)
			d.delay.Delay(d.t.T1L)
		} else {
			d.pin.Set(true)
			d.delay.Delay(d.t.T0H)
			d.pin.Set(false)
			d.delay.Delay(d.t.T0L)
		}
	}
}

// Clear transmits an all-off frame of n pixels.
func (d *Device) Clear(n int) error {
	frame := make([]Pixel, n)
	for i := range frame {
		frame[i] = make(Pixel, d.mode.Channels())
	}
	return d.WriteFrame(frame)
}

// SleepDelayer implements Delayer with time.Sleep. Adequate on hosts and
// simulators; MCU builds should prefer the platform delayer.
type SleepDelayer struct{}

func (SleepDelayer) Delay(d time.Duration) { time.Sleep(d) }
