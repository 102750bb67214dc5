// Package aht20 provides a driver for the AHT20 temperature/humidity
// sensor. It exposes a split-phase measurement API:
//
//	d.Trigger()              // start a conversion (fast register write)
//	err := d.Collect(&s)     // fetch when ready; ErrNotReady while busy
//
// For convenience, d.Read performs trigger plus bounded polling.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided, without releasing the bus.
//
// The driver avoids floating point; conversions are fixed-point.
package aht20

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// Address is the only I2C address the AHT20 responds on.
const Address = 0x38

// Commands and status bits per datasheet.
const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdSoftReset  = 0xBA
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08
)

var (
	ErrTimeout  = errors.New("aht20: timeout")
	ErrNotReady = errors.New("aht20: not ready")
)

// Conversion takes ~80 ms after Trigger.
const (
	ConversionTime = 80 * time.Millisecond
	pollInterval   = 15 * time.Millisecond
	readTimeout    = 250 * time.Millisecond
)

// Device wraps an I2C connection to an AHT20. The bus must already be
// configured.
type Device struct {
	bus drivers.I2C
	buf [7]byte // reused to avoid per-read allocations
}

// New creates the device handle without touching the hardware.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus}
}

// Configure initialises the sensor if it is not yet calibrated. The
// datasheet asks for ~10 ms settling after the init command.
func (d *Device) Configure() error {
	st, err := d.Status()
	if err == nil && st&statusCalibrated != 0 {
		return nil
	}
	if err := d.bus.Tx(Address, []byte{cmdInitialize, 0x08, 0x00}, nil); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

// Reset issues a soft reset. Allow ~20 ms before the next command.
func (d *Device) Reset() error {
	return d.bus.Tx(Address, []byte{cmdSoftReset}, nil)
}

// Status reads the status byte.
func (d *Device) Status() (byte, error) {
	b := d.buf[:1]
	if err := d.bus.Tx(Address, []byte{cmdStatus}, b); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Trigger starts a conversion. The sensor needs ConversionTime before
// Collect will succeed.
func (d *Device) Trigger() error {
	return d.bus.Tx(Address, []byte{cmdTrigger, 0x33, 0x00}, nil)
}

// Sample holds one raw measurement.
type Sample struct {
	RawHumidity uint32 // 20 bits
	RawTemp     uint32 // 20 bits
}

// Collect reads one measurement. ErrNotReady is returned while the sensor
// is still converting or reports itself uncalibrated.
func (d *Device) Collect(out *Sample) error {
	data := d.buf[:]
	if err := d.bus.Tx(Address, nil, data); err != nil {
		return err
	}
	if data[0]&statusCalibrated == 0 || data[0]&statusBusy != 0 {
		return ErrNotReady
	}
	out.RawHumidity = uint32(data[1])<<12 | uint32(data[2])<<4 | uint32(data[3])>>4
	out.RawTemp = uint32(data[3]&0x0F)<<16 | uint32(data[4])<<8 | uint32(data[5])
	return nil
}

// Read performs a full cycle: Trigger, wait, then poll Collect until it
// succeeds or the timeout elapses.
func (d *Device) Read(out *Sample) error {
	if err := d.Trigger(); err != nil {
		return err
	}
	time.Sleep(ConversionTime)
	deadline := time.Now().Add(readTimeout)
	for {
		err := d.Collect(out)
		switch err {
		case nil:
			return nil
		case ErrNotReady:
			if time.Now().After(deadline) {
				return ErrTimeout
			}
			time.Sleep(pollInterval)
		default:
			return err
		}
	}
}

// DeciCelsius returns the temperature in tenths of °C.
func (s Sample) DeciCelsius() int16 {
	return int16((int32(s.RawTemp)*2000)>>20 - 500)
}

// RHx100 returns relative humidity in hundredths of %RH (0..10000).
// raw*10000/2^20 == raw*625/2^16, which fits 32-bit intermediates.
func (s Sample) RHx100() uint16 {
	return uint16((uint32(s.RawHumidity) * 625) >> 16)
}
