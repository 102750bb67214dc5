// Package bmp280 provides a driver for the Bosch BMP280 pressure and
// temperature sensor in normal (continuous) mode.
//
// Compensation uses the datasheet's integer routines: temperature in
// 0.01 °C and pressure in Q24.8 Pa, so no floating point is needed.
package bmp280

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// The BMP280 answers on 0x76, or 0x77 when SDO is pulled high.
const (
	AddressPrimary   = 0x76
	AddressSecondary = 0x77

	chipID = 0x58
)

// Registers.
const (
	regID        = 0xD0
	regReset     = 0xE0
	regStatus    = 0xF3
	regCtrlMeas  = 0xF4
	regConfig    = 0xF5
	regPressMSB  = 0xF7
	regCalibData = 0x88

	resetCmd = 0xB6

	// Normal mode, x4 oversampling for temperature and pressure.
	ctrlNormalX4 = 0xB7
	// Filter coefficient 8, 500 ms standby.
	configFilter8 = 0x50
)

var (
	ErrNotFound = errors.New("bmp280: sensor not found")
	ErrBadChip  = errors.New("bmp280: unexpected chip id")
)

type calibration struct {
	t1     uint16
	t2, t3 int16
	p1     uint16
	p2, p3, p4, p5, p6, p7, p8, p9 int16
}

// Device wraps an I2C connection to a BMP280. The bus must already be
// configured.
type Device struct {
	bus   drivers.I2C
	addr  uint16
	cal   calibration
	tFine int32 // carries temperature into pressure compensation
}

// New creates the device handle without touching the hardware.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, addr: AddressPrimary}
}

// Address returns the address the sensor was detected on.
func (d *Device) Address() uint16 { return d.addr }

// Configure probes both addresses, verifies the chip ID, soft-resets the
// part, loads the calibration block and enters normal mode.
func (d *Device) Configure() error {
	if err := d.detect(); err != nil {
		return err
	}
	if err := d.write(regReset, resetCmd); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)

	var raw [24]byte
	if err := d.bus.Tx(d.addr, []byte{regCalibData}, raw[:]); err != nil {
		return err
	}
	d.cal = parseCalibration(raw[:])

	if err := d.write(regCtrlMeas, ctrlNormalX4); err != nil {
		return err
	}
	return d.write(regConfig, configFilter8)
}

func (d *Device) detect() error {
	var id [1]byte
	for _, addr := range []uint16{AddressPrimary, AddressSecondary} {
		if err := d.bus.Tx(addr, []byte{regID}, id[:]); err != nil {
			continue
		}
		if id[0] != chipID {
			return ErrBadChip
		}
		d.addr = addr
		return nil
	}
	return ErrNotFound
}

func (d *Device) write(reg, val byte) error {
	return d.bus.Tx(d.addr, []byte{reg, val}, nil)
}

func parseCalibration(b []byte) calibration {
	u16 := func(i int) uint16 { return uint16(b[i]) | uint16(b[i+1])<<8 }
	s16 := func(i int) int16 { return int16(u16(i)) }
	return calibration{
		t1: u16(0), t2: s16(2), t3: s16(4),
		p1: u16(6), p2: s16(8), p3: s16(10), p4: s16(12), p5: s16(14),
		p6: s16(16), p7: s16(18), p8: s16(20), p9: s16(22),
	}
}

// Sample holds one compensated measurement.
type Sample struct {
	CentiC int32  // temperature, hundredths of °C
	Pa     uint32 // pressure, Pascals
}

// Read fetches the current measurement. In normal mode the sensor
// converts continuously, so this is a single burst read.
func (d *Device) Read(out *Sample) error {
	var raw [6]byte
	if err := d.bus.Tx(d.addr, []byte{regPressMSB}, raw[:]); err != nil {
		return err
	}
	rawP := int32(raw[0])<<12 | int32(raw[1])<<4 | int32(raw[2])>>4
	rawT := int32(raw[3])<<12 | int32(raw[4])<<4 | int32(raw[5])>>4

	out.CentiC = d.compensateTemp(rawT)
	out.Pa = uint32(d.compensatePressure(rawP) >> 8)
	return nil
}

// compensateTemp implements the datasheet's 32-bit integer formula and
// updates tFine. Result is in 0.01 °C.
func (d *Device) compensateTemp(raw int32) int32 {
	var1 := ((raw>>3 - int32(d.cal.t1)<<1) * int32(d.cal.t2)) >> 11
	x := raw>>4 - int32(d.cal.t1)
	var2 := (((x * x) >> 12) * int32(d.cal.t3)) >> 14
	d.tFine = var1 + var2
	return (d.tFine*5 + 128) >> 8
}

// compensatePressure implements the datasheet's 64-bit integer formula.
// Result is in Q24.8 Pascals; zero means the divisor degenerated.
func (d *Device) compensatePressure(raw int32) int64 {
	var1 := int64(d.tFine) - 128000
	var2 := var1 * var1 * int64(d.cal.p6)
	var2 += (var1 * int64(d.cal.p5)) << 17
	var2 += int64(d.cal.p4) << 35
	var1 = (var1*var1*int64(d.cal.p3))>>8 + (var1*int64(d.cal.p2))<<12
	var1 = ((int64(1)<<47 + var1) * int64(d.cal.p1)) >> 33
	if var1 == 0 {
		return 0 // avoid division by zero
	}
	p := int64(1048576 - raw)
	p = ((p<<31 - var2) * 3125) / var1
	var1 = (int64(d.cal.p9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(d.cal.p8) * p) >> 19
	return (p+var1+var2)>>8 + int64(d.cal.p7)<<4
}

// DeciCelsius converts a sample's temperature to tenths of °C.
func (s Sample) DeciCelsius() int16 { return int16(s.CentiC / 10) }
