package bmp280

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus emulates a BMP280 register map on one address.
type fakeBus struct {
	addr   uint16
	id     byte
	calib  [24]byte
	data   [6]byte
	writes map[byte]byte
}

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	if addr != f.addr {
		return assert.AnError
	}
	if len(w) == 2 && len(r) == 0 {
		if f.writes == nil {
			f.writes = map[byte]byte{}
		}
		f.writes[w[0]] = w[1]
		return nil
	}
	if len(w) == 1 {
		switch w[0] {
		case regID:
			r[0] = f.id
		case regCalibData:
			copy(r, f.calib[:])
		case regPressMSB:
			copy(r, f.data[:])
		}
	}
	return nil
}

// datasheetBus carries the calibration constants and raw readings from
// the Bosch datasheet's worked example.
func datasheetBus(addr uint16) *fakeBus {
	f := &fakeBus{addr: addr, id: chipID}
	le := func(i int, v uint16) { binary.LittleEndian.PutUint16(f.calib[i:], v) }
	s := func(v int16) uint16 { return uint16(v) }
	le(0, 27504)      // T1
	le(2, 26435)      // T2
	le(4, s(-1000))   // T3
	le(6, 36477)      // P1
	le(8, s(-10685))  // P2
	le(10, 3024)      // P3
	le(12, 2855)      // P4
	le(14, 140)       // P5
	le(16, s(-7))     // P6
	le(18, 15500)     // P7
	le(20, s(-14600)) // P8
	le(22, 6000)      // P9

	// adc_T = 519888, adc_P = 415148.
	f.data = [6]byte{0x65, 0x5A, 0xC0, 0x7E, 0xED, 0x00}
	return f
}

func TestConfigureAndRead(t *testing.T) {
	bus := datasheetBus(AddressPrimary)
	d := New(bus)

	require.NoError(t, d.Configure())
	assert.Equal(t, uint16(AddressPrimary), d.Address())
	assert.Equal(t, byte(resetCmd), bus.writes[regReset])
	assert.Equal(t, byte(ctrlNormalX4), bus.writes[regCtrlMeas])
	assert.Equal(t, byte(configFilter8), bus.writes[regConfig])

	var s Sample
	require.NoError(t, d.Read(&s))

	// Datasheet expected outputs for the worked example:
	// 25.08 °C and 24674867/256 Pa.
	assert.Equal(t, int32(2508), s.CentiC)
	assert.Equal(t, uint32(96386), s.Pa)
	assert.Equal(t, int16(250), s.DeciCelsius())
}

func TestDetectFallsBackToSecondaryAddress(t *testing.T) {
	bus := datasheetBus(AddressSecondary)
	d := New(bus)

	require.NoError(t, d.Configure())
	assert.Equal(t, uint16(AddressSecondary), d.Address())
}

func TestDetectRejectsWrongChip(t *testing.T) {
	bus := datasheetBus(AddressPrimary)
	bus.id = 0x60 // a BME280 answered instead
	d := New(bus)

	assert.ErrorIs(t, d.Configure(), ErrBadChip)
}

func TestDetectNoSensor(t *testing.T) {
	d := New(&fakeBus{addr: 0x12, id: chipID})
	assert.ErrorIs(t, d.Configure(), ErrNotFound)
}
