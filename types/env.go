package types

// ------------------------
// Temperature, humidity, pressure
// ------------------------

type TemperatureInfo struct {
	Sensor string `json:"sensor"` // "aht20", "bmp280"
	Addr   uint16 `json:"addr"`   // I2C address
	Bus    string `json:"bus"`    // "i2c0"
}

type HumidityInfo struct {
	Sensor string `json:"sensor"`
	Addr   uint16 `json:"addr"`
	Bus    string `json:"bus"`
}

type PressureInfo struct {
	Sensor string `json:"sensor"`
	Addr   uint16 `json:"addr"`
	Bus    string `json:"bus"`
}

// I2CSensorParams configures a sensor device on a shared bus.
type I2CSensorParams struct {
	Bus string `json:"bus,omitempty"` // defaults to "i2c0"
}

// Fixed-point value payloads; small types to suit TinyGo.

type TemperatureValue struct {
	// Tenths of °C (e.g. 231 => 23.1 °C).
	DeciC int16 `json:"deci_c"`
}

type HumidityValue struct {
	// Hundredths of %RH (0..10000 for 0..100.00%).
	RHx100 uint16 `json:"rh_x100"`
}

type PressureValue struct {
	// Pascals.
	Pa uint32 `json:"pa"`
}
