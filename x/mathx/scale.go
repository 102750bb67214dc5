package mathx

// Scale8 scales v by s/255 with 16-bit intermediates.
// Scale8(x, 255) == x and Scale8(x, 0) == 0.
func Scale8(v, s uint8) uint8 {
	return uint8((uint16(v) * uint16(s)) / 255)
}
