package turret

import "math"

// The gimbal stores every register byte with only the low 7 bits significant.
// Angles are carried as 28-bit two's complement milli-degrees spread over four
// such bytes, least significant group first.

const (
	signBit28 = 0x8000000
	range28   = 0x10000000

	absoluteMax = 0x3fff
	absoluteDen = 0x7fff * 360.0
)

// DecodeSigned28 converts four 7-bit register bytes to degrees.
func DecodeSigned28(b []byte) float64 {
	return float64(decodeRaw28(b)) / 1000.0
}

func decodeRaw28(b []byte) int32 {
	u := uint32(b[0]&0x7f) |
		uint32(b[1]&0x7f)<<7 |
		uint32(b[2]&0x7f)<<14 |
		uint32(b[3]&0x7f)<<21
	if u >= signBit28 {
		return int32(int64(u) - range28)
	}
	return int32(u)
}

// EncodeSigned28 converts degrees to four 7-bit register bytes.
// Milli-degrees are rounded to nearest, so a value read back with
// DecodeSigned28 encodes to the same bytes.
func EncodeSigned28(deg float64) []byte {
	v := int32(math.Round(deg * 1000.0))
	return []byte{
		byte(v & 0x7f),
		byte((v >> 7) & 0x7f),
		byte((v >> 14) & 0x7f),
		byte((v >> 21) & 0x7f),
	}
}

// DecodeAbsolute14 converts the absolute encoder's two 7-bit bytes to
// degrees. The scaling is the encoder's own reporting convention and is not
// spread evenly over a full turn.
func DecodeAbsolute14(lo, hi byte) float64 {
	v := int(lo&0x7f) | int(hi&0x7f)<<7
	return float64(v-absoluteMax) / absoluteDen
}

// EncodeAbsolute14 is the inverse of DecodeAbsolute14, clamped to the
// 14 bit register range.
func EncodeAbsolute14(deg float64) uint16 {
	v := math.Round(deg*absoluteDen) + absoluteMax
	if v < 0 {
		return 0
	}
	if v > absoluteMax {
		return absoluteMax
	}
	return uint16(v)
}

// Absolute14Bytes splits a 14 bit register value into its two 7-bit bytes.
func Absolute14Bytes(v uint16) []byte {
	return []byte{byte(v & 0x7f), byte((v >> 7) & 0x7f)}
}

// encodeImu packs a pitch/yaw pair in register order: pitch command at
// 0x50, yaw command at 0x54.
func encodeImu(p Position) []byte {
	return append(EncodeSigned28(p.Y), EncodeSigned28(p.X)...)
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}
