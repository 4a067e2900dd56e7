package protocol

import "math"

// Fixed-point formats used by telemetry fields. Both are sign-magnitude with
// the sign in the top bit of the first byte.
const (
	fixedIntMax   = 0x7FFF   // standard: 15-bit integer part
	fixedFracMax  = 0xFFFF   // standard: 16-bit fraction
	fixedScale    = 65536    // 1 << 16
	fixedHPIntMax = 0x7F     // high precision: 7-bit integer part
	fixedHPMax    = 0xFFFFFF // high precision: 24-bit fraction
	fixedHPScale  = 16777216 // 1 << 24
)

// splitMagnitude returns the sign bit and the integer and fraction parts of
// |v|, saturated to intMax and fracMax. NaN encodes as zero.
func splitMagnitude(v float64, intMax, fracMax uint32, scale float64) (neg bool, ip, fp uint32) {
	if math.IsNaN(v) {
		return false, 0, 0
	}
	if v < 0 {
		neg = true
		v = -v
	}
	whole := math.Floor(v)
	if whole > float64(intMax) {
		return neg, intMax, fracMax
	}
	frac := math.Floor((v - whole) * scale)
	if frac > float64(fracMax) {
		frac = float64(fracMax)
	}
	return neg, uint32(whole), uint32(frac)
}

// EncodeFixed packs v as 2 integer bytes and 2 fraction bytes.
func EncodeFixed(v float64) [4]byte {
	neg, ip, fp := splitMagnitude(v, fixedIntMax, fixedFracMax, fixedScale)
	var b [4]byte
	b[0] = byte(ip >> 8)
	if neg {
		b[0] |= 0x80
	}
	b[1] = byte(ip)
	b[2] = byte(fp >> 8)
	b[3] = byte(fp)
	return b
}

// DecodeFixed unpacks the first 4 bytes of b written by EncodeFixed.
func DecodeFixed(b []byte) float64 {
	_ = b[3]
	ip := uint32(b[0]&0x7F)<<8 | uint32(b[1])
	fp := uint32(b[2])<<8 | uint32(b[3])
	v := float64(ip) + float64(fp)/fixedScale
	if b[0]&0x80 != 0 {
		v = -v
	}
	return v
}

// EncodeFixedHP packs v as 1 integer byte and 3 fraction bytes.
func EncodeFixedHP(v float64) [4]byte {
	neg, ip, fp := splitMagnitude(v, fixedHPIntMax, fixedHPMax, fixedHPScale)
	var b [4]byte
	b[0] = byte(ip)
	if neg {
		b[0] |= 0x80
	}
	b[1] = byte(fp >> 16)
	b[2] = byte(fp >> 8)
	b[3] = byte(fp)
	return b
}

// DecodeFixedHP unpacks the first 4 bytes of b written by EncodeFixedHP.
//
// The fraction is biased by one step (raw+1) exactly as the flight software
// decodes it, so a round trip can read up to 1/16777216 high in magnitude.
func DecodeFixedHP(b []byte) float64 {
	_ = b[3]
	ip := uint32(b[0] & 0x7F)
	fp := uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	v := float64(ip) + float64(fp+1)/fixedHPScale
	if b[0]&0x80 != 0 {
		v = -v
	}
	return v
}
