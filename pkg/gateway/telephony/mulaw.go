package telephony

// G.711 mu-law codec. Twilio media streams carry 8-bit mu-law at 8kHz; the
// core and the speech engine work in 16-bit signed little-endian PCM.

const (
	muLawBias = 0x84
	muLawClip = 32635
)

func encodeMuLawSample(sample int16) byte {
	v := int32(sample)
	sign := byte(0)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias

	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((v >> (exponent + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}

func decodeMuLawSample(mu byte) int16 {
	mu = ^mu
	sign := mu & 0x80
	exponent := (mu >> 4) & 0x07
	mantissa := mu & 0x0F

	v := ((int32(mantissa) << 3) + muLawBias) << exponent
	v -= muLawBias
	if sign != 0 {
		v = -v
	}
	return int16(v)
}

// DecodeMuLaw converts mu-law bytes to 16-bit signed little-endian PCM.
func DecodeMuLaw(data []byte) []byte {
	out := make([]byte, len(data)*2)
	for i, b := range data {
		s := decodeMuLawSample(b)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// EncodeMuLaw converts 16-bit signed little-endian PCM to mu-law bytes. A
// trailing odd byte is ignored.
func EncodeMuLaw(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := range out {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = encodeMuLawSample(s)
	}
	return out
}
