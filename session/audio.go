package session

import "encoding/binary"

// Twilio media streams carry 8kHz G.711 mu-law. Gemini takes 16kHz PCM in
// and produces 24kHz PCM out, both 16-bit little-endian.

const (
	muLawBias = 0x84
	muLawClip = 32635
)

var muLawDecodeTable [256]int16

func init() {
	for i := range muLawDecodeTable {
		muLawDecodeTable[i] = decodeMuLaw(byte(i))
	}
}

// decodeMuLaw expands one G.711 mu-law byte to linear PCM.
func decodeMuLaw(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F

	magnitude := ((int32(mantissa) << 3) + muLawBias) << exponent
	sample := int16(magnitude - muLawBias)
	if sign != 0 {
		return -sample
	}
	return sample
}

// encodeMuLaw compresses a linear PCM sample to one G.711 mu-law byte.
func encodeMuLaw(sample int16) byte {
	s := int32(sample)
	var sign byte
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > muLawClip {
		s = muLawClip
	}
	s += muLawBias

	exponent := byte(7)
	for mask := int32(0x4000); s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(s>>(exponent+3)) & 0x0F

	return ^(sign | exponent<<4 | mantissa)
}

// muLawToPCM16k decodes 8kHz mu-law and doubles each sample to reach 16kHz.
func muLawToPCM16k(muLaw []byte) []byte {
	out := make([]byte, len(muLaw)*4)
	for i, b := range muLaw {
		v := uint16(muLawDecodeTable[b])
		binary.LittleEndian.PutUint16(out[i*4:], v)
		binary.LittleEndian.PutUint16(out[i*4+2:], v)
	}
	return out
}

// pcm24kToMuLaw8k keeps every third 24kHz sample and encodes it as mu-law.
func pcm24kToMuLaw8k(pcm []byte) []byte {
	samples := len(pcm) / 2
	out := make([]byte, 0, samples/3+1)
	for i := 0; i < samples; i += 3 {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out = append(out, encodeMuLaw(s))
	}
	return out
}
