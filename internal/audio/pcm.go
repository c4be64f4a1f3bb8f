package audio

import "encoding/binary"

// PCM16FromBytes decodes little-endian 16-bit samples. A trailing odd byte is ignored.
func PCM16FromBytes(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

// BytesFromPCM16 encodes samples as little-endian 16-bit PCM.
func BytesFromPCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// Float64s scales samples to -1..1.
func Float64s(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768
	}
	return out
}
