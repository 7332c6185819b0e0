package audio

import "encoding/binary"

// FramesToPCM converts float stereo frames to interleaved int16 samples,
// clipping anything outside [-1, 1]. dst must hold 2*len(src) samples.
// Summed decks can exceed full scale; this is where that clips.
func FramesToPCM(dst []int16, src [][2]float64) {
	for i, f := range src {
		dst[2*i] = toInt16(f[0])
		dst[2*i+1] = toInt16(f[1])
	}
}

func toInt16(v float64) int16 {
	s := v * 32768
	if s > 32767 {
		s = 32767
	} else if s < -32768 {
		s = -32768
	}
	return int16(s)
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
