package audio

import (
	"encoding/binary"
	"fmt"
)

// pcmToInts decodes S16LE bytes into samples.
func pcmToInts(pcm []byte) ([]int, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm payload not aligned: %d bytes", len(pcm))
	}
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return samples, nil
}

// intsToPCM encodes samples of the given bit depth as S16LE bytes, keeping
// every channels-th sample so that the output is mono.
func intsToPCM(samples []int, bitDepth, channels int) []byte {
	if channels < 1 {
		channels = 1
	}
	shift := bitDepth - 16

	out := make([]byte, 0, len(samples)/channels*2)
	for i := 0; i < len(samples); i += channels {
		s := samples[i]
		switch {
		case shift > 0:
			s >>= shift
		case shift < 0:
			s <<= -shift
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(s)))
	}
	return out
}
