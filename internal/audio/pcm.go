package audio

import (
	"encoding/binary"
	"time"
)

// BytesPerSample is the size of one signed 16-bit sample.
const BytesPerSample = 2

// Duration returns how long pcm plays at the given rate and channel
// count.
func Duration(pcm []byte, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := len(pcm) / (BytesPerSample * channels)
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// Resample converts mono signed 16-bit little endian PCM from one rate to
// another by linear interpolation.
func Resample(pcm []byte, from, to int) []byte {
	if from == to || from <= 0 || to <= 0 || len(pcm) < BytesPerSample {
		return pcm
	}

	in := len(pcm) / BytesPerSample
	out := int(int64(in) * int64(to) / int64(from))
	if out == 0 {
		return nil
	}

	sample := func(i int) float64 {
		return float64(int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:])))
	}

	res := make([]byte, out*BytesPerSample)
	step := float64(from) / float64(to)
	for i := 0; i < out; i++ {
		pos := float64(i) * step
		j := int(pos)
		frac := pos - float64(j)

		v := sample(j)
		if j+1 < in {
			v += (sample(j+1) - v) * frac
		}
		binary.LittleEndian.PutUint16(res[i*BytesPerSample:], uint16(int16(v)))
	}
	return res
}
