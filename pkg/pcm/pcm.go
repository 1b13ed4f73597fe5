// Package pcm converts between the wire format of the streaming
// engine (interleaved signed 16-bit little-endian bytes) and the
// interleaved float32 samples the audio pipeline works in, with
// optional sample-rate conversion for monitoring sinks.
package pcm

import (
	"encoding/binary"
	"math"

	"github.com/oov/audio/resampler"
)

const maxInt16 = float32(math.MaxInt16)

// S16LEToFloat32 decodes interleaved 16-bit little-endian PCM bytes
// into float32 samples in [-1, 1], appending to dst. A trailing odd
// byte is ignored.
func S16LEToFloat32(src []byte, dst []float32) []float32 {
	for i := 0; i+1 < len(src); i += 2 {
		s := int16(binary.LittleEndian.Uint16(src[i : i+2]))
		dst = append(dst, float32(s)/maxInt16)
	}
	return dst
}

// Float32ToS16LE encodes interleaved float32 samples into 16-bit
// little-endian PCM bytes, appending to dst. Samples outside [-1, 1]
// are clipped.
func Float32ToS16LE(src []float32, dst []byte) []byte {
	for _, sample := range src {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(sample*maxInt16)))
	}
	return dst
}

// S16LEFromInts encodes go-audio integer samples (16-bit range) into
// little-endian bytes, appending to dst.
func S16LEFromInts(samples []int, dst []byte) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(s)))
	}
	return dst
}

const (
	// Large enough for any chunk the engine hands a sink: a full
	// buffer of 48 kHz stereo is well under this.
	scratchSize = 16384

	resampleQuality = 10
)

// RateConverter resamples interleaved float32 audio from one sample
// rate to another, preserving the channel count. It keeps its own
// scratch buffers, so a single converter must not be shared between
// goroutines.
type RateConverter struct {
	channels int
	r        *resampler.Resampler

	// The resampler works on planar data; interleave in and out here.
	planarIn  [][]float32
	planarOut [][]float32
	out       []float32
}

// NewRateConverter creates a converter from inRate to outRate for the
// given interleaved channel count (1 or 2).
func NewRateConverter(channels, inRate, outRate int) *RateConverter {
	c := &RateConverter{
		channels:  channels,
		r:         resampler.New(channels, inRate, outRate, resampleQuality),
		planarIn:  make([][]float32, channels),
		planarOut: make([][]float32, channels),
		out:       make([]float32, scratchSize),
	}
	for ch := 0; ch < channels; ch++ {
		c.planarIn[ch] = make([]float32, scratchSize/channels)
		c.planarOut[ch] = make([]float32, scratchSize/channels)
	}
	return c
}

// Convert resamples one interleaved chunk and returns the converted
// interleaved samples. The returned slice is valid until the next
// call.
func (c *RateConverter) Convert(src []float32) []float32 {
	frames := len(src) / c.channels

	for ch := 0; ch < c.channels; ch++ {
		for i := 0; i < frames; i++ {
			c.planarIn[ch][i] = src[i*c.channels+ch]
		}
	}

	written := 0
	for ch := 0; ch < c.channels; ch++ {
		_, written = c.r.ProcessFloat32(ch, c.planarIn[ch][:frames], c.planarOut[ch])
	}

	for ch := 0; ch < c.channels; ch++ {
		for i := 0; i < written; i++ {
			c.out[i*c.channels+ch] = c.planarOut[ch][i]
		}
	}
	return c.out[:written*c.channels]
}
