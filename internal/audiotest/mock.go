// SPDX-License-Identifier: EPL-2.0

package audiotest

import "math"

// Signal generates interleaved float32 test audio block by block.
type Signal struct {
	sampleRate int
	channels   int
	total      int // frames to generate
	generated  int // frames generated so far
	waveform   func(frame int, channel int) float32
}

// NewSignal creates a generator of total frames. waveform returns the
// sample for a frame index and channel.
func NewSignal(sampleRate, channels, total int, waveform func(frame int, channel int) float32) *Signal {
	return &Signal{
		sampleRate: sampleRate,
		channels:   channels,
		total:      total,
		waveform:   waveform,
	}
}

// NewSilence generates zeros.
func NewSilence(sampleRate, channels, total int) *Signal {
	return NewSignal(sampleRate, channels, total, func(int, int) float32 { return 0 })
}

// NewSine generates the same sine wave on every channel.
func NewSine(sampleRate, channels, total int, frequency float64) *Signal {
	return NewSignal(sampleRate, channels, total, func(frame int, _ int) float32 {
		t := float64(frame) / float64(sampleRate)
		return float32(math.Sin(2 * math.Pi * frequency * t))
	})
}

// NewConstant generates value on every channel.
func NewConstant(sampleRate, channels, total int, value float32) *Signal {
	return NewSignal(sampleRate, channels, total, func(int, int) float32 { return value })
}

// NewChannelIndex writes the channel number into each sample, which makes
// channel routing visible.
func NewChannelIndex(sampleRate, channels, total int) *Signal {
	return NewSignal(sampleRate, channels, total, func(_ int, ch int) float32 { return float32(ch) })
}

func (s *Signal) SampleRate() int { return s.sampleRate }
func (s *Signal) Channels() int   { return s.channels }
func (s *Signal) Remaining() int  { return s.total - s.generated }

// Reset rewinds the generator.
func (s *Signal) Reset() {
	s.generated = 0
}

// Read fills dst with whole frames and returns the frames written.
func (s *Signal) Read(dst []float32) int {
	frames := min(len(dst)/s.channels, s.total-s.generated)
	for f := range frames {
		idx := s.generated + f
		for ch := range s.channels {
			dst[f*s.channels+ch] = s.waveform(idx, ch)
		}
	}
	s.generated += frames

	return frames
}

// All returns every remaining frame as one interleaved slice.
func (s *Signal) All() []float32 {
	out := make([]float32, s.Remaining()*s.channels)
	s.Read(out)
	return out
}
