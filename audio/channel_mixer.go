// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// MaxMixerChannels is the widest layout the mixer accepts.
const MaxMixerChannels = 5

// ChannelMixer converts interleaved audio to a fixed output channel count.
type ChannelMixer struct {
	channels int
}

func NewChannelMixer(channels int) (*ChannelMixer, error) {
	if channels < 1 || channels > MaxMixerChannels {
		return nil, fmt.Errorf("%d output channels: %w", channels, ErrChannelCount)
	}
	return &ChannelMixer{channels: channels}, nil
}

// Channels is the output channel count.
func (m *ChannelMixer) Channels() int { return m.channels }

// OutputLength is the sample count produced for inSamples samples of
// inChannels interleaved audio.
func (m *ChannelMixer) OutputLength(inSamples, inChannels int) int {
	return inSamples / inChannels * m.channels
}

// Mix writes src, interleaved with srcChannels, into dst and returns the
// audio frames written. dst may not alias src unless the layouts match.
func (m *ChannelMixer) Mix(dst, src []float32, srcChannels int) (int, error) {
	if srcChannels < 1 || srcChannels > MaxMixerChannels {
		return 0, fmt.Errorf("%d input channels: %w", srcChannels, ErrChannelCount)
	}
	if len(src)%srcChannels != 0 {
		return 0, ErrInvalidDstSize
	}

	frames := len(src) / srcChannels
	out := m.channels
	if len(dst) < frames*out {
		return 0, ErrDstTooSmall
	}

	switch {
	case srcChannels == out:
		copy(dst, src[:frames*out])
	case out == 1:
		downmixMono(dst, src, frames, srcChannels)
	case srcChannels == 1:
		for f := range frames {
			v := src[f]
			row := dst[f*out : (f+1)*out]
			for c := range row {
				row[c] = v
			}
		}
	case srcChannels > out:
		downmix(dst, src, frames, srcChannels, out)
	default:
		upmix(dst, src, frames, srcChannels, out)
	}

	return frames, nil
}

func downmixMono(dst, src []float32, frames, channels int) {
	switch channels {
	case 2:
		for f := range frames {
			idx := f << 1
			dst[f] = (src[idx] + src[idx+1]) * 0.5
		}
	case 4:
		for f := range frames {
			idx := f << 2
			dst[f] = (src[idx] + src[idx+1] + src[idx+2] + src[idx+3]) * 0.25
		}
	default:
		inv := float32(1) / float32(channels)
		for f := range frames {
			var sum float32
			base := f * channels
			for c := range channels {
				sum += src[base+c]
			}
			dst[f] = sum * inv
		}
	}
}

// downmix keeps the first out-1 channels and folds the rest into the last.
func downmix(dst, src []float32, frames, in, out int) {
	folded := in - out + 1
	inv := float32(1) / float32(folded)
	for f := range frames {
		s := src[f*in : (f+1)*in]
		d := dst[f*out : (f+1)*out]
		copy(d[:out-1], s[:out-1])
		var sum float32
		for _, v := range s[out-1:] {
			sum += v
		}
		d[out-1] = sum * inv
	}
}

// upmix keeps the source channels and fills the extra ones with their average.
func upmix(dst, src []float32, frames, in, out int) {
	inv := float32(1) / float32(in)
	for f := range frames {
		s := src[f*in : (f+1)*in]
		d := dst[f*out : (f+1)*out]
		copy(d, s)
		var sum float32
		for _, v := range s {
			sum += v
		}
		avg := sum * inv
		for c := in; c < out; c++ {
			d[c] = avg
		}
	}
}
