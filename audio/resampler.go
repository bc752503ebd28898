// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"math"

	"github.com/ik5/gapless/utils"
)

// Resampler converts interleaved blocks from one sample rate to another
// using cubic interpolation. Interpolation history is carried between
// calls, so consecutive blocks of one stream join without seams.
// A one-pole low-pass filter is applied to the input when downsampling.
type Resampler struct {
	srcRate  int
	dstRate  int
	ratio    float64 // srcRate / dstRate, source frames per output frame
	channels int

	// frames[3] is the newest input frame; output is interpolated
	// between frames[1] and frames[2].
	frames [4][]float32
	primed bool
	// pos is the position of the next output frame relative to frames[1].
	pos float64

	filterState []float32
	useFilter   bool
	filterAlpha float32
}

func NewResampler(channels, srcRate, dstRate int) (*Resampler, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%d channels: %w", channels, ErrChannelCount)
	}
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("invalid rates %d -> %d", srcRate, dstRate)
	}

	ratio := float64(srcRate) / float64(dstRate)
	r := &Resampler{
		srcRate:     srcRate,
		dstRate:     dstRate,
		ratio:       ratio,
		channels:    channels,
		useFilter:   ratio > 1.0,
		filterState: make([]float32, channels),
	}
	if r.useFilter {
		r.filterAlpha = 0.5
	}
	for i := range r.frames {
		r.frames[i] = make([]float32, channels)
	}
	r.Reset()

	return r, nil
}

// ResamplerKey is the pool key of resamplers with this configuration.
func ResamplerKey(channels, srcRate, dstRate int) Key {
	return Key{Kind: KindResampler, Class: fmt.Sprintf("%dch:%d->%d", channels, srcRate, dstRate)}
}

func (r *Resampler) SrcRate() int  { return r.srcRate }
func (r *Resampler) DstRate() int  { return r.dstRate }
func (r *Resampler) Channels() int { return r.channels }

// Reset forgets the interpolation history.
func (r *Resampler) Reset() {
	r.primed = false
	r.pos = 3
	for i := range r.frames {
		clear(r.frames[i])
	}
	clear(r.filterState)
}

// OutputLength is the most frames one Process call can produce for
// inFrames input frames.
func (r *Resampler) OutputLength(inFrames int) int {
	return int(math.Ceil(float64(inFrames)/r.ratio)) + 2
}

// Process resamples src into dst and returns the frames written.
func (r *Resampler) Process(dst, src []float32) (int, error) {
	ch := r.channels
	if len(src)%ch != 0 || len(dst)%ch != 0 {
		return 0, ErrInvalidDstSize
	}
	in := len(src) / ch
	if len(dst)/ch < r.OutputLength(in) {
		return 0, fmt.Errorf("%d frames for %d input frames: %w", len(dst)/ch, in, ErrDstTooSmall)
	}

	written := 0
	for i := range in {
		r.push(src[i*ch : (i+1)*ch])
		written = r.emit(dst, written)
	}

	return written, nil
}

// Drain interpolates the frames still held back at the end of a stream.
func (r *Resampler) Drain(dst []float32) (int, error) {
	if !r.primed {
		return 0, nil
	}
	if len(dst)/r.channels < r.OutputLength(2) {
		return 0, ErrDstTooSmall
	}

	written := 0
	for range 2 {
		r.pushRepeat()
		written = r.emit(dst, written)
	}

	return written, nil
}

func (r *Resampler) push(frame []float32) {
	if r.useFilter {
		if !r.primed {
			copy(r.filterState, frame)
		}
		for c := range r.channels {
			// y[n] = alpha * x[n] + (1-alpha) * y[n-1]
			r.filterState[c] = r.filterAlpha*frame[c] + (1-r.filterAlpha)*r.filterState[c]
		}
		frame = r.filterState
	}

	if !r.primed {
		for i := range r.frames {
			copy(r.frames[i], frame)
		}
		r.primed = true
	} else {
		r.frames[0], r.frames[1], r.frames[2], r.frames[3] = r.frames[1], r.frames[2], r.frames[3], r.frames[0]
		copy(r.frames[3], frame)
	}
	r.pos--
}

func (r *Resampler) pushRepeat() {
	r.frames[0], r.frames[1], r.frames[2], r.frames[3] = r.frames[1], r.frames[2], r.frames[3], r.frames[0]
	copy(r.frames[3], r.frames[2])
	r.pos--
}

func (r *Resampler) emit(dst []float32, written int) int {
	ch := r.channels
	for r.pos < 1 {
		if r.pos >= 0 {
			x := float32(r.pos)
			out := dst[written*ch : (written+1)*ch]
			for c := range ch {
				out[c] = utils.CubicInterpolate(r.frames[0][c], r.frames[1][c], r.frames[2][c], r.frames[3][c], x)
			}
			written++
		}
		r.pos += r.ratio
	}
	return written
}
