// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/ik5/gapless/audio"
)

const (
	// DecoderDelay is the number of leading audio frames every MP3
	// decoder outputs before the first encoded sample.
	DecoderDelay = 529

	MaxSampleRate          = 48000
	MaxChannels            = 2
	MaxAudioFramesPerFrame = 1152

	// MaxInvalidFrameCount is the resync budget between two flushes.
	MaxInvalidFrameCount = 100
	MaxFrameByteLength   = 2881
	// ResyncSkip is how many bytes are skipped past undecodable input.
	ResyncSkip = 419

	maxBytesPerAudioFrame = float64(MaxFrameByteLength) / (MaxAudioFramesPerFrame * MaxChannels)
	maxSamplesPerFrame    = MaxAudioFramesPerFrame * MaxChannels
	unboundedFrames       = math.MaxInt32
)

// Decoder is the MP3 decoding state machine. It removes encoder delay and
// padding and groups decoded audio into flushes of a fixed frame count.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	native FrameDecoder
	logger *slog.Logger

	targetFrames int
	srcMax       int
	samples      []float32

	meta        *audio.Metadata
	started     bool
	frameIndex  int
	totalFrames int
	unflushed   int
	toSkip      int
	skipped     int
	invalid     int
	sampleRate  int
	channels    int
}

type Option func(*Decoder)

// WithFrameDecoder replaces the go-mp3 frame decoder.
func WithFrameDecoder(fd FrameDecoder) Option {
	return func(d *Decoder) {
		if fd != nil {
			d.native = fd
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDecoder creates a decoder that flushes targetBufferFrames audio
// frames at a time.
func NewDecoder(targetBufferFrames int, opts ...Option) *Decoder {
	d := &Decoder{
		logger:      slog.Default(),
		totalFrames: unboundedFrames,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.native == nil {
		d.native = NewNativeDecoder()
	}
	d.logger = d.logger.With("component", "mp3")
	d.SetTargetBufferFrames(targetBufferFrames)

	return d
}

var _ audio.Decoder = (*Decoder)(nil)

// SetTargetBufferFrames sets the flush length and sizes the input cap and
// the sample accumulator for it. Unflushed audio is kept.
func (d *Decoder) SetTargetBufferFrames(frames int) {
	frames = max(1, frames)
	d.targetFrames = frames

	maxSamplesUntilFlush := int(math.Ceil(float64(frames*MaxChannels)/maxSamplesPerFrame))*maxSamplesPerFrame +
		maxSamplesPerFrame
	d.srcMax = int(math.Ceil(maxBytesPerAudioFrame * float64(maxSamplesUntilFlush/MaxChannels)))

	size := max(maxSamplesUntilFlush, d.unflushed*d.stride()+maxSamplesPerFrame)
	if len(d.samples) != size {
		samples := make([]float32, size)
		copy(samples, d.samples[:min(len(d.samples), d.unflushed*d.channels)])
		d.samples = samples
	}
}

// Start prepares decoding of a track from its first frame.
func (d *Decoder) Start(meta *audio.Metadata) {
	d.resetState()
	d.started = true
	d.meta = meta

	if meta != nil {
		d.toSkip = meta.EncoderDelay + DecoderDelay
		if meta.Frames > 0 {
			d.totalFrames = meta.Frames
		}
	} else {
		d.toSkip = DecoderDelay
	}
}

// DecodeUntilFlush decodes frames from src until buffers of the target
// length were passed to flush or src runs short, and returns the number
// of bytes consumed. At most the input cap is read per call.
func (d *Decoder) DecodeUntilFlush(src []byte, flush audio.FlushFunc) (int, error) {
	if !d.started {
		return 0, audio.ErrNotStarted
	}
	if d.frameIndex >= d.totalFrames {
		return 0, nil
	}

	src = src[:min(len(src), d.srcMax)]
	n := len(src)
	off := 0

	for off < n {
		dst := d.samples[d.unflushed*d.stride():]
		consumed, frames, rate, ch := d.native.DecodeFrame(src[off:], dst)
		if consumed > 0 {
			off += consumed
		}

		switch {
		case frames > 0:
			if d.sampleRate == 0 {
				d.sampleRate, d.channels = rate, ch
			} else if ch != d.channels {
				remixFrame(dst, frames, ch, d.channels)
			}

			idx := d.frameIndex
			d.frameIndex++
			if d.frameDecoded(idx, frames, flush) {
				d.invalid = 0
				return off, nil
			}
			if d.frameIndex >= d.totalFrames {
				return off, nil
			}

		case n-off > MaxFrameByteLength:
			d.invalid++
			if d.invalid >= MaxInvalidFrameCount {
				return off, fmt.Errorf("frame %d: %w", d.frameIndex, audio.ErrInvalidFrame)
			}
			skip := min(n-off, ResyncSkip)
			d.logger.Debug("skipping undecodable input", "frame", d.frameIndex, "bytes", skip, "invalid", d.invalid)
			off += skip

		default:
			return off, nil
		}
	}

	return off, nil
}

// frameDecoded accounts one decoded frame of index idx whose samples were
// written at the end of the accumulator. It reports whether a flush
// happened.
func (d *Decoder) frameDecoded(idx, frames int, flush audio.FlushFunc) bool {
	if m := d.meta; m != nil && m.PaddingStartFrame != audio.NoPadding && idx >= m.PaddingStartFrame {
		if idx > m.PaddingStartFrame {
			return false
		}
		keep := int(m.TotalAudioFrames()) - m.EncoderPadding - idx*m.SamplesPerFrame
		frames = max(0, min(frames, keep))
	}

	ch := d.channels
	base := d.unflushed * ch

	if skip := min(frames, d.toSkip); skip > 0 {
		frames -= skip
		d.toSkip -= skip
		d.skipped += skip
		copy(d.samples[base:], d.samples[base+skip*ch:base+(skip+frames)*ch])
	}
	if frames == 0 {
		return false
	}

	d.unflushed += frames
	if d.unflushed < d.targetFrames {
		return false
	}

	// Targets shorter than a frame flush more than once.
	target := d.targetFrames
	done := 0
	for d.unflushed-done >= target {
		if flush != nil {
			flush(d.samples[done*ch:(done+target)*ch], target)
		}
		done += target
	}
	copy(d.samples, d.samples[done*ch:d.unflushed*ch])
	d.unflushed -= done

	return true
}

// remixFrame converts a frame decoded with from channels to to channels
// in place.
func remixFrame(dst []float32, frames, from, to int) {
	switch {
	case from == 1 && to == 2:
		for f := frames - 1; f >= 0; f-- {
			dst[2*f], dst[2*f+1] = dst[f], dst[f]
		}
	case from == 2 && to == 1:
		for f := range frames {
			dst[f] = (dst[2*f] + dst[2*f+1]) * 0.5
		}
	}
}

// ApplySeek repositions the decoder to the frame and skip of res.
func (d *Decoder) ApplySeek(res audio.SeekResult) {
	d.resetDecodingState()
	d.frameIndex = res.Frame
	d.toSkip = res.SamplesToSkip
	if d.frameIndex == 0 {
		d.toSkip += DecoderDelay
	}
}

// End passes the unflushed audio to flush, once, and resets the decoder.
// It reports whether a flush happened. Ending a decoder that was never
// started with a flush callback is an error.
func (d *Decoder) End(flush audio.FlushFunc) (bool, error) {
	if !d.started {
		d.resetState()
		if flush != nil {
			return false, audio.ErrNotStarted
		}
		return false, nil
	}
	defer d.resetState()

	if flush == nil || d.unflushed == 0 {
		return false, nil
	}

	frames := d.unflushed
	d.unflushed = 0
	flush(d.samples[:frames*d.channels], frames)
	return true, nil
}

// CurrentAudioFrame estimates the index of the next audio frame handed
// out, relative to the first exposed frame.
func (d *Decoder) CurrentAudioFrame() int64 {
	spf := MaxAudioFramesPerFrame
	if d.meta != nil && d.meta.SamplesPerFrame > 0 {
		spf = d.meta.SamplesPerFrame
	}
	return int64(max(0, spf*d.frameIndex-d.unflushed%spf-d.skipped))
}

func (d *Decoder) SampleRate() int { return d.sampleRate }
func (d *Decoder) Channels() int   { return d.channels }

// Started reports whether Start was called since the last End or Reset.
func (d *Decoder) Started() bool { return d.started }

func (d *Decoder) FrameIndex() int { return d.frameIndex }

func (d *Decoder) State() audio.DecoderState {
	return audio.DecoderState{
		FrameIndex:       d.frameIndex,
		TotalFrames:      d.totalFrames,
		UnflushedFrames:  d.unflushed,
		FramesToSkip:     d.toSkip,
		FramesSkipped:    d.skipped,
		InvalidFrames:    d.invalid,
		SampleRate:       d.sampleRate,
		Channels:         d.channels,
		Started:          d.started,
		StreamExhausted:  d.frameIndex >= d.totalFrames,
		TargetBufferSize: d.targetFrames,
	}
}

// Reset returns the decoder to its created state. The target buffer
// length is kept.
func (d *Decoder) Reset() {
	d.resetState()
}

func (d *Decoder) resetState() {
	d.started = false
	d.meta = nil
	d.totalFrames = unboundedFrames
	d.sampleRate = 0
	d.channels = 0
	d.resetDecodingState()
}

func (d *Decoder) resetDecodingState() {
	d.frameIndex = 0
	d.unflushed = 0
	d.toSkip = 0
	d.skipped = 0
	d.invalid = 0
	d.native.Reset()
}

// stride is the sample count of one audio frame in the accumulator.
func (d *Decoder) stride() int {
	if d.channels == 0 {
		return MaxChannels
	}
	return d.channels
}
