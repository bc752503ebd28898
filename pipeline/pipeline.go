// SPDX-License-Identifier: EPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
)

// DefaultBufferTime is the decode length of one buffer.
const DefaultBufferTime = 200 * time.Millisecond

// minReadBytes keeps every read larger than the longest compressed frame.
const minReadBytes = 4096

// Config describes the track and output format of a Pipeline.
type Config struct {
	Pool  *audio.Pool
	Codec audio.Codec
	Meta  *audio.Metadata
	View  *fileview.View

	// DstRate and DstChannels default to the track's format.
	DstRate     int
	DstChannels int
	// BufferTime is the decode length of one buffer, DefaultBufferTime
	// when zero.
	BufferTime time.Duration
	Effects    []audio.Effect
	Logger     *slog.Logger
}

// Result is the outcome of one FillBuffers call.
type Result struct {
	Buffers []*audio.BufferDescriptor
	// TrackEndingIndex is the index of the last buffer of the track in
	// Buffers, or -1.
	TrackEndingIndex int
}

// Infos returns the timing of the buffers.
func (r Result) Infos() []audio.BufferInfo { return audio.Infos(r.Buffers) }

// Release returns the PCM of every buffer to its pool.
func (r Result) Release() error { return audio.ReleaseAll(r.Buffers) }

// Pipeline decodes one track into timestamped buffers.
type Pipeline struct {
	pool    *audio.Pool
	codec   audio.Codec
	meta    *audio.Metadata
	view    *fileview.View
	effects []audio.Effect
	logger  *slog.Logger

	dstRate      int
	dstChannels  int
	bufferTime   time.Duration
	targetFrames int
	bytesToRead  int

	decHandle *audio.Handle
	dec       audio.Decoder
	rsHandle  *audio.Handle
	rs        *audio.Resampler
	mixer     *audio.ChannelMixer

	// Format of the decoded stream, fixed by the first flush.
	srcRate     int
	srcChannels int
	pcmFrames   int
	rsBuf       []float32

	position int64
	ended    bool
	base     int64
	emitted  int64
	ready    []*audio.BufferDescriptor
	flushErr error
	closed   bool
}

// New allocates the decoder, and a resampler when the rates differ, and
// positions the pipeline at the start of the track's data.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Pool == nil || cfg.Meta == nil || cfg.View == nil || cfg.Codec.New == nil {
		return nil, fmt.Errorf("pipeline needs a pool, codec, metadata and view: %w", audio.ErrInvalidConfig)
	}
	meta := cfg.Meta
	if meta.SampleRate <= 0 || meta.Channels <= 0 {
		return nil, fmt.Errorf("%s: invalid track format %d Hz, %d ch: %w",
			cfg.Codec.Name, meta.SampleRate, meta.Channels, audio.ErrCodecNotSupported)
	}

	p := &Pipeline{
		pool:        cfg.Pool,
		codec:       cfg.Codec,
		meta:        meta,
		view:        cfg.View,
		effects:     cfg.Effects,
		logger:      cfg.Logger,
		dstRate:     cfg.DstRate,
		dstChannels: cfg.DstChannels,
		bufferTime:  cfg.BufferTime,
		srcRate:     meta.SampleRate,
		srcChannels: meta.Channels,
		position:    meta.DataStart,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "pipeline", "codec", cfg.Codec.Name)
	if p.dstRate <= 0 {
		p.dstRate = meta.SampleRate
	}
	if p.dstChannels <= 0 {
		p.dstChannels = meta.Channels
	}
	if p.bufferTime <= 0 {
		p.bufferTime = DefaultBufferTime
	}

	mixer, err := audio.NewChannelMixer(p.dstChannels)
	if err != nil {
		return nil, err
	}
	p.mixer = mixer

	p.targetFrames = max(1, int(math.Round(p.bufferTime.Seconds()*float64(meta.SampleRate))))
	p.bytesToRead = max(minReadBytes,
		int(math.Ceil(p.bufferTime.Seconds()*float64(meta.SampleRate)*meta.MaxBytesPerAudioFrame)))

	if err := p.allocDecoder(); err != nil {
		return nil, err
	}
	if err := p.configureResampler(meta.SampleRate, meta.Channels); err != nil {
		p.Close()
		return nil, err
	}
	p.dec.Start(meta)

	return p, nil
}

func (p *Pipeline) allocDecoder() error {
	key := audio.Key{Kind: audio.KindDecoder, Class: p.codec.Name}
	h, err := p.pool.Get(key, func() (any, error) {
		return p.codec.New(p.targetFrames)
	})
	if err != nil {
		return err
	}

	dec, ok := h.Value().(audio.Decoder)
	if !ok {
		_ = h.Release()
		return fmt.Errorf("pool entry %s is %T, not a decoder", key, h.Value())
	}
	dec.SetTargetBufferFrames(p.targetFrames)
	p.decHandle, p.dec = h, dec
	return nil
}

// configureResampler makes sure a resampler for srcRate and channels is
// held when it differs from the destination rate.
func (p *Pipeline) configureResampler(srcRate, channels int) error {
	p.srcRate, p.srcChannels = srcRate, channels

	if p.rs != nil && (p.rs.SrcRate() != srcRate || p.rs.Channels() != channels) {
		p.releaseResampler()
	}
	if srcRate == p.dstRate {
		p.releaseResampler()
		p.pcmFrames = p.targetFrames
		return nil
	}

	if p.rs == nil {
		h, err := p.pool.Get(audio.ResamplerKey(channels, srcRate, p.dstRate), func() (any, error) {
			return audio.NewResampler(channels, srcRate, p.dstRate)
		})
		if err != nil {
			return err
		}
		p.rsHandle, p.rs = h, h.Value().(*audio.Resampler)
	}

	p.pcmFrames = p.rs.OutputLength(p.targetFrames)
	if n := p.pcmFrames * channels; len(p.rsBuf) < n {
		p.rsBuf = make([]float32, n)
	}
	return nil
}

func (p *Pipeline) releaseResampler() {
	if p.rsHandle == nil {
		return
	}
	if err := p.rsHandle.Release(); err != nil {
		p.logger.Warn("releasing resampler", "error", err)
	}
	p.rsHandle, p.rs = nil, nil
}

func (p *Pipeline) Meta() *audio.Metadata { return p.meta }
func (p *Pipeline) View() *fileview.View  { return p.view }
func (p *Pipeline) Codec() audio.Codec    { return p.codec }

// Decoder is the pipeline's decoder, nil after Close.
func (p *Pipeline) Decoder() audio.Decoder { return p.dec }

// Resampler is nil when no rate conversion is needed.
func (p *Pipeline) Resampler() *audio.Resampler { return p.rs }

// Position is the byte offset the next read starts from.
func (p *Pipeline) Position() int64 { return p.position }

// Ended reports whether every buffer of the track was handed out.
func (p *Pipeline) Ended() bool { return p.ended && len(p.ready) == 0 }

// SampleRate and Channels describe the output buffers.
func (p *Pipeline) SampleRate() int { return p.dstRate }
func (p *Pipeline) Channels() int   { return p.dstChannels }

// TargetFrames is the number of source audio frames decoded per buffer.
func (p *Pipeline) TargetFrames() int { return p.targetFrames }

// BytesToRead is the size of one read from the source.
func (p *Pipeline) BytesToRead() int { return p.bytesToRead }

// Time is the presentation time of the next buffer.
func (p *Pipeline) Time() float64 { return p.clock() }

func (p *Pipeline) clock() float64 {
	return float64(p.base+p.emitted) / float64(p.dstRate)
}

// FillBuffers decodes until count buffers were produced or the track
// ended. On error no buffers are returned.
func (p *Pipeline) FillBuffers(ctx context.Context, count int) (Result, error) {
	res := Result{TrackEndingIndex: -1}
	if p.closed {
		return res, ErrClosed
	}

	for len(res.Buffers) < count {
		if len(p.ready) == 0 {
			if p.ended {
				break
			}
			if err := p.step(ctx); err != nil {
				_ = audio.ReleaseAll(res.Buffers)
				return Result{TrackEndingIndex: -1}, err
			}
			continue
		}

		res.Buffers = append(res.Buffers, p.ready[0])
		p.ready[0] = nil
		p.ready = p.ready[1:]
	}

	if p.Ended() && len(res.Buffers) > 0 {
		res.TrackEndingIndex = len(res.Buffers) - 1
	}
	return res, nil
}

// step runs the decoder over one read, or finishes the track at the end
// of its data.
func (p *Pipeline) step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return abandoned(err)
	}

	end := p.meta.DataEnd
	if p.position >= end || p.dec.State().StreamExhausted {
		return p.finish()
	}

	n := int(min(int64(p.bytesToRead), end-p.position))
	if err := p.view.ReadBlockOfSizeAt(ctx, n, p.position, 1); err != nil {
		if ctx.Err() != nil {
			return abandoned(ctx.Err())
		}
		return fmt.Errorf("%w: reading %s at %d: %w", audio.ErrIO, p.view.Name(), p.position, err)
	}
	block, err := p.view.BlockAt(p.position)
	if err != nil {
		return fmt.Errorf("%w: %w", audio.ErrIO, err)
	}
	block = block[:min(len(block), n)]

	consumed, err := p.dec.DecodeUntilFlush(block, p.onFlush)
	if err != nil {
		p.dropReady()
		return err
	}
	if p.flushErr != nil {
		err, p.flushErr = p.flushErr, nil
		p.dropReady()
		return err
	}

	p.position += int64(consumed)
	if consumed == 0 {
		// What is left cannot hold another frame.
		p.logger.Debug("no decodable data left", "position", p.position, "data_end", end)
		p.position = end
	}
	return nil
}

// finish flushes what the decoder and resampler hold back and marks the
// track ended. A track that ends exactly on a buffer boundary gets an
// empty final buffer.
func (p *Pipeline) finish() error {
	queued := len(p.ready)

	if p.dec.State().Started {
		if _, err := p.dec.End(p.onFlush); err != nil {
			return err
		}
		if p.flushErr != nil {
			err := p.flushErr
			p.flushErr = nil
			return err
		}
	}

	if p.rs != nil {
		drain := p.rsBuf[:p.rs.OutputLength(2)*p.srcChannels]
		n, err := p.rs.Drain(drain)
		if err != nil {
			return err
		}
		if n > 0 {
			if err := p.emit(drain[:n*p.srcChannels], p.srcChannels); err != nil {
				return err
			}
		}
	}

	if len(p.ready) == queued {
		t := p.clock()
		p.ready = append(p.ready, audio.NewBufferDescriptor(nil, 0, t, t))
	}

	p.ended = true
	p.position = p.meta.DataEnd
	return nil
}

// onFlush converts one decoder flush into a buffer.
func (p *Pipeline) onFlush(samples []float32, frames int) {
	if p.flushErr != nil || frames == 0 {
		return
	}

	rate, ch := p.dec.SampleRate(), p.dec.Channels()
	if rate == 0 || ch == 0 {
		// End after a reset reports no format.
		rate, ch = p.srcRate, p.srcChannels
	}
	if rate != p.srcRate || ch != p.srcChannels {
		p.logger.Debug("decoded format differs from container",
			"rate", rate, "channels", ch, "container_rate", p.srcRate, "container_channels", p.srcChannels)
		if err := p.configureResampler(rate, ch); err != nil {
			p.flushErr = err
			return
		}
	}

	for _, e := range p.effects {
		e.Apply(samples, ch, rate)
	}

	if p.rs != nil {
		n, err := p.rs.Process(p.rsBuf, samples)
		if err != nil {
			p.flushErr = err
			return
		}
		samples = p.rsBuf[:n*ch]
	}

	if err := p.emit(samples, ch); err != nil {
		p.flushErr = err
	}
}

// emit mixes samples into a pooled buffer and queues its descriptor.
func (p *Pipeline) emit(samples []float32, channels int) error {
	frames := len(samples) / channels
	h, err := p.pool.GetPCM(p.dstChannels, max(p.pcmFrames, frames), p.dstRate)
	if err != nil {
		return err
	}

	buf := h.Value().(*goaudio.Float32Buffer)
	n, err := p.mixer.Mix(buf.Data, samples, channels)
	if err != nil {
		_ = h.Release()
		return err
	}

	start := p.clock()
	p.emitted += int64(n)
	p.ready = append(p.ready, audio.NewBufferDescriptor(h, n, start, p.clock()))
	return nil
}

// Seek repositions the pipeline to at seconds and returns the presentation
// time of the first buffer decoded afterwards.
func (p *Pipeline) Seek(ctx context.Context, at float64) (float64, error) {
	if p.closed {
		return 0, ErrClosed
	}
	if p.codec.Locator == nil {
		return 0, fmt.Errorf("%s: no frame locator: %w", p.codec.Name, audio.ErrCodecNotSupported)
	}

	res, err := p.codec.Locator.Locate(ctx, at, p.meta, p.dec, p.view)
	if err != nil {
		if ctx.Err() != nil {
			return 0, abandoned(ctx.Err())
		}
		return 0, err
	}

	p.dropReady()
	p.flushErr = nil
	if !p.dec.State().Started {
		p.dec.Start(p.meta)
	}
	p.dec.ApplySeek(res)
	if p.rs != nil {
		p.rs.Reset()
	}
	for _, e := range p.effects {
		e.Reset()
	}

	p.position = res.Offset
	p.ended = false
	p.base = int64(math.Round(res.Time * float64(p.dstRate)))
	p.emitted = 0

	p.logger.Debug("seeked", "time", at, "offset", res.Offset, "frame", res.Frame, "skip", res.SamplesToSkip)
	return res.Time, nil
}

func (p *Pipeline) dropReady() {
	if err := audio.ReleaseAll(p.ready); err != nil {
		p.logger.Warn("releasing queued buffers", "error", err)
	}
	clear(p.ready)
	p.ready = p.ready[:0]
}

// Close releases every pool entry the pipeline holds. It is safe to call
// more than once.
func (p *Pipeline) Close() {
	if p.closed {
		return
	}
	p.closed = true

	p.dropReady()
	p.releaseResampler()
	if p.decHandle != nil {
		if err := p.decHandle.Release(); err != nil {
			p.logger.Warn("releasing decoder", "error", err)
		}
		p.decHandle, p.dec = nil, nil
	}
}

func abandoned(cause error) error {
	return fmt.Errorf("%w: %w", ErrAbandoned, cause)
}
