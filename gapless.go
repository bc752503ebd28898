// SPDX-License-Identifier: EPL-2.0

package gapless

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
	"github.com/ik5/gapless/formats/aiff"
	"github.com/ik5/gapless/formats/mp3"
	"github.com/ik5/gapless/formats/vorbis"
	"github.com/ik5/gapless/formats/wav"
	"github.com/ik5/gapless/session"
)

// FillCount is how many buffers Stream requests at a time.
const FillCount = 4

// DefaultRegistry returns a registry that decodes MP3, including MP3 in
// WAV, and recognizes PCM WAV, AIFF and Ogg Vorbis so that loading them
// fails with a precise error.
func DefaultRegistry(ttl time.Duration) *audio.Registry {
	reg := audio.NewRegistryWithTTL(ttl)
	reg.Register(mp3.NewCodec())
	reg.RegisterProbe("wav", wav.Probe)
	reg.RegisterProbe("aiff", aiff.Probe)
	reg.RegisterProbe("vorbis", vorbis.Probe)
	return reg
}

// Sink receives interleaved samples. The slice is only valid during the
// call.
type Sink interface {
	Write(samples []float32) error
}

// Track is the output of DecodeAll.
type Track struct {
	Meta       *audio.Metadata
	SampleRate int
	Channels   int
	// Samples is interleaved.
	Samples []float32
}

// Frames is the number of audio frames in t.
func (t *Track) Frames() int {
	if t.Channels == 0 {
		return 0
	}
	return len(t.Samples) / t.Channels
}

type collector struct {
	samples []float32
}

func (c *collector) Write(samples []float32) error {
	c.samples = append(c.samples, samples...)
	return nil
}

// DecodeAll decodes src from start to end. A Pool and Registry in opts
// are optional.
func DecodeAll(ctx context.Context, src fileview.Source, opts session.Options) (*Track, error) {
	c := &collector{}
	res, err := Stream(ctx, c, opts, 0, src)
	if err != nil {
		return nil, err
	}

	t := &Track{
		Channels: res.Channels,
		Samples:  c.samples,
	}
	if len(res.Tracks) > 0 {
		t.Meta = res.Tracks[0]
		t.SampleRate = t.Meta.SampleRate
	}
	if opts.DstRate > 0 {
		t.SampleRate = opts.DstRate
	}
	return t, nil
}

// Result summarizes a Stream.
type Result struct {
	// Tracks holds the metadata of every played source in order.
	Tracks   []*audio.Metadata
	Channels int
	Buffers  int
	Frames   int64
}

// Stream plays sources back to back into sink, starting the first one at
// seek seconds. Every following source is loaded as a gapless
// replacement once the previous one has decoded its last buffer, so
// sink sees one contiguous signal. Without DstRate and DstChannels the
// sources must share their format.
func Stream(ctx context.Context, sink Sink, opts session.Options, seek float64, sources ...fileview.Source) (*Result, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("nothing to play: %w", audio.ErrInvalidConfig)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Pool == nil {
		popts := []audio.PoolOption{audio.WithPoolLogger(opts.Logger)}
		if opts.Metrics != nil {
			popts = append(popts, audio.WithObserver(opts.Metrics))
		}
		opts.Pool = audio.NewPool(popts...)
	}
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry(audio.DefaultMetadataTTL)
	}

	s, err := session.New(opts)
	if err != nil {
		return nil, err
	}
	defer s.Destroy()

	p := &player{sink: sink, res: &Result{}}
	if err := s.Submit(session.LoadBlob{RequestID: 1, Source: sources[0], SeekTimeHint: seek}); err != nil {
		return nil, err
	}

	next := 1
	for {
		var msg session.Message
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case m, ok := <-s.Replies():
			if !ok {
				return nil, fmt.Errorf("session %s: %w", s.ID(), audio.ErrDestroyed)
			}
			msg = m
		}

		ended, err := p.handle(msg)
		if err != nil {
			return nil, err
		}
		if !ended {
			if err := s.Submit(session.FillBuffers{Count: FillCount}); err != nil {
				return nil, err
			}
			continue
		}
		if next == len(sources) {
			return p.res, nil
		}

		next++
		err = s.Submit(session.LoadReplacement{
			RequestID:      int64(next),
			Source:         sources[next-1],
			Count:          FillCount,
			GaplessPreload: true,
		})
		if err != nil {
			return nil, err
		}
	}
}

type player struct {
	sink Sink
	res  *Result
}

// handle consumes one reply and reports whether the current track has
// delivered its last buffer.
func (p *player) handle(msg session.Message) (ended bool, err error) {
	defer func() {
		if rerr := session.Release(msg); rerr != nil && err == nil {
			err = fmt.Errorf("releasing reply buffers: %w", rerr)
		}
	}()

	switch m := msg.(type) {
	case session.BlobLoaded:
		p.res.Tracks = append(p.res.Tracks, m.Meta)
		return false, nil
	case session.ReplacementLoaded:
		p.res.Tracks = append(p.res.Tracks, m.Meta)
		return p.write(m.ChannelCount, m.Buffers, m.TrackEndingIndex)
	case session.BuffersFilled:
		return p.write(m.ChannelCount, m.Buffers, m.TrackEndingIndex)
	case session.Error:
		if m.Err != nil {
			return false, m.Err
		}
		return false, errors.New(m.Message)
	default:
		return false, nil
	}
}

func (p *player) write(channels int, bufs []*audio.BufferDescriptor, ending int) (bool, error) {
	if channels > 0 {
		p.res.Channels = channels
	}
	for _, b := range bufs {
		if err := p.sink.Write(b.Samples()); err != nil {
			return false, err
		}
		p.res.Buffers++
		p.res.Frames += int64(b.Length)
	}
	// An empty reply without an ending index comes from a pipeline that
	// already ended.
	return ending >= 0 || len(bufs) == 0, nil
}
