// SPDX-License-Identifier: EPL-2.0

package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
	"github.com/ik5/gapless/formats/mp3"
	"github.com/ik5/gapless/formats/mp3/mp3test"
	"github.com/ik5/gapless/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T, codec audio.Codec, data []byte, cfg pipeline.Config) (*pipeline.Pipeline, *audio.Pool) {
	t.Helper()

	view := fileview.NewView(fileview.FromBytes("track.mp3", data))
	meta, err := codec.Demuxer.Demux(context.Background(), view)
	require.NoError(t, err)
	require.NotNil(t, meta)

	pool := audio.NewPool()
	cfg.Pool, cfg.Codec, cfg.Meta, cfg.View = pool, codec, meta, view

	p, err := pipeline.New(cfg)
	require.NoError(t, err)
	t.Cleanup(p.Close)

	return p, pool
}

// fillAll fills count buffers at a time until the track ended.
func fillAll(t *testing.T, p *pipeline.Pipeline, count int) ([]*audio.BufferDescriptor, []pipeline.Result) {
	t.Helper()

	var (
		all     []*audio.BufferDescriptor
		results []pipeline.Result
	)
	for range 10000 {
		res, err := p.FillBuffers(context.Background(), count)
		require.NoError(t, err)
		results = append(results, res)
		all = append(all, res.Buffers...)
		if p.Ended() {
			t.Cleanup(func() { _ = audio.ReleaseAll(all) })
			return all, results
		}
		require.Len(t, res.Buffers, count)
	}
	t.Fatal("track did not end")
	return nil, nil
}

func totalLength(bufs []*audio.BufferDescriptor) int {
	n := 0
	for _, b := range bufs {
		n += b.Length
	}
	return n
}

func assertContiguous(t *testing.T, bufs []*audio.BufferDescriptor) {
	t.Helper()

	for i := 1; i < len(bufs); i++ {
		require.Equal(t, bufs[i-1].EndTime, bufs[i].StartTime, "buffer %d", i)
	}
}

func TestNew_Validates(t *testing.T) {
	t.Parallel()

	_, err := pipeline.New(pipeline.Config{})
	require.ErrorIs(t, err, audio.ErrInvalidConfig)

	_, err = pipeline.New(pipeline.Config{
		Pool:  audio.NewPool(),
		Codec: mp3test.NewCodec(),
		Meta:  &audio.Metadata{},
		View:  fileview.NewView(fileview.FromBytes("x", []byte{0})),
	})
	require.ErrorIs(t, err, audio.ErrCodecNotSupported)
}

func TestPipeline_Sizing(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t, mp3test.NewCodec(), mp3test.Stream{Frames: 200}.Bytes(),
		pipeline.Config{BufferTime: time.Second})

	assert.Equal(t, 44100, p.TargetFrames())
	assert.Equal(t, 40004, p.BytesToRead())
	assert.Equal(t, 44100, p.SampleRate())
	assert.Equal(t, 2, p.Channels())
	assert.Nil(t, p.Resampler())
	assert.Equal(t, p.Meta().DataStart, p.Position())
	assert.True(t, p.Decoder().State().Started)
}

func TestPipeline_FillsWholeTrack(t *testing.T) {
	t.Parallel()

	p, pool := newPipeline(t, mp3test.NewCodec(), mp3test.Stream{Frames: 300, Header: mp3test.Header48k}.Bytes(),
		pipeline.Config{BufferTime: 100 * time.Millisecond})
	meta := p.Meta()

	bufs, results := fillAll(t, p, 4)

	assertContiguous(t, bufs)
	assert.Equal(t, meta.Frames*1152-mp3.DecoderDelay-meta.EncoderDelay, totalLength(bufs))
	for _, b := range bufs[:len(bufs)-1] {
		assert.Equal(t, 4800, b.Length)
	}
	assert.Zero(t, bufs[0].StartTime)
	assert.Equal(t, float32(1), bufs[0].Samples()[0])
	assert.InDelta(t, float64(totalLength(bufs))/48000, bufs[len(bufs)-1].EndTime, 1e-9)

	last := results[len(results)-1]
	assert.Equal(t, len(last.Buffers)-1, last.TrackEndingIndex)
	for _, r := range results[:len(results)-1] {
		assert.Equal(t, -1, r.TrackEndingIndex)
	}
	assert.Equal(t, meta.DataEnd, p.Position())

	// An ended track yields nothing more.
	res, err := p.FillBuffers(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, res.Buffers)
	assert.Equal(t, -1, res.TrackEndingIndex)

	require.NoError(t, audio.ReleaseAll(bufs))
	p.Close()
	assert.Zero(t, pool.Outstanding())
}

func TestPipeline_EmptyFinalBuffer(t *testing.T) {
	t.Parallel()

	// 130*1152 - 1105 = 5 * 29731 frames end on a buffer boundary.
	s := mp3test.Stream{Frames: 130, Header: mp3test.Header48k, Xing: true, EncoderDelay: 576}
	p, _ := newPipeline(t, mp3test.NewCodec(), s.Bytes(), pipeline.Config{
		BufferTime: time.Duration(int64(time.Second) * 29731 / 48000),
	})
	require.Equal(t, 29731, p.TargetFrames())

	res, err := p.FillBuffers(context.Background(), 10)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Release() })

	require.Len(t, res.Buffers, 6)
	final := res.Buffers[5]
	assert.Zero(t, final.Length)
	assert.Equal(t, final.StartTime, final.EndTime)
	assert.Equal(t, 5, res.TrackEndingIndex)
	assert.True(t, p.Ended())
}

func TestPipeline_Resamples(t *testing.T) {
	t.Parallel()

	p, pool := newPipeline(t, mp3test.NewCodec(), mp3test.Stream{Frames: 200}.Bytes(),
		pipeline.Config{DstRate: 48000})
	require.NotNil(t, p.Resampler())
	assert.Equal(t, 1, pool.Stats().ByKind[audio.KindResampler])

	bufs, _ := fillAll(t, p, 8)
	assertContiguous(t, bufs)

	src := p.Meta().Frames*1152 - 1105
	assert.InDelta(t, float64(src)*48000/44100, totalLength(bufs), 6)
	for _, b := range bufs {
		if b.PCM != nil {
			assert.Equal(t, 48000, b.PCM.Format.SampleRate)
		}
	}
}

func TestPipeline_MixesChannels(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t, mp3test.NewCodec(), mp3test.Stream{Frames: 200, Header: mp3test.Header44kMono}.Bytes(),
		pipeline.Config{DstChannels: 2})

	res, err := p.FillBuffers(context.Background(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Release() })

	for _, b := range res.Buffers {
		require.Equal(t, 2, b.Channels())
		s := b.Samples()
		require.Len(t, s, 2*b.Length)
		for f := range b.Length {
			require.Equal(t, s[2*f], s[2*f+1])
		}
	}
}

func TestPipeline_AppliesEffects(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t, mp3test.NewCodec(), mp3test.Stream{Frames: 200}.Bytes(),
		pipeline.Config{Effects: []audio.Effect{&audio.Gain{Factor: 0.5}}})

	res, err := p.FillBuffers(context.Background(), 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Release() })

	assert.Equal(t, float32(0.5), res.Buffers[0].Samples()[0])
}

func TestPipeline_Seek(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t, mp3test.NewCodec(), mp3test.Stream{Frames: 300, Header: mp3test.Header48k}.Bytes(),
		pipeline.Config{BufferTime: 100 * time.Millisecond})

	res, err := p.FillBuffers(context.Background(), 2)
	require.NoError(t, err)
	require.NoError(t, res.Release())

	base, err := p.Seek(context.Background(), 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, base, 1e-12)
	assert.False(t, p.Ended())

	res, err = p.FillBuffers(context.Background(), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Release() })

	first := res.Buffers[0]
	assert.InDelta(t, 2.0, first.StartTime, 1.0/48000)
	// 96000 + 1105 frames into the decoder output lie in frame 84.
	assert.Equal(t, float32(85), first.Samples()[0])
	assertContiguous(t, res.Buffers)
}

func TestPipeline_SeekAfterEnd(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t, mp3test.NewCodec(), mp3test.Stream{Frames: 200}.Bytes(), pipeline.Config{})

	first, _ := fillAll(t, p, 16)
	require.True(t, p.Ended())
	require.False(t, p.Decoder().State().Started)

	_, err := p.Seek(context.Background(), 0)
	require.NoError(t, err)

	again, _ := fillAll(t, p, 16)
	assert.Equal(t, totalLength(first), totalLength(again))
	assert.Equal(t, first[0].Samples()[:16], again[0].Samples()[:16])
}

func TestPipeline_CanceledFill(t *testing.T) {
	t.Parallel()

	p, pool := newPipeline(t, mp3test.NewCodec(), mp3test.Stream{Frames: 200}.Bytes(), pipeline.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.FillBuffers(ctx, 4)
	require.ErrorIs(t, err, pipeline.ErrAbandoned)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Buffers)
	assert.Zero(t, pool.Stats().ByKind[audio.KindPCM])
}

func TestPipeline_InvalidFrames(t *testing.T) {
	t.Parallel()

	codec := mp3.NewCodec(mp3.WithFrameDecoder(mp3test.FrameDecoder{Strict: true}))
	s := mp3test.Stream{Frames: 300, Header: mp3test.Header48k, Garbage: map[int]int{
		20: mp3.MaxInvalidFrameCount * mp3.ResyncSkip,
	}}
	p, pool := newPipeline(t, codec, s.Bytes(), pipeline.Config{})

	var err error
	for range 100 {
		var res pipeline.Result
		res, err = p.FillBuffers(context.Background(), 1)
		if err != nil {
			break
		}
		require.NoError(t, res.Release())
	}
	require.ErrorIs(t, err, audio.ErrInvalidFrame)
	assert.Zero(t, pool.Stats().ByKind[audio.KindPCM])
}

func TestPipeline_Close(t *testing.T) {
	t.Parallel()

	p, pool := newPipeline(t, mp3test.NewCodec(), mp3test.Stream{Frames: 200}.Bytes(),
		pipeline.Config{DstRate: 22050})

	res, err := p.FillBuffers(context.Background(), 2)
	require.NoError(t, err)
	require.NoError(t, res.Release())
	require.Equal(t, 2, pool.Outstanding())

	p.Close()
	p.Close()
	assert.Zero(t, pool.Outstanding())
	assert.Nil(t, p.Decoder())

	_, err = p.FillBuffers(context.Background(), 1)
	require.ErrorIs(t, err, pipeline.ErrClosed)
	_, err = p.Seek(context.Background(), 1)
	require.ErrorIs(t, err, pipeline.ErrClosed)
}

func TestPipeline_ReusesPooledDecoder(t *testing.T) {
	t.Parallel()

	codec := mp3test.NewCodec()
	data := mp3test.Stream{Frames: 200}.Bytes()
	view := fileview.NewView(fileview.FromBytes("track.mp3", data))
	meta, err := codec.Demuxer.Demux(context.Background(), view)
	require.NoError(t, err)

	pool := audio.NewPool()
	cfg := pipeline.Config{Pool: pool, Codec: codec, Meta: meta, View: view}

	first, err := pipeline.New(cfg)
	require.NoError(t, err)
	dec := first.Decoder()
	first.Close()

	second, err := pipeline.New(cfg)
	require.NoError(t, err)
	defer second.Close()

	assert.Same(t, dec, second.Decoder())
	assert.True(t, second.Decoder().State().Started)
	assert.Equal(t, 1, pool.Stats().Reused)
	assert.Zero(t, second.Time())
}
