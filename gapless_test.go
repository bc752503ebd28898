// SPDX-License-Identifier: EPL-2.0

package gapless_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ik5/gapless"
	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
	"github.com/ik5/gapless/formats/mp3"
	"github.com/ik5/gapless/formats/mp3/mp3test"
	"github.com/ik5/gapless/formats/wav"
	"github.com/ik5/gapless/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func track48k(name string, frames int) fileview.Source {
	return fileview.FromBytes(name, mp3test.Stream{Frames: frames, Header: mp3test.Header48k}.Bytes())
}

func options(pool *audio.Pool) session.Options {
	reg := audio.NewRegistry()
	reg.Register(mp3test.NewCodec())
	reg.RegisterProbe("wav", wav.Probe)
	return session.Options{Pool: pool, Registry: reg}
}

func pcmWAV(t *testing.T) fileview.Source {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, wav.WriteWAV16(f, 8000, 1, make([]int16, 8000)))
	require.NoError(t, f.Close())

	src, err := fileview.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	reg := gapless.DefaultRegistry(0)
	assert.Equal(t, []string{mp3.Name}, reg.Names())

	c, err := reg.Detect(t.Context(), track48k("a.mp3", 10))
	require.NoError(t, err)
	assert.Equal(t, mp3.Name, c.Name)

	_, err = reg.Detect(t.Context(), pcmWAV(t))
	assert.ErrorIs(t, err, audio.ErrCodecNotSupported)
	assert.Contains(t, err.Error(), "wav/pcm")
}

func TestDecodeAll(t *testing.T) {
	t.Parallel()

	pool := audio.NewPool()
	track, err := gapless.DecodeAll(t.Context(), track48k("a.mp3", 300), options(pool))
	require.NoError(t, err)

	assert.Equal(t, 48000, track.SampleRate)
	assert.Equal(t, 2, track.Channels)
	require.NotNil(t, track.Meta)
	assert.Equal(t, 300, track.Meta.Frames)
	assert.Equal(t, 300*1152-mp3.DecoderDelay-track.Meta.EncoderDelay, track.Frames())
	assert.Equal(t, float32(1), track.Samples[0])
	assert.Equal(t, float32(300), track.Samples[len(track.Samples)-1])
	assert.Zero(t, pool.Outstanding())
}

func TestDecodeAll_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := gapless.DecodeAll(t.Context(), pcmWAV(t), options(nil))
	assert.ErrorIs(t, err, audio.ErrCodecNotSupported)
}

func TestDecodeAll_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := gapless.DecodeAll(ctx, track48k("a.mp3", 10), options(nil))
	assert.ErrorIs(t, err, context.Canceled)
}

type recorder struct {
	samples []float32
	fail    error
}

func (r *recorder) Write(samples []float32) error {
	if r.fail != nil {
		return r.fail
	}
	r.samples = append(r.samples, samples...)
	return nil
}

func TestStream_Gapless(t *testing.T) {
	t.Parallel()

	pool := audio.NewPool()
	rec := &recorder{}
	res, err := gapless.Stream(t.Context(), rec, options(pool), 0,
		track48k("a.mp3", 300), track48k("b.mp3", 200))
	require.NoError(t, err)

	require.Len(t, res.Tracks, 2)
	assert.Equal(t, 300, res.Tracks[0].Frames)
	assert.Equal(t, 200, res.Tracks[1].Frames)
	assert.Equal(t, 2, res.Channels)
	assert.Equal(t, int64(len(rec.samples)/2), res.Frames)

	// Ordinals rise through the first track, restart once and rise
	// through the second.
	restarts := 0
	for i := 1; i < len(rec.samples); i++ {
		prev, cur := rec.samples[i-1], rec.samples[i]
		if cur < prev {
			restarts++
			assert.Equal(t, float32(300), prev)
			assert.Equal(t, float32(1), cur)
		}
	}
	assert.Equal(t, 1, restarts)
	assert.Equal(t, float32(200), rec.samples[len(rec.samples)-1])
	assert.Zero(t, pool.Outstanding())
}

func TestStream_Errors(t *testing.T) {
	t.Parallel()

	_, err := gapless.Stream(t.Context(), &recorder{}, options(nil), 0)
	assert.ErrorIs(t, err, audio.ErrInvalidConfig)

	_, err = gapless.Stream(t.Context(), &recorder{}, session.Options{DstChannels: 9}, 0, track48k("a.mp3", 10))
	assert.ErrorIs(t, err, audio.ErrChannelCount)

	sinkErr := errors.New("disk full")
	pool := audio.NewPool()
	_, err = gapless.Stream(t.Context(), &recorder{fail: sinkErr}, options(pool), 0, track48k("a.mp3", 300))
	assert.ErrorIs(t, err, sinkErr)
	assert.Zero(t, pool.Outstanding())
}
