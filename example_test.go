// SPDX-License-Identifier: EPL-2.0

package gapless_test

import (
	"context"
	"fmt"

	"github.com/ik5/gapless"
	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
	"github.com/ik5/gapless/formats/mp3/mp3test"
	"github.com/ik5/gapless/session"
)

// ExampleDecodeAll decodes a synthetic MP3 stream. The decoder delay and
// the encoder delay are trimmed from the start.
func ExampleDecodeAll() {
	data := mp3test.Stream{Frames: 300, Header: mp3test.Header48k}.Bytes()

	reg := audio.NewRegistry()
	reg.Register(mp3test.NewCodec())

	track, err := gapless.DecodeAll(context.Background(), fileview.FromBytes("a.mp3", data),
		session.Options{Registry: reg})
	if err != nil {
		fmt.Println("decode error:", err)
		return
	}

	fmt.Printf("%d frames at %d Hz, %d channels\n", track.Frames(), track.SampleRate, track.Channels)
	// Output: 344495 frames at 48000 Hz, 2 channels
}

// ExampleStream plays two tracks back to back, resampled to 44.1 kHz
// mono.
func ExampleStream() {
	reg := audio.NewRegistry()
	reg.Register(mp3test.NewCodec())

	a := fileview.FromBytes("a.mp3", mp3test.Stream{Frames: 200, Header: mp3test.Header48k}.Bytes())
	b := fileview.FromBytes("b.mp3", mp3test.Stream{Frames: 200}.Bytes())

	var samples int
	res, err := gapless.Stream(context.Background(), sinkFunc(func(s []float32) error {
		samples += len(s)
		return nil
	}), session.Options{Registry: reg, DstRate: 44100, DstChannels: 1}, 0, a, b)
	if err != nil {
		fmt.Println("stream error:", err)
		return
	}

	fmt.Println(len(res.Tracks), "tracks,", res.Channels, "channel,", int64(samples) == res.Frames)
	// Output: 2 tracks, 1 channel, true
}

type sinkFunc func([]float32) error

func (f sinkFunc) Write(s []float32) error { return f(s) }
