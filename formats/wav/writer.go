// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/ik5/gapless/utils"
)

// Writer streams interleaved float32 audio into a 16-bit PCM WAV file.
// Close must be called to finalize the header.
type Writer struct {
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	frames int64
}

func NewWriter(w io.WriteSeeker, sampleRate, channels int) *Writer {
	return &Writer{
		enc: wav.NewEncoder(w, sampleRate, 16, channels, FormatPCM),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}
}

// Write appends interleaved samples. len(samples) must be a multiple of
// the channel count.
func (w *Writer) Write(samples []float32) error {
	ch := w.buf.Format.NumChannels
	if len(samples)%ch != 0 {
		return fmt.Errorf("%d samples for %d channels: %w", len(samples), ch, ErrUnsupportedWavLayout)
	}

	data := w.buf.Data[:0]
	for _, s := range samples {
		data = append(data, int(utils.Float32ToInt16(s)))
	}
	w.buf.Data = data

	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("%w", err)
	}
	w.frames += int64(len(samples) / ch)
	return nil
}

// Frames is the number of audio frames written so far.
func (w *Writer) Frames() int64 { return w.frames }

func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// WriteWAV16 writes interleaved int16 PCM as a complete WAV file.
func WriteWAV16(w io.WriteSeeker, sampleRate, channels int, samples []int16) error {
	enc := wav.NewEncoder(w, sampleRate, 16, channels, FormatPCM)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("%w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}
