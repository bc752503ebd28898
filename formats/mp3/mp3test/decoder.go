// SPDX-License-Identifier: EPL-2.0

package mp3test

import (
	"encoding/binary"

	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/formats/mp3"
)

// FrameDecoder is a deterministic mp3.FrameDecoder for synthetic
// streams. It is stateless and may be shared between decoders.
type FrameDecoder struct {
	// Strict decodes only a complete frame at the start of src, so that
	// any leading garbage is reported as undecodable. Otherwise leading
	// garbage is skipped like the go-mp3 decoder does.
	Strict bool
}

var _ mp3.FrameDecoder = FrameDecoder{}

func (f FrameDecoder) DecodeFrame(src []byte, dst []float32) (int, int, int, int) {
	i, h, ok := 0, mp3.Header{}, false
	if f.Strict {
		if len(src) >= 4 {
			h, ok = mp3.ParseHeader(binary.BigEndian.Uint32(src))
		}
		if !ok || h.FrameSize > len(src) {
			return 0, 0, 0, 0
		}
	} else {
		i, h, ok = mp3.FindFrame(src)
		if !ok {
			return max(0, len(src)-3), 0, 0, 0
		}
		if i+h.FrameSize > len(src) {
			return i, 0, 0, 0
		}
	}

	end := i + h.FrameSize
	value := float32(Ordinal(src[i:end]))
	samples := dst[:h.SamplesPerFrame*h.Channels]
	for j := range samples {
		samples[j] = value
	}

	return end, h.SamplesPerFrame, h.SampleRate, h.Channels
}

func (FrameDecoder) Reset() {}

// NewCodec is the mp3 codec decoding with FrameDecoder.
func NewCodec(opts ...mp3.Option) audio.Codec {
	return mp3.NewCodec(append([]mp3.Option{mp3.WithFrameDecoder(FrameDecoder{})}, opts...)...)
}
