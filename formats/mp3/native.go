// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/ik5/gapless/utils"
)

// FrameDecoder decodes one compressed frame at a time.
type FrameDecoder interface {
	// DecodeFrame decodes the first frame found in src into dst, which
	// holds room for MaxAudioFramesPerFrame*MaxChannels samples. consumed
	// is the number of input bytes used up, including skipped garbage.
	// frames is 0 when no frame was decoded.
	DecodeFrame(src []byte, dst []float32) (consumed, frames, sampleRate, channels int)
	// Reset drops the bit reservoir and any other inter-frame state.
	Reset()
}

// NativeDecoder is the go-mp3 backed FrameDecoder. It hands exactly one
// frame at a time to a persistent go-mp3 decoder so that the bit
// reservoir carries over between frames.
type NativeDecoder struct {
	feed bytes.Buffer
	dec  *gomp3.Decoder
	pcm  []byte
}

func NewNativeDecoder() *NativeDecoder {
	return &NativeDecoder{pcm: make([]byte, MaxAudioFramesPerFrame*4)}
}

func (n *NativeDecoder) DecodeFrame(src []byte, dst []float32) (int, int, int, int) {
	i, h, ok := FindFrame(src)
	if !ok {
		return max(0, len(src)-3), 0, 0, 0
	}
	end := i + h.FrameSize
	if end > len(src) {
		return i, 0, 0, 0
	}

	n.feed.Write(src[i:end])
	if !n.decode(h) {
		// Rejected frames still occupy their slot in the timeline.
		clear(dst[:h.SamplesPerFrame*h.Channels])
		return end, h.SamplesPerFrame, h.SampleRate, h.Channels
	}

	pcm := n.pcm[:h.SamplesPerFrame*4]
	if h.Channels == 2 {
		utils.Int16LEToFloat32(dst[:h.SamplesPerFrame*2], pcm)
	} else {
		for f := range h.SamplesPerFrame {
			dst[f] = utils.Int16ToFloat32(int16(uint16(pcm[f*4]) | uint16(pcm[f*4+1])<<8))
		}
	}

	return end, h.SamplesPerFrame, h.SampleRate, h.Channels
}

// decode runs the buffered frame through go-mp3, which always produces
// interleaved stereo int16.
func (n *NativeDecoder) decode(h Header) bool {
	if n.dec == nil {
		dec, err := gomp3.NewDecoder(&n.feed)
		if err != nil {
			n.Reset()
			return false
		}
		n.dec = dec
	}

	if _, err := io.ReadFull(n.dec, n.pcm[:h.SamplesPerFrame*4]); err != nil {
		n.Reset()
		return false
	}
	return true
}

func (n *NativeDecoder) Reset() {
	n.dec = nil
	n.feed.Reset()
}
