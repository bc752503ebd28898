// SPDX-License-Identifier: EPL-2.0

package mp3

import "github.com/ik5/gapless/audio"

// Name is the registry name of the codec.
const Name = "mp3"

// NewCodec returns the registry entry of the MP3 codec. opts are applied
// to every decoder it creates.
func NewCodec(opts ...Option) audio.Codec {
	return audio.Codec{
		Name: Name,
		New: func(targetBufferFrames int) (audio.Decoder, error) {
			return NewDecoder(targetBufferFrames, opts...), nil
		},
		Demuxer: Demuxer{},
		Locator: Locator{},
		Sniff:   Sniff,
	}
}
