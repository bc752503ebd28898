// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"bytes"
	"io"

	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
	"github.com/jfreymuth/oggvorbis"
)

var capturePattern = []byte("OggS")

// Probe identifies Ogg Vorbis sources for an audio.Registry.
func Probe(src fileview.Source) (audio.StreamInfo, bool) {
	head := make([]byte, len(capturePattern))
	if _, err := src.ReadAt(head, 0); err != nil || !bytes.Equal(head, capturePattern) {
		return audio.StreamInfo{}, false
	}

	format, err := oggvorbis.GetFormat(io.NewSectionReader(src, 0, src.Size()))
	if err != nil {
		// Ogg but not Vorbis, or a damaged first page.
		return audio.StreamInfo{Format: "ogg"}, true
	}
	return audio.StreamInfo{
		Format:     "ogg/vorbis",
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
	}, true
}
