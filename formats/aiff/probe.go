// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"io"

	"github.com/go-audio/aiff"
	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
)

// Info is the COMM chunk of an AIFF file.
type Info struct {
	Channels   int
	SampleRate int
	BitDepth   int
}

// Inspect reads the AIFF headers of src.
func Inspect(src fileview.Source) (Info, error) {
	dec := aiff.NewDecoder(io.NewSectionReader(src, 0, src.Size()))
	if !dec.IsValidFile() {
		return Info{}, ErrNotAiffFile
	}
	return Info{
		Channels:   int(dec.NumChans),
		SampleRate: dec.SampleRate,
		BitDepth:   int(dec.BitDepth),
	}, nil
}

// Probe identifies AIFF sources for an audio.Registry.
func Probe(src fileview.Source) (audio.StreamInfo, bool) {
	info, err := Inspect(src)
	if err != nil {
		return audio.StreamInfo{}, false
	}
	return audio.StreamInfo{Format: "aiff", SampleRate: info.SampleRate, Channels: info.Channels}, true
}
