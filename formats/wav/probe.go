// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
)

// WAVE format tags.
const (
	FormatPCM        = 0x0001
	FormatFloat      = 0x0003
	FormatMPEGLayer3 = 0x0055
)

// Info describes a RIFF/WAVE container.
type Info struct {
	AudioFormat int
	Channels    int
	SampleRate  int
	ByteRate    int
	BitDepth    int

	// MPEGLAYER3WAVEFORMAT extension, zero for other formats.
	BlockSize  int
	CodecDelay int

	// FactSamples is the sample count of the fact chunk, 0 when absent.
	FactSamples int64

	DataStart int64
	DataEnd   int64
}

// Inspect parses the RIFF/WAVE container that starts at offset of src.
func Inspect(src fileview.Source, offset int64) (Info, error) {
	if offset < 0 || offset >= src.Size() {
		return Info{}, ErrNotWavFile
	}

	sr := io.NewSectionReader(src, offset, src.Size()-offset)
	dec := wav.NewDecoder(sr)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrNotWavFile, err)
	}
	if dec.NumChans == 0 || dec.SampleRate == 0 {
		return Info{}, ErrNotWavFile
	}

	info := Info{
		AudioFormat: int(dec.WavAudioFormat),
		Channels:    int(dec.NumChans),
		SampleRate:  int(dec.SampleRate),
		ByteRate:    int(dec.AvgBytesPerSec),
		BitDepth:    int(dec.BitDepth),
	}

	if err := dec.FwdToPCM(); err != nil || dec.PCMChunk == nil {
		return Info{}, ErrNoDataChunk
	}
	pos, err := sr.Seek(0, io.SeekCurrent)
	if err != nil {
		return Info{}, fmt.Errorf("%w", err)
	}
	info.DataStart = offset + pos
	info.DataEnd = src.Size()
	if dec.PCMSize > 0 {
		info.DataEnd = min(src.Size(), info.DataStart+int64(dec.PCMSize))
	}

	if err := readExtension(src, offset, &info); err != nil {
		return Info{}, err
	}
	return info, nil
}

// readExtension reads the fields go-audio/wav skips: the MPEG Layer III
// block size and codec delay, and the fact chunk.
func readExtension(src fileview.Source, offset int64, info *Info) error {
	var hdr [8]byte
	if _, err := src.ReadAt(hdr[:], offset+12); err != nil {
		return fmt.Errorf("%w", err)
	}
	if string(hdr[:4]) != "fmt " {
		return ErrUnsupportedWavLayout
	}

	fmtData := offset + 20
	fmtSize := int64(binary.LittleEndian.Uint32(hdr[4:]))

	if info.AudioFormat == FormatMPEGLayer3 && fmtSize >= 30 {
		var ext [30]byte
		if _, err := src.ReadAt(ext[:], fmtData); err != nil {
			return fmt.Errorf("%w", err)
		}
		info.BlockSize = int(binary.LittleEndian.Uint16(ext[24:]))
		info.CodecDelay = int(binary.LittleEndian.Uint16(ext[28:]))
	}

	pos := fmtData + fmtSize + fmtSize&1
	for pos < info.DataStart-8 {
		if _, err := src.ReadAt(hdr[:], pos); err != nil {
			return fmt.Errorf("%w", err)
		}
		size := int64(binary.LittleEndian.Uint32(hdr[4:]))
		if string(hdr[:4]) == "fact" && size >= 4 {
			var n [4]byte
			if _, err := src.ReadAt(n[:], pos+8); err != nil {
				return fmt.Errorf("%w", err)
			}
			info.FactSamples = int64(binary.LittleEndian.Uint32(n[:]))
			break
		}
		pos += 8 + size + size&1
	}
	return nil
}

// FormatName is the short name of a format tag.
func FormatName(tag int) string {
	switch tag {
	case FormatPCM:
		return "wav/pcm"
	case FormatFloat:
		return "wav/float"
	case FormatMPEGLayer3:
		return "wav/mp3"
	default:
		return fmt.Sprintf("wav/0x%04x", tag)
	}
}

// Probe identifies RIFF/WAVE sources for an audio.Registry.
func Probe(src fileview.Source) (audio.StreamInfo, bool) {
	info, err := Inspect(src, 0)
	if err != nil {
		return audio.StreamInfo{}, false
	}
	return audio.StreamInfo{
		Format:     FormatName(info.AudioFormat),
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
	}, true
}
