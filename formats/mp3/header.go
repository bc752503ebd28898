// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"encoding/binary"

	"github.com/ik5/gapless/formats/wav"
)

// Header tag words, read big endian.
const (
	tagID3  = 0x494433 // top three bytes
	tagRIFF = 0x52494646
	tagWAVE = 0x57415645
	tagVBRI = 0x56425249
	tagXing = 0x58696e67
	tagInfo = 0x496e666f
	tagLAME = 0x4c414d45
	tagTAG  = 0x544147 // ID3v1, top three bytes
)

var (
	freqTab    = [3]int{44100, 48000, 32000}
	bitrateTab = [30]int{
		0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320,
		0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160,
	}
)

// Header is a parsed MPEG audio Layer III frame header.
type Header struct {
	LSF             bool // MPEG-2 or MPEG-2.5
	MPEG25          bool
	SampleRate      int
	BitRate         int // bits per second
	Padding         int
	Channels        int
	SamplesPerFrame int
	// FrameSize is the length of the frame in bytes, header included.
	FrameSize int
}

// ProbablyHeader reports whether h has a frame sync, Layer III and
// non-reserved bitrate and sample rate indexes.
func ProbablyHeader(h uint32) bool {
	return h&0xffe00000 == 0xffe00000 &&
		h&(3<<17) == 1<<17 &&
		h&(0xf<<12) != 0xf<<12 &&
		h&(3<<10) != 3<<10
}

// ParseHeader decodes h. Free-format frames are rejected.
func ParseHeader(h uint32) (Header, bool) {
	if !ProbablyHeader(h) {
		return Header{}, false
	}

	lsf, mpeg25 := 1, 1
	if h&(1<<20) != 0 {
		mpeg25 = 0
		if h&(1<<19) != 0 {
			lsf = 0
		}
	}

	sampleRate := freqTab[(h>>10)&3] >> (lsf + mpeg25)
	bitRate := bitrateTab[lsf*15+int((h>>12)&0xf)] * 1000
	if bitRate == 0 || sampleRate == 0 {
		return Header{}, false
	}

	padding := int((h >> 9) & 1)
	channels := 2
	if (h>>6)&3 == 3 {
		channels = 1
	}
	spf := 1152
	if lsf == 1 {
		spf = 576
	}

	return Header{
		LSF:             lsf == 1,
		MPEG25:          mpeg25 == 1,
		SampleRate:      sampleRate,
		BitRate:         bitRate,
		Padding:         padding,
		Channels:        channels,
		SamplesPerFrame: spf,
		FrameSize:       frameSize(bitRate, sampleRate, lsf) + padding,
	}, true
}

func frameSize(bitRate, sampleRate, lsf int) int {
	return bitRate / 1000 * 144000 / (sampleRate << lsf)
}

// AverageFrameSize is the mean frame length of a constant bitrate stream.
func (h Header) AverageFrameSize() float64 {
	return float64(h.BitRate/1000*144000) / float64(h.SampleRate<<h.lsf())
}

// MaxBytesPerAudioFrame is the compressed size of one audio frame at the
// highest bitrate of h's sample rate.
func (h Header) MaxBytesPerAudioFrame() float64 {
	return float64(frameSize(320000, h.SampleRate, h.lsf())+1) / float64(h.SamplesPerFrame)
}

func (h Header) lsf() int {
	if h.LSF {
		return 1
	}
	return 0
}

// FindFrame returns the offset of the first frame in b whose header parses
// and is followed by another header, an ID3v1 tag or the end of b. The
// frame may extend past len(b).
func FindFrame(b []byte) (int, Header, bool) {
	for i := 0; i+4 <= len(b); i++ {
		if b[i] != 0xff {
			continue
		}
		h, ok := ParseHeader(binary.BigEndian.Uint32(b[i:]))
		if !ok {
			continue
		}

		next := i + h.FrameSize
		if next+4 > len(b) {
			return i, h, true
		}
		word := binary.BigEndian.Uint32(b[next:])
		if ProbablyHeader(word) || word>>8 == tagTAG {
			return i, h, true
		}
	}
	return 0, Header{}, false
}

// Sniff reports whether head starts like an MP3 stream: an ID3v2 tag, an
// MPEG Layer III WAVE file or two consecutive frame headers.
func Sniff(head []byte) bool {
	if len(head) < 4 {
		return false
	}
	word := binary.BigEndian.Uint32(head)
	if word>>8 == tagID3 {
		return true
	}
	if word == tagRIFF {
		return len(head) >= 22 &&
			binary.BigEndian.Uint32(head[8:]) == tagWAVE &&
			binary.LittleEndian.Uint16(head[20:]) == wav.FormatMPEGLayer3
	}

	for i := 0; i+4 <= len(head); i++ {
		h, ok := ParseHeader(binary.BigEndian.Uint32(head[i:]))
		if !ok {
			continue
		}
		next := i + h.FrameSize
		if next+4 <= len(head) && ProbablyHeader(binary.BigEndian.Uint32(head[next:])) {
			return true
		}
	}
	return false
}
