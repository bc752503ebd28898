// SPDX-License-Identifier: EPL-2.0

// Package mp3test builds synthetic MP3 streams and decodes them without
// a real MP3 decoder.
//
// Synthetic frames carry valid headers, zeroed side information and
// their ordinal, starting at 1, in the last four bytes. FrameDecoder
// turns every frame into SamplesPerFrame audio frames whose samples all
// equal the ordinal, which makes dropped or duplicated frames visible.
package mp3test

import (
	"encoding/binary"

	"github.com/ik5/gapless/formats/mp3"
)

const (
	// Header44k is MPEG-1 Layer III, 128 kbit/s, 44.1 kHz, joint stereo,
	// without padding: 417 byte frames.
	Header44k uint32 = 0xFFFB9064
	// Header44kMono is the single channel variant of Header44k.
	Header44kMono uint32 = 0xFFFB90C4
	// Header48k is MPEG-1 Layer III, 128 kbit/s, 48 kHz: 384 byte frames.
	Header48k uint32 = 0xFFFB9464
)

// Stream describes a synthetic stream.
type Stream struct {
	// Frames is the number of audio frames, excluding any tag frame.
	Frames int
	// Header is the frame header, Header44k when zero.
	Header uint32

	// ID3Size prepends an ID3v2 tag with this many payload bytes.
	ID3Size int

	// Xing prepends a tag frame with a frame count and a LAME tag.
	Xing bool
	// VBR writes "Xing" instead of "Info".
	VBR bool
	// TOC adds a linear table of contents to the Xing tag.
	TOC            bool
	EncoderDelay   int
	EncoderPadding int

	// VBRI prepends a VBRI tag frame with a seek table of
	// VBRIFramesPerEntry frames per entry.
	VBRI               bool
	VBRIFramesPerEntry int

	// Garbage inserts zero bytes before the audio frame with the given
	// index.
	Garbage map[int]int
}

func (s Stream) header() mp3.Header {
	word := s.Header
	if word == 0 {
		word = Header44k
	}
	h, ok := mp3.ParseHeader(word)
	if !ok {
		panic("mp3test: invalid header")
	}
	return h
}

func (s Stream) word() uint32 {
	if s.Header == 0 {
		return Header44k
	}
	return s.Header
}

// FrameSize is the byte length of every frame of the stream.
func (s Stream) FrameSize() int { return s.header().FrameSize }

// SamplesPerFrame is the number of audio frames per frame.
func (s Stream) SamplesPerFrame() int { return s.header().SamplesPerFrame }

// SampleRate of the stream.
func (s Stream) SampleRate() int { return s.header().SampleRate }

// AudioStart is the offset of the first audio frame.
func (s Stream) AudioStart() int64 {
	off := int64(0)
	if s.ID3Size > 0 {
		off += 10 + int64(s.ID3Size)
	}
	if s.Xing || s.VBRI {
		off += int64(s.FrameSize())
	}
	return off
}

// FrameOffset is the offset of audio frame i.
func (s Stream) FrameOffset(i int) int64 {
	off := s.AudioStart() + int64(i*s.FrameSize())
	for at, n := range s.Garbage {
		if at <= i {
			off += int64(n)
		}
	}
	return off
}

// Bytes renders the stream.
func (s Stream) Bytes() []byte {
	size := s.FrameSize()
	var out []byte

	if s.ID3Size > 0 {
		n := s.ID3Size
		out = append(out, 'I', 'D', '3', 4, 0, 0,
			byte(n>>21&0x7f), byte(n>>14&0x7f), byte(n>>7&0x7f), byte(n&0x7f))
		out = append(out, make([]byte, n)...)
	}

	switch {
	case s.Xing:
		out = append(out, s.xingFrame()...)
	case s.VBRI:
		out = append(out, s.vbriFrame()...)
	}

	for i := range s.Frames {
		if n := s.Garbage[i]; n > 0 {
			out = append(out, make([]byte, n)...)
		}
		out = append(out, Frame(s.word(), size, uint32(i+1))...)
	}
	return out
}

// Frame renders one synthetic frame.
func Frame(header uint32, size int, ordinal uint32) []byte {
	f := make([]byte, size)
	binary.BigEndian.PutUint32(f, header)
	binary.BigEndian.PutUint32(f[size-4:], ordinal)
	return f
}

// Ordinal reads the ordinal of a synthetic frame.
func Ordinal(frame []byte) uint32 {
	return binary.BigEndian.Uint32(frame[len(frame)-4:])
}

// tagOffset is where Xing and VBRI tags start in an MPEG-1 stereo frame.
const tagOffset = 4 + 32

func (s Stream) xingFrame() []byte {
	f := make([]byte, s.FrameSize())
	binary.BigEndian.PutUint32(f, s.word())

	p := tagOffset
	if s.VBR {
		copy(f[p:], "Xing")
	} else {
		copy(f[p:], "Info")
	}
	p += 4

	flags := uint32(0x1)
	if s.TOC {
		flags |= 0x4
	}
	binary.BigEndian.PutUint32(f[p:], flags)
	p += 4
	binary.BigEndian.PutUint32(f[p:], uint32(s.Frames))
	p += 4
	if s.TOC {
		for i := range 100 {
			f[p+i] = byte(i * 256 / 100)
		}
		p += 100
	}

	copy(f[p:], "LAME3.100")
	p += 21
	v := uint32(s.EncoderDelay&0xfff)<<12 | uint32(s.EncoderPadding&0xfff)
	f[p], f[p+1], f[p+2] = byte(v>>16), byte(v>>8), byte(v)

	return f
}

func (s Stream) vbriFrame() []byte {
	size := s.FrameSize()
	fpe := max(1, s.VBRIFramesPerEntry)
	entries := (s.Frames + fpe - 1) / fpe

	f := make([]byte, size)
	binary.BigEndian.PutUint32(f, s.word())

	p := tagOffset
	copy(f[p:], "VBRI")
	binary.BigEndian.PutUint16(f[p+4:], 1) // version
	binary.BigEndian.PutUint32(f[p+14:], uint32(s.Frames))
	binary.BigEndian.PutUint16(f[p+18:], uint16(entries))
	binary.BigEndian.PutUint16(f[p+20:], 1) // scale
	binary.BigEndian.PutUint16(f[p+22:], 2) // bytes per entry
	binary.BigEndian.PutUint16(f[p+24:], uint16(fpe))
	p += 26
	for range entries {
		binary.BigEndian.PutUint16(f[p:], uint16(fpe*size))
		p += 2
	}

	return f
}

// WrapWAV embeds an MP3 stream in an MPEG Layer III WAVE container.
// A zero factSamples omits the fact chunk.
func WrapWAV(payload []byte, sampleRate, channels, codecDelay int, factSamples uint32) []byte {
	le16 := func(b []byte, v int) []byte { return binary.LittleEndian.AppendUint16(b, uint16(v)) }
	le32 := func(b []byte, v int) []byte { return binary.LittleEndian.AppendUint32(b, uint32(v)) }

	var body []byte
	body = append(body, "WAVEfmt "...)
	body = le32(body, 30)
	body = le16(body, 0x0055)
	body = le16(body, channels)
	body = le32(body, sampleRate)
	body = le32(body, 16000) // 128 kbit/s
	body = le16(body, 1)
	body = le16(body, 0)
	body = le16(body, 12)
	body = le16(body, 1)
	body = le32(body, 0)
	body = le16(body, 417)
	body = le16(body, 1)
	body = le16(body, codecDelay)
	if factSamples > 0 {
		body = append(body, "fact"...)
		body = le32(body, 4)
		body = le32(body, int(factSamples))
	}
	body = append(body, "data"...)
	body = le32(body, len(payload))
	body = append(body, payload...)

	out := append([]byte("RIFF"), binary.LittleEndian.AppendUint32(nil, uint32(len(body)))...)
	return append(out, body...)
}
