// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
	"github.com/ik5/gapless/formats/wav"
)

const (
	// MinimumDuration is the shortest track, in seconds, the demuxer accepts.
	MinimumDuration = 3.0

	// DefaultEncoderDelay is assumed when no LAME tag states the delay.
	DefaultEncoderDelay = 576
	// VBRIEncoderDelay is the delay of encoders that write VBRI headers.
	VBRIEncoderDelay = 1159

	// DefaultMaxScanBytes bounds the search for the first frames.
	DefaultMaxScanBytes = 5 << 20

	blockSize = 16384
	// headersToConfirm is the number of consecutive frame headers that
	// must be found before the stream is accepted without a VBR tag.
	headersToConfirm = 5
	// scanTableSeconds is how far a VBR stream without metadata is
	// scanned while demuxing.
	scanTableSeconds = 30 * 60
)

var be = binary.BigEndian

// Demuxer reads MP3 stream metadata: the first frame header, Xing/Info
// and LAME tags, VBRI tables and MP3-in-WAV containers.
type Demuxer struct {
	// MaxScanBytes bounds the search for frame headers. Zero means
	// DefaultMaxScanBytes.
	MaxScanBytes int64
	// NoSeekTable skips the full scan of VBR streams without a tag.
	NoSeekTable bool
}

var _ audio.Demuxer = Demuxer{}

func ioErr(err error) error {
	return fmt.Errorf("%w: %w", audio.ErrIO, err)
}

// Demux returns the stream metadata, or nil when view does not hold an
// MP3 stream of at least MinimumDuration.
func (d Demuxer) Demux(ctx context.Context, view *fileview.View) (*audio.Metadata, error) {
	size := view.Size()
	if size < 4 {
		return nil, nil
	}
	if err := view.ReadBlockOfSizeAt(ctx, blockSize, 0, 4); err != nil {
		return nil, ioErr(err)
	}

	var offset int64
	if view.Uint32(0, be)>>8 == tagID3 {
		footer := int64((view.Uint8(5)>>4)&1) * 10
		tagSize := int64(view.Uint8(6))<<21 | int64(view.Uint8(7))<<14 | int64(view.Uint8(8))<<7 | int64(view.Uint8(9))
		offset = tagSize + 10 + footer
		if offset >= size {
			return nil, nil
		}
		if err := view.ReadBlockOfSizeAt(ctx, blockSize, offset, 4); err != nil {
			return nil, ioErr(err)
		}
	}

	if view.Uint32(offset, be) == tagRIFF && view.Uint32(offset+8, be) == tagWAVE {
		return demuxWAV(view.Source(), offset)
	}

	meta, err := d.scan(ctx, view, offset)
	if err != nil || meta == nil {
		return nil, err
	}

	if meta.Duration == 0 {
		data := max(0, meta.DataEnd-meta.DataStart)
		if !meta.VBR {
			meta.Duration = float64(data*8) / float64(meta.BitRate)
			meta.Frames = int(float64(meta.SampleRate) * meta.Duration / float64(meta.SamplesPerFrame))
		} else if !d.NoSeekTable {
			meta.SeekTable = audio.NewSeekTable(audio.SeekEntries{FramesPerEntry: 1})
			if err := fillSeekTable(ctx, view, meta, scanTableSeconds); err != nil {
				return nil, err
			}
			meta.Frames = meta.SeekTable.Frames()
			meta.Duration = float64(meta.Frames) * meta.FrameDuration()
		}
	}

	if meta.Duration < MinimumDuration {
		return nil, nil
	}
	if meta.VBR && meta.TOC == nil && meta.SeekTable == nil {
		meta.SeekTable = audio.NewSeekTable(audio.SeekEntries{FramesPerEntry: 1})
	}
	return meta, nil
}

func (d Demuxer) maxScan() int64 {
	if d.MaxScanBytes > 0 {
		return d.MaxScanBytes
	}
	return DefaultMaxScanBytes
}

// scan looks for confirmed frame headers from offset and parses the
// first VBR tag it meets.
func (d Demuxer) scan(ctx context.Context, view *fileview.View, offset int64) (*audio.Metadata, error) {
	limit := min(view.Size(), offset+d.maxScan())

	var (
		meta          *audio.Metadata
		firstFrameEnd int64
		headers       int
	)

	for pos := offset; pos < limit; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := view.ReadBlockOfSizeAt(ctx, blockSize, pos, 4); err != nil {
			return nil, ioErr(err)
		}

		for end := min(limit, pos+blockSize/2); pos < end; pos++ {
			word := view.Uint32(pos, be)

			switch {
			case ProbablyHeader(word):
				if headers >= headersToConfirm {
					return meta, nil
				}
				h, ok := ParseHeader(word)
				if !ok {
					continue
				}

				vbri := false
				if !ProbablyHeader(view.Uint32(pos+int64(h.FrameSize), be)) {
					if view.Uint32(pos+4+32, be) != tagVBRI {
						continue
					}
					vbri = true
				}

				headers++
				if meta == nil {
					meta = newMetadata(h, pos, view.Size())
					firstFrameEnd = pos + int64(h.FrameSize)
					if vbri {
						// Resume right before the VBRI tag.
						pos += 4 + 32 - 1
					}
					continue
				}
				if meta.BitRate != h.BitRate {
					meta.BitRate = h.BitRate
					meta.VBR = true
				}
				pos += int64(h.FrameSize) - 1

			case meta != nil && word == tagVBRI:
				parseVBRI(view, meta, pos, firstFrameEnd)
				return meta, nil

			case meta != nil && (word == tagXing || word == tagInfo):
				parseXing(view, meta, word, pos, firstFrameEnd)
				return meta, nil
			}
		}
	}

	return meta, nil
}

func newMetadata(h Header, pos, size int64) *audio.Metadata {
	return &audio.Metadata{
		Codec:                 "mp3",
		SampleRate:            h.SampleRate,
		Channels:              h.Channels,
		SamplesPerFrame:       h.SamplesPerFrame,
		LSF:                   h.LSF,
		EncoderDelay:          DefaultEncoderDelay,
		PaddingStartFrame:     audio.NoPadding,
		BitRate:               h.BitRate,
		AverageFrameSize:      h.AverageFrameSize(),
		MaxBytesPerAudioFrame: h.MaxBytesPerAudioFrame(),
		DataStart:             pos,
		DataEnd:               size,
	}
}

// parseXing reads a Xing or Info tag at pos. The frame holding the tag
// carries no audio, so data starts at frameEnd.
func parseXing(view *fileview.View, meta *audio.Metadata, word uint32, pos, frameEnd int64) {
	if word == tagXing {
		meta.VBR = true
	}

	p := pos + 4
	flags := view.Uint32(p, be)
	p += 4

	frames := -1
	if flags&0x1 != 0 {
		frames = int(view.Uint32(p, be))
		meta.Frames = frames
		meta.Duration = float64(frames) * meta.FrameDuration()
		p += 4
	}
	if flags&0x2 != 0 {
		p += 4
	}
	if flags&0x4 != 0 {
		toc := make([]byte, 100)
		for i := range toc {
			toc[i] = view.Uint8(p + int64(i))
		}
		meta.TOC = toc
		p += 100
	}
	if flags&0x8 != 0 {
		p += 4
	}

	if view.Uint32(p, be) == tagLAME {
		// Version string, revision, lowpass, replay gain and flags
		// precede the 24 bit delay/padding field.
		p += 9 + 1 + 1 + 8 + 1 + 1
		v := view.Uint32(p, be) >> 8
		meta.EncoderDelay = int(v >> 12)

		padding := int(v & 0xfff)
		if frames > 0 && padding > 0 {
			setPadding(meta, padding)
		}
	}

	meta.DataStart = frameEnd
}

// setPadding records the encoder padding, less what the decoder delay
// already consumes, and the frame in which it starts.
func setPadding(meta *audio.Metadata, padding int) {
	padding = max(0, padding-DecoderDelay)
	if padding == 0 {
		return
	}
	meta.EncoderPadding = padding
	exposedEnd := int(meta.TotalAudioFrames()) - padding
	meta.PaddingStartFrame = max(0, exposedEnd/meta.SamplesPerFrame)
}

// parseVBRI reads a VBRI header at pos and builds the seek table it carries.
func parseVBRI(view *fileview.View, meta *audio.Metadata, pos, frameEnd int64) {
	meta.VBR = true
	meta.EncoderDelay = VBRIEncoderDelay
	meta.DataStart = frameEnd

	p := pos + 4 + 10
	frames := int(view.Uint32(p, be))
	meta.Frames = frames
	meta.Duration = float64(frames) * meta.FrameDuration()
	p += 4

	entries := int(view.Uint16(p, be))
	scale := int64(view.Uint16(p+2, be))
	entrySize := int(view.Uint16(p+4, be))
	framesPerEntry := int(view.Uint16(p+6, be))
	p += 8

	var read func(off int64) int64
	switch entrySize {
	case 4:
		read = func(off int64) int64 { return int64(view.Uint32(off, be)) }
	case 3:
		read = func(off int64) int64 { return int64(view.Uint32(off, be) >> 8) }
	case 2:
		read = func(off int64) int64 { return int64(view.Uint16(off, be)) }
	case 1:
		read = func(off int64) int64 { return int64(view.Uint8(off)) }
	default:
		return
	}
	if framesPerEntry == 0 {
		return
	}

	offsets := make([]int64, entries+1)
	offsets[0] = frameEnd
	for j := range entries {
		offsets[j+1] = offsets[j] + read(p+int64(j*entrySize))*scale
	}

	meta.SeekTable = audio.NewSeekTable(audio.SeekEntries{
		Offsets:        offsets,
		Frames:         frames,
		FramesPerEntry: framesPerEntry,
		FilledUntil:    meta.Duration,
		FromMetadata:   true,
	})
}

// demuxWAV reads an MPEG Layer III WAVE container starting at offset.
func demuxWAV(src fileview.Source, offset int64) (*audio.Metadata, error) {
	info, err := wav.Inspect(src, offset)
	if err != nil || info.AudioFormat != wav.FormatMPEGLayer3 || info.SampleRate == 0 {
		return nil, nil
	}

	lsf := info.SampleRate < 32000
	spf := MaxAudioFramesPerFrame
	lsfShift := 0
	if lsf {
		spf = MaxAudioFramesPerFrame / 2
		lsfShift = 1
	}

	var duration float64
	var frames int
	if info.FactSamples > 0 {
		duration = float64(info.FactSamples) / float64(info.SampleRate)
		frames = int(info.FactSamples / int64(spf))
	} else if info.ByteRate > 0 {
		duration = float64(max(0, info.DataEnd-info.DataStart)) / float64(info.ByteRate)
		frames = int(duration * float64(info.SampleRate) / float64(spf))
	}
	if duration < MinimumDuration {
		return nil, nil
	}

	return &audio.Metadata{
		Codec:                 "mp3",
		SampleRate:            info.SampleRate,
		Channels:              info.Channels,
		Frames:                frames,
		SamplesPerFrame:       spf,
		LSF:                   lsf,
		EncoderDelay:          info.CodecDelay,
		PaddingStartFrame:     audio.NoPadding,
		BitRate:               info.ByteRate * 8,
		AverageFrameSize:      float64(info.BlockSize),
		MaxBytesPerAudioFrame: float64(frameSize(320000, info.SampleRate, lsfShift)+1) / float64(spf),
		DataStart:             info.DataStart,
		DataEnd:               info.DataEnd,
		Duration:              duration,
	}, nil
}

// fillSeekTable scans frame headers of a VBR stream until the table
// covers until seconds or the data ends.
func fillSeekTable(ctx context.Context, view *fileview.View, meta *audio.Metadata, until float64) error {
	t := meta.SeekTable
	if t == nil || t.FromMetadata() || t.FilledUntil() >= until {
		return nil
	}
	maxFrames := int(math.Ceil(until * float64(meta.SampleRate) / float64(meta.SamplesPerFrame)))

	return t.Update(func(e *audio.SeekEntries) error {
		pos := meta.DataStart
		if e.Frames > 0 {
			pos = e.Offsets[e.Frames-1] + int64(e.LastFrameSize)
		}

		for e.Frames < maxFrames && pos < meta.DataEnd {
			if err := view.ReadBlockOfSizeAt(ctx, blockSize, pos, 4); err != nil {
				return ioErr(err)
			}
			for end := min(meta.DataEnd, pos+blockSize/2); pos < end && e.Frames < maxFrames; {
				h, ok := ParseHeader(view.Uint32(pos, be))
				if !ok {
					pos++
					continue
				}
				e.Offsets = append(e.Offsets, pos)
				e.Frames++
				e.LastFrameSize = h.FrameSize
				pos += int64(h.FrameSize)
			}
		}

		e.FilledUntil = float64(e.Frames) * meta.FrameDuration()
		if pos >= meta.DataEnd {
			e.FilledUntil = math.Inf(1)
		}
		return nil
	})
}
