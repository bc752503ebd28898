// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"math"
	"sync"
)

// NoPadding marks metadata without a padding start frame.
const NoPadding = -1

// Metadata describes a demuxed track. Frame counts refer to compressed
// frames; delays and padding are audio frames.
type Metadata struct {
	Codec      string
	SampleRate int
	Channels   int

	// Frames is the number of compressed frames, 0 when unknown.
	Frames          int
	SamplesPerFrame int
	LSF             bool

	EncoderDelay   int
	EncoderPadding int
	// PaddingStartFrame is the index of the first compressed frame that
	// carries encoder padding, or NoPadding.
	PaddingStartFrame int

	BitRate               int
	VBR                   bool
	AverageFrameSize      float64
	MaxBytesPerAudioFrame float64

	DataStart int64
	DataEnd   int64
	Duration  float64

	// TOC is the 100 entry Xing table of contents, if present.
	TOC       []byte
	SeekTable *SeekTable
}

// TotalAudioFrames is the number of audio frames the stream encodes,
// including delay and padding.
func (m *Metadata) TotalAudioFrames() int64 {
	return int64(m.Frames) * int64(m.SamplesPerFrame)
}

// FrameDuration is the duration of one compressed frame in seconds.
func (m *Metadata) FrameDuration() float64 {
	if m.SampleRate == 0 {
		return 0
	}
	return float64(m.SamplesPerFrame) / float64(m.SampleRate)
}

// SeekResult is what a FrameLocator hands to Decoder.ApplySeek.
type SeekResult struct {
	// Offset is the byte position decoding resumes from.
	Offset int64
	// Frame is the compressed frame index at Offset.
	Frame int
	// SamplesToSkip is the number of decoded audio frames to drop
	// before the first exposed sample.
	SamplesToSkip int
	// Time is the presentation time of the first exposed sample.
	Time float64
}

// SeekEntries is the mutable state of a SeekTable.
type SeekEntries struct {
	// Offsets[i] is the byte offset of compressed frame i*FramesPerEntry.
	Offsets        []int64
	Frames         int
	FramesPerEntry int
	LastFrameSize  int
	FilledUntil    float64
	FromMetadata   bool
}

// SeekTable maps compressed frames to byte offsets. Tables built from a
// VBRI header are complete; scanned tables are filled lazily and may be
// shared by every session playing the same source.
type SeekTable struct {
	mu sync.Mutex
	e  SeekEntries
}

func NewSeekTable(e SeekEntries) *SeekTable {
	if e.FramesPerEntry <= 0 {
		e.FramesPerEntry = 1
	}
	return &SeekTable{e: e}
}

// Update runs fn with exclusive access to the table.
func (t *SeekTable) Update(fn func(e *SeekEntries) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fn(&t.e)
}

func (t *SeekTable) FilledUntil() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.e.FilledUntil
}

func (t *SeekTable) Frames() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.e.Frames
}

func (t *SeekTable) FromMetadata() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.e.FromMetadata
}

// ClosestFrameOf rounds frame to the nearest frame that has an entry.
func (t *SeekTable) ClosestFrameOf(frame int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closestLocked(frame)
}

func (t *SeekTable) closestLocked(frame int) int {
	frame = max(0, min(t.e.Frames, frame))
	fpe := t.e.FramesPerEntry
	idx := int(math.Round(float64(frame) / float64(fpe)))
	if n := len(t.e.Offsets); n > 0 {
		idx = min(idx, n-1)
	}

	return idx * fpe
}

// OffsetOfFrame returns the byte offset of the entry closest to frame.
func (t *SeekTable) OffsetOfFrame(frame int) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.e.Offsets) == 0 {
		return 0, false
	}
	idx := t.closestLocked(frame) / t.e.FramesPerEntry

	return t.e.Offsets[idx], true
}
