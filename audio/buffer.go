// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"sync"

	goaudio "github.com/go-audio/audio"
)

// BufferInfo is the timing part of a BufferDescriptor.
type BufferInfo struct {
	Length    int
	StartTime float64
	EndTime   float64
}

// BufferDescriptor is one timestamped run of interleaved PCM. The PCM
// storage is a pool entry and must be released by whoever holds it last.
type BufferDescriptor struct {
	BufferInfo

	PCM *goaudio.Float32Buffer

	once   sync.Once
	handle *Handle
}

// NewBufferDescriptor wraps a KindPCM handle holding length audio frames.
// A nil handle produces an empty descriptor.
func NewBufferDescriptor(h *Handle, length int, start, end float64) *BufferDescriptor {
	b := &BufferDescriptor{
		BufferInfo: BufferInfo{Length: length, StartTime: start, EndTime: end},
		handle:     h,
	}
	if h != nil {
		b.PCM = h.Value().(*goaudio.Float32Buffer)
	}
	return b
}

// Channels is the interleaving of Samples.
func (b *BufferDescriptor) Channels() int {
	if b.PCM == nil || b.PCM.Format == nil {
		return 0
	}
	return b.PCM.Format.NumChannels
}

// Samples returns the Length audio frames of interleaved PCM.
func (b *BufferDescriptor) Samples() []float32 {
	if b.PCM == nil {
		return nil
	}
	return b.PCM.Data[:b.Length*b.Channels()]
}

// Info returns the timing fields.
func (b *BufferDescriptor) Info() BufferInfo { return b.BufferInfo }

// Release returns the PCM storage to its pool. It is safe to call more
// than once; only the first call has an effect.
func (b *BufferDescriptor) Release() error {
	var err error
	b.once.Do(func() {
		if b.handle != nil {
			err = b.handle.Release()
		}
		b.PCM = nil
	})
	return err
}

// ReleaseAll releases every descriptor in bufs and returns the first error.
func ReleaseAll(bufs []*BufferDescriptor) error {
	var first error
	for _, b := range bufs {
		if b == nil {
			continue
		}
		if err := b.Release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Infos collects the timing of bufs.
func Infos(bufs []*BufferDescriptor) []BufferInfo {
	out := make([]BufferInfo, len(bufs))
	for i, b := range bufs {
		out[i] = b.BufferInfo
	}
	return out
}
