// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_Derived(t *testing.T) {
	t.Parallel()

	m := &Metadata{Frames: 100, SamplesPerFrame: 1152, SampleRate: 44100}
	assert.Equal(t, int64(115200), m.TotalAudioFrames())
	assert.InDelta(t, 1152.0/44100, m.FrameDuration(), 1e-12)

	assert.Zero(t, (&Metadata{}).FrameDuration())
}

func TestSeekTable(t *testing.T) {
	t.Parallel()

	table := NewSeekTable(SeekEntries{
		Offsets:        []int64{100, 500, 900, 1300},
		Frames:         40,
		FramesPerEntry: 10,
		FromMetadata:   true,
	})

	assert.True(t, table.FromMetadata())
	assert.Equal(t, 40, table.Frames())

	assert.Equal(t, 0, table.ClosestFrameOf(4))
	assert.Equal(t, 10, table.ClosestFrameOf(6))
	assert.Equal(t, 30, table.ClosestFrameOf(39), "clamped to the last entry")
	assert.Equal(t, 0, table.ClosestFrameOf(-5))

	off, ok := table.OffsetOfFrame(21)
	require.True(t, ok)
	assert.Equal(t, int64(900), off)
}

func TestSeekTable_Update(t *testing.T) {
	t.Parallel()

	table := NewSeekTable(SeekEntries{})
	_, ok := table.OffsetOfFrame(0)
	assert.False(t, ok)
	assert.Equal(t, 0, table.ClosestFrameOf(10))

	require.NoError(t, table.Update(func(e *SeekEntries) error {
		e.Offsets = append(e.Offsets, 10, 20, 30)
		e.Frames = 3
		e.FilledUntil = 0.078
		return nil
	}))

	assert.InDelta(t, 0.078, table.FilledUntil(), 1e-12)
	off, ok := table.OffsetOfFrame(2)
	require.True(t, ok)
	assert.Equal(t, int64(30), off)
}
