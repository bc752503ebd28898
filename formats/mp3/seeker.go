// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"context"
	"math"

	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
)

// PrerollFrames is how many frames before the target a seek starts
// decoding, to rebuild the bit reservoir.
const PrerollFrames = 9

// Locator maps a time offset to a decode position.
type Locator struct{}

var _ audio.FrameLocator = Locator{}

// Locate finds where decoding must resume to present audio from time.
//
// Constant bitrate streams and streams with a scanned seek table land on
// the exact audio frame. Xing TOC and VBRI positions are approximate:
// decoding resumes one frame after the located frame.
func (Locator) Locate(ctx context.Context, time float64, meta *audio.Metadata, _ audio.Decoder, view *fileview.View) (audio.SeekResult, error) {
	time = min(meta.Duration, max(0, time))
	spf := meta.SamplesPerFrame
	frameDuration := meta.FrameDuration()

	frames := int(meta.Duration * float64(meta.SampleRate) / float64(spf))
	if meta.Frames > 0 {
		frames = meta.Frames
	}

	// Position in the decoder's output, which starts with the encoder
	// and decoder delays.
	raw := int(math.Round(time*float64(meta.SampleRate))) + meta.EncoderDelay + DecoderDelay
	frame := min(raw/spf, max(0, frames-1))
	within := raw - frame*spf

	target := max(0, frame-PrerollFrames)
	res := audio.SeekResult{
		Frame:         target,
		SamplesToSkip: (frame-target)*spf + within,
		Time:          time,
	}

	switch {
	case !meta.VBR:
		res.Offset = meta.DataStart + int64(float64(target)*meta.AverageFrameSize)

	case meta.TOC != nil:
		frame = int(math.Round(float64(frame)/float64(frames)*100) / 100 * float64(frames))
		idx := min(99, int(math.Round(float64(frame)/float64(frames)*100)))
		pct := float64(meta.TOC[idx]) / 256
		res = audio.SeekResult{
			Offset:        meta.DataStart + int64(pct*float64(meta.DataEnd-meta.DataStart)),
			Frame:         frame,
			SamplesToSkip: spf,
			Time:          float64(frame+1) * frameDuration,
		}
		target = frame

	default:
		if meta.SeekTable == nil {
			meta.SeekTable = audio.NewSeekTable(audio.SeekEntries{FramesPerEntry: 1})
		}
		if err := fillSeekTable(ctx, view, meta, time+frameDuration); err != nil {
			return audio.SeekResult{}, err
		}

		table := meta.SeekTable
		if table.FromMetadata() {
			frame = table.ClosestFrameOf(frame)
			off, _ := table.OffsetOfFrame(frame)
			res = audio.SeekResult{
				Offset:        off,
				Frame:         frame,
				SamplesToSkip: spf,
				Time:          float64(frame+1) * frameDuration,
			}
			target = frame
		} else {
			off, ok := table.OffsetOfFrame(target)
			if !ok {
				off = meta.DataStart
			}
			res.Offset = off
		}
	}

	if target == 0 {
		// ApplySeek adds the decoder delay for frame 0.
		res.SamplesToSkip = max(0, raw-DecoderDelay)
		res.Time = time
	}
	res.Offset = max(meta.DataStart, min(res.Offset, meta.DataEnd))

	return res, nil
}
