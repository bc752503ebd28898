// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"context"

	"github.com/ik5/gapless/fileview"
)

// FlushFunc receives one run of interleaved samples holding frames audio
// frames. samples is only valid for the duration of the call.
type FlushFunc func(samples []float32, frames int)

// DecoderState is a snapshot of a decoder's frame accounting.
type DecoderState struct {
	FrameIndex       int
	TotalFrames      int
	UnflushedFrames  int
	FramesToSkip     int
	FramesSkipped    int
	InvalidFrames    int
	SampleRate       int
	Channels         int
	Started          bool
	StreamExhausted  bool
	TargetBufferSize int
}

// Decoder is a codec state machine turning compressed bytes into runs of
// PCM audio frames.
type Decoder interface {
	// Start prepares decoding of a track. meta may be nil.
	Start(meta *Metadata)
	// DecodeUntilFlush decodes from src until one buffer was flushed or
	// the input ran out, returning the bytes consumed.
	DecodeUntilFlush(src []byte, flush FlushFunc) (int, error)
	// ApplySeek repositions the decoder to a located frame.
	ApplySeek(res SeekResult)
	// End flushes the remaining frames once when flush is non-nil and
	// resets the decoder.
	End(flush FlushFunc) (bool, error)
	// SetTargetBufferFrames sets the flush length in audio frames.
	SetTargetBufferFrames(frames int)
	// CurrentAudioFrame is the index of the next exposed audio frame.
	CurrentAudioFrame() int64
	SampleRate() int
	Channels() int
	State() DecoderState
	// Reset returns the decoder to its created state.
	Reset()
}

// Demuxer parses container metadata. A nil result without an error means
// the source is not a valid stream of the codec.
type Demuxer interface {
	Demux(ctx context.Context, view *fileview.View) (*Metadata, error)
}

// FrameLocator maps a time offset to a decode position.
type FrameLocator interface {
	Locate(ctx context.Context, time float64, meta *Metadata, dec Decoder, view *fileview.View) (SeekResult, error)
}

// DemuxerFunc adapts a function to Demuxer.
type DemuxerFunc func(ctx context.Context, view *fileview.View) (*Metadata, error)

func (f DemuxerFunc) Demux(ctx context.Context, view *fileview.View) (*Metadata, error) {
	return f(ctx, view)
}
