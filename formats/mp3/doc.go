// SPDX-License-Identifier: EPL-2.0

// Package mp3 implements gapless MPEG audio Layer III decoding.
//
// Frames are decoded with github.com/hajimehoshi/go-mp3, one frame at a
// time, so that the decoder controls exactly which audio frames are
// exposed.
//
// # Demuxing
//
// Demuxer reads the stream layout: ID3v2 tags are skipped, MP3-in-WAV
// containers are unwrapped, and Xing/Info, LAME and VBRI tags provide the
// frame count, the encoder delay and padding and the seek tables:
//
//	meta, err := mp3.Demuxer{}.Demux(ctx, view)
//	if meta == nil && err == nil {
//	    // not an MP3 stream, or shorter than MinimumDuration
//	}
//
// # Decoding
//
// Decoder is a state machine that turns compressed bytes into runs of
// PCM of a fixed length:
//
//	dec := mp3.NewDecoder(4096)
//	dec.Start(meta)
//	n, err := dec.DecodeUntilFlush(block, func(samples []float32, frames int) {
//	    // samples holds frames interleaved audio frames
//	})
//
// The first EncoderDelay+DecoderDelay audio frames and the encoder padding
// at the end are dropped, so consecutive tracks of one album join without
// gaps. Undecodable input is skipped in ResyncSkip byte steps; after
// MaxInvalidFrameCount consecutive failures decoding stops with
// audio.ErrInvalidFrame.
//
// # Seeking
//
// Locator maps a time to a byte offset and a number of audio frames to
// drop. Decoding resumes PrerollFrames frames early to rebuild the bit
// reservoir:
//
//	res, err := mp3.Locator{}.Locate(ctx, 42.0, meta, dec, view)
//	dec.ApplySeek(res)
//	// resume decoding at res.Offset
package mp3
