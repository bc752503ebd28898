// SPDX-License-Identifier: EPL-2.0

// Package gapless decodes MP3 tracks into timestamped PCM buffers and
// plays consecutive tracks without a gap between them.
//
// The heavy lifting happens in the subpackages. This package wires them
// together for the common cases.
//
// # Supported Formats
//
// Decoding:
//   - MP3 (MPEG 1, 2 and 2.5 Layer III) via formats/mp3
//   - MP3 wrapped in WAV via formats/mp3
//
// Recognized, but rejected with audio.ErrCodecNotSupported:
//   - PCM WAV via formats/wav
//   - AIFF via formats/aiff
//   - Ogg Vorbis via formats/vorbis
//
// # Quick Start
//
// DecodeAll reads a whole track into memory:
//
//	src, _ := fileview.Open("song.mp3")
//	defer src.Close()
//
//	track, err := gapless.DecodeAll(ctx, src, session.Options{DstRate: 48000})
//	// track.Samples is interleaved float32 at 48 kHz
//
// Stream plays several tracks into a Sink. The encoder delay and padding
// of every track are trimmed, so the output is continuous:
//
//	w := wav.NewWriter(out, 48000, 2)
//	res, err := gapless.Stream(ctx, w, session.Options{DstRate: 48000, DstChannels: 2}, 0, a, b)
//	_ = w.Close()
//
// # Sessions
//
// For playback, drive a session.Session directly. It answers LoadBlob,
// Seek, FillBuffers and LoadReplacement requests on its Replies channel
// and hands out pooled buffers that the receiver releases.
//
// # Command Line
//
// cmd/trackdec probes, decodes and concatenates tracks into WAV files.
package gapless
