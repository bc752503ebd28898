// SPDX-License-Identifier: EPL-2.0

// Package pipeline chains a codec decoder, an optional resampler, effects
// and a channel mixer into timestamped PCM buffers.
//
// A Pipeline reads compressed bytes from a fileview.View at its current
// position, lets the decoder flush fixed-length runs of audio frames and
// converts every run into an audio.BufferDescriptor backed by a pool
// entry:
//
//	decode -> effects -> resample (if rates differ) -> mix -> descriptor
//
// Timestamps are derived from the running total of emitted destination
// frames, so consecutive descriptors satisfy EndTime[n] == StartTime[n+1].
// A seek rebases the clock on the located time.
//
// Reads are the only suspension points. Every fill and seek takes a
// context; when it is canceled the operation stops at the next read,
// releases what it produced and returns ErrAbandoned.
//
// A Pipeline is owned by one goroutine at a time.
package pipeline
