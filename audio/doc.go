// SPDX-License-Identifier: EPL-2.0

// Package audio holds the codec-independent parts of the decode path.
//
// It defines the contracts codecs implement and the building blocks
// the processing pipeline chains together:
//   - Decoder, Demuxer and FrameLocator interfaces
//   - Metadata, SeekResult and SeekTable
//   - Pool for decoder contexts, resamplers and PCM buffers
//   - BufferDescriptor, a timestamped pooled PCM run
//   - Resampler, ChannelMixer and Effect processors
//   - Registry for codec lookup and content sniffing
//
// # Decoders
//
// A Decoder is a state machine fed with compressed bytes:
//
//	dec.Start(meta)
//	for {
//	    n, err := dec.DecodeUntilFlush(block, func(samples []float32, frames int) {
//	        // samples is only valid during the call
//	    })
//	    if err != nil {
//	        return err
//	    }
//	    block = block[n:]
//	    // refill block when it runs short
//	}
//	dec.End(flush)
//
// Decoders drop encoder delay and padding themselves, so concatenated
// tracks join without gaps.
//
// # Buffer Ownership
//
// Every BufferDescriptor owns a pool entry. Whoever receives a descriptor
// last must call Release; Pool.Outstanding reports entries still held.
// A Pool logs a warning once it has created more entries for one key
// than its ceiling, which usually means descriptors are being dropped.
//
// # Sample Format
//
// Samples are interleaved float32 in the range [-1.0, 1.0].
//
// # Errors
//
// Failures are reported with the sentinel errors of this package, wrapped
// with context. Use errors.Is to classify them:
//
//	if errors.Is(err, audio.ErrCodecNotSupported) {
//	    // the source cannot be played
//	}
package audio
