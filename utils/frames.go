// SPDX-License-Identifier: EPL-2.0

package utils

import "math"

// Float32Bytes is the width of one decoded sample.
const Float32Bytes = 4

// FramesToSamples converts an audio-frame count to an interleaved sample count.
func FramesToSamples(frames, channels int) int { return frames * channels }

// SamplesToFrames converts an interleaved sample count to whole audio frames.
func SamplesToFrames(samples, channels int) int {
	if channels <= 0 {
		return 0
	}
	return samples / channels
}

// FramesToBytes is the byte length of frames audio frames of float32 samples.
func FramesToBytes(frames, channels int) int {
	return frames * channels * Float32Bytes
}

// BytesToFrames is the inverse of FramesToBytes.
func BytesToFrames(byteLength, channels int) int {
	if channels <= 0 {
		return 0
	}
	return byteLength / channels / Float32Bytes
}

// FramesToSeconds converts a frame position to seconds at rate.
func FramesToSeconds(frames int64, rate int) float64 {
	if rate <= 0 {
		return 0
	}
	return float64(frames) / float64(rate)
}

// SecondsToFrames rounds a time in seconds to the nearest frame at rate.
func SecondsToFrames(seconds float64, rate int) int64 {
	if seconds <= 0 || rate <= 0 {
		return 0
	}
	return int64(math.Round(seconds * float64(rate)))
}
