// SPDX-License-Identifier: EPL-2.0

// Package wav reads RIFF/WAVE containers and writes 16-bit PCM WAV files.
//
// It uses github.com/go-audio/wav for header parsing and encoding.
//
// # Inspecting Containers
//
// Inspect reports the format, the data chunk location and the MPEG
// Layer III extension fields (codec delay, block size) that MP3-in-WAV
// files carry:
//
//	info, err := wav.Inspect(src, 0)
//	if err == nil && info.AudioFormat == wav.FormatMPEGLayer3 {
//	    // hand info.DataStart..info.DataEnd to the mp3 decoder
//	}
//
// Probe wraps Inspect for an audio.Registry, so that PCM WAV files fail
// with a descriptive unsupported-codec error.
//
// # Writing WAV Files
//
// Writer streams interleaved float32 samples as 16-bit PCM:
//
//	f, _ := os.Create("out.wav")
//	w := wav.NewWriter(f, 48000, 2)
//	_ = w.Write(samples)
//	_ = w.Close()
//
// Samples outside [-1.0, 1.0] are clipped.
package wav
