// SPDX-License-Identifier: EPL-2.0

// Package vorbis identifies Ogg Vorbis streams using
// github.com/jfreymuth/oggvorbis.
//
// Vorbis is not decoded. Probe reports the stream format so that an
// audio.Registry can fail with a descriptive unsupported-codec error.
package vorbis
