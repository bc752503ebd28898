// SPDX-License-Identifier: EPL-2.0

// Package aiff identifies AIFF files using github.com/go-audio/aiff.
//
// AIFF is not decoded. Probe lets an audio.Registry reject AIFF sources
// with a message naming the container, its sample rate and channels.
package aiff
