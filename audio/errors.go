// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	// ErrCodecNotSupported is returned when no registered codec can demux or decode a source.
	ErrCodecNotSupported = errors.New("codec not supported")
	// ErrInvalidFrame is returned when the resync budget for corrupt compressed frames is exhausted.
	ErrInvalidFrame = errors.New("too many invalid frames")
	// ErrIO wraps failures of the underlying source reader.
	ErrIO = errors.New("source read failed")
	// ErrDestroyed is returned for operations issued after a session was torn down.
	ErrDestroyed = errors.New("destroyed")
	// ErrReplacementMismatch marks a stale or foreign reply during a gapless hand-off.
	ErrReplacementMismatch = errors.New("replacement reply mismatch")

	ErrNotLoaded      = errors.New("no source loaded")
	ErrNotStarted     = errors.New("decoder not started")
	ErrInvalidDstSize = errors.New("dst size must be multiple of channels")
	ErrDstTooSmall    = errors.New("dst too small for output")
	ErrDoubleRelease  = errors.New("pool handle released twice")
	ErrChannelCount   = errors.New("unsupported channel count")
	ErrUnknownEffect  = errors.New("unknown effect")
	ErrInvalidConfig  = errors.New("invalid configuration")
)
