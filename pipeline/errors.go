// SPDX-License-Identifier: EPL-2.0

package pipeline

import "errors"

var (
	// ErrAbandoned is returned when the context of a fill or seek ends
	// before the operation completes.
	ErrAbandoned = errors.New("decode abandoned")
	// ErrClosed is returned by a pipeline whose resources were released.
	ErrClosed = errors.New("pipeline closed")
)
