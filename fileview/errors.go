// SPDX-License-Identifier: EPL-2.0

package fileview

import "errors"

var (
	ErrNoBlock       = errors.New("no block available")
	ErrOutOfRange    = errors.New("offset out of range")
	ErrSourceClosed  = errors.New("source closed")
	ErrWriteOverflow = errors.New("write past declared size")
)
