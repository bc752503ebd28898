// SPDX-License-Identifier: EPL-2.0

package fileview

import (
	"context"
	"io"
	"sync"
)

// Progressive is a Source whose bytes arrive over time, such as a track
// that is still downloading. Size reports the final size up front.
type Progressive struct {
	name string
	size int64

	mu      sync.Mutex
	data    []byte
	err     error
	done    bool
	arrived chan struct{}
}

// NewProgressive returns an empty Progressive source of the declared size.
func NewProgressive(name string, size int64) *Progressive {
	return &Progressive{
		name:    name,
		size:    size,
		data:    make([]byte, 0, size),
		arrived: make(chan struct{}),
	}
}

func (p *Progressive) Size() int64  { return p.size }
func (p *Progressive) Name() string { return p.name }

// Available reports how many bytes have arrived.
func (p *Progressive) Available() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return int64(len(p.data))
}

// Write appends downloaded bytes and wakes waiting readers.
func (p *Progressive) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return 0, ErrSourceClosed
	}
	if int64(len(p.data)+len(b)) > p.size {
		return 0, ErrWriteOverflow
	}

	p.data = append(p.data, b...)
	if int64(len(p.data)) == p.size {
		p.done = true
	}
	p.notifyLocked()

	return len(b), nil
}

// CloseWithError ends the download. Readers waiting for bytes that never
// arrived receive err, or io.ErrUnexpectedEOF when err is nil.
func (p *Progressive) CloseWithError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	p.err = err
	p.done = true
	p.notifyLocked()
}

func (p *Progressive) notifyLocked() {
	close(p.arrived)
	p.arrived = make(chan struct{})
}

func (p *Progressive) ReadAt(b []byte, off int64) (int, error) {
	return p.ReadAtContext(context.Background(), b, off)
}

// ReadAtContext waits until b can be filled from off, the source is
// complete, or ctx ends.
func (p *Progressive) ReadAtContext(ctx context.Context, b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrOutOfRange
	}
	if off >= p.size {
		return 0, io.EOF
	}

	want := min(off+int64(len(b)), p.size)

	for {
		p.mu.Lock()
		have := int64(len(p.data))
		if have >= want || p.done {
			n := 0
			if off < have {
				n = copy(b, p.data[off:min(have, want)])
			}
			err := p.err
			p.mu.Unlock()

			switch {
			case n == len(b):
				return n, nil
			case int64(n)+off >= p.size:
				return n, io.EOF
			case err != nil:
				return n, err
			default:
				return n, io.EOF
			}
		}
		wait := p.arrived
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-wait:
		}
	}
}
