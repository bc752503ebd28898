// SPDX-License-Identifier: EPL-2.0

package fileview

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// View caches one contiguous block of a Source. Getters take absolute file
// offsets and return zero for bytes outside the cached block.
type View struct {
	src   Source
	buf   []byte
	start int64
	end   int64
}

func NewView(src Source) *View {
	return &View{src: src, start: -1, end: -1}
}

func (v *View) Source() Source { return v.src }
func (v *View) Name() string   { return v.src.Name() }
func (v *View) Size() int64    { return v.src.Size() }

// Start is the file offset of the first cached byte, or -1.
func (v *View) Start() int64 { return v.start }

// End is the file offset one past the last cached byte, or -1.
func (v *View) End() int64 { return v.end }

// ReadBlockOfSizeAt makes sure [offset, offset+size) is cached. When a read
// is needed it fetches size*paddingFactor bytes so that nearby reads hit the
// cache. The range is clamped to the source size.
func (v *View) ReadBlockOfSizeAt(ctx context.Context, size int, offset int64, paddingFactor float64) error {
	total := v.src.Size()
	if total <= 0 {
		return fmt.Errorf("%w: empty source", ErrOutOfRange)
	}
	if paddingFactor < 1 {
		paddingFactor = 1
	}

	start := min(total-1, max(0, offset))
	end := min(total, start+int64(size))
	if v.buf != nil && v.start <= start && end <= v.end {
		return nil
	}

	end = min(total, start+int64(math.Ceil(float64(size)*paddingFactor)))
	buf := make([]byte, end-start)

	n, err := ReadAt(ctx, v.src, buf, start)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == end-start) {
		v.buf, v.start, v.end = nil, -1, -1
		return err
	}

	v.buf, v.start, v.end = buf, start, end
	return nil
}

// Block returns the cached bytes.
func (v *View) Block() ([]byte, error) {
	if v.buf == nil {
		return nil, ErrNoBlock
	}
	return v.buf, nil
}

// BlockAt returns the cached bytes from offset to the end of the block.
func (v *View) BlockAt(offset int64) ([]byte, error) {
	if v.buf == nil {
		return nil, ErrNoBlock
	}
	if offset < v.start || offset > v.end {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, offset, v.start, v.end)
	}
	return v.buf[offset-v.start:], nil
}

// Contains reports whether [offset, offset+n) is cached.
func (v *View) Contains(offset int64, n int) bool {
	return v.buf != nil && offset >= v.start && offset+int64(n) <= v.end
}

func (v *View) bytesAt(offset int64, n int) []byte {
	if !v.Contains(offset, n) {
		return nil
	}
	i := offset - v.start
	return v.buf[i : i+int64(n)]
}

func (v *View) Uint8(offset int64) uint8 {
	b := v.bytesAt(offset, 1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (v *View) Uint16(offset int64, order binary.ByteOrder) uint16 {
	b := v.bytesAt(offset, 2)
	if b == nil {
		return 0
	}
	return order.Uint16(b)
}

func (v *View) Uint32(offset int64, order binary.ByteOrder) uint32 {
	b := v.bytesAt(offset, 4)
	if b == nil {
		return 0
	}
	return order.Uint32(b)
}

func (v *View) Int16(offset int64, order binary.ByteOrder) int16 {
	return int16(v.Uint16(offset, order))
}

func (v *View) Int32(offset int64, order binary.ByteOrder) int32 {
	return int32(v.Uint32(offset, order))
}
